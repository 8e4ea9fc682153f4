package spreadsheet

import (
	"math"
	"strconv"
	"strings"
)

// applyNumberFormat renders a number with a cell number format such as "0.00",
// "#,##0", "0%", "0.00E+00" or "yyyy-mm-dd hh:mm AM/PM". up to three
// sections separated by ';' apply to positive, negative and zero values.
func applyNumberFormat(value float64, format string, ds DateSystem) (Primitive, error) {
	if strings.EqualFold(format, "General") || format == "" {
		if format == "" {
			return "", nil
		}
		return formatNumber(value), nil
	}

	sections := splitSections(format)
	section := sections[0]
	negativeSection := false
	switch {
	case value < 0 && len(sections) > 1:
		section, value, negativeSection = sections[1], -value, true
	case value == 0 && len(sections) > 2:
		section = sections[2]
	}

	tokens := tokenizeFormat(section)
	if isDateFormat(tokens) {
		if value < 0 {
			return nil, errValue("negative dates cannot be formatted")
		}
		return formatDate(value, tokens, ds)
	}
	s := formatDigits(value, tokens)
	if negativeSection && strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	return s, nil
}

func splitSections(format string) []string {
	var sections []string
	var current strings.Builder
	inQuote := false
	for i := 0; i < len(format); i++ {
		ch := format[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case ch == '\\' && !inQuote && i+1 < len(format):
			current.WriteByte(ch)
			i++
			ch = format[i]
		case ch == ';' && !inQuote:
			sections = append(sections, current.String())
			current.Reset()
			continue
		}
		current.WriteByte(ch)
	}
	return append(sections, current.String())
}

type fmtTokenKind uint8

const (
	fmtLiteral fmtTokenKind = iota
	fmtDigit                // 0 # ?
	fmtDecimalPoint
	fmtComma
	fmtPercent
	fmtExponent // E+ E-
	fmtDatePart // y m d h s and AM/PM
)

type fmtToken struct {
	kind fmtTokenKind
	text string
}

// tokenizeFormat splits one format section. quoted text and backslash
// escapes become literals, runs of the same date letter become one token.
func tokenizeFormat(section string) []fmtToken {
	var tokens []fmtToken
	runes := []rune(section)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			tokens = append(tokens, fmtToken{fmtLiteral, string(runes[i+1 : min(j, len(runes))])})
			i = j
		case ch == '\\' && i+1 < len(runes):
			i++
			tokens = append(tokens, fmtToken{fmtLiteral, string(runes[i])})
		case ch == '[':
			// colours and conditions are ignored
			for i < len(runes) && runes[i] != ']' {
				i++
			}
		case ch == '_' && i+1 < len(runes):
			i++
			tokens = append(tokens, fmtToken{fmtLiteral, " "})
		case ch == '*' && i+1 < len(runes):
			i++
		case ch == '0' || ch == '#' || ch == '?':
			tokens = append(tokens, fmtToken{fmtDigit, string(ch)})
		case ch == '.':
			tokens = append(tokens, fmtToken{fmtDecimalPoint, "."})
		case ch == ',':
			tokens = append(tokens, fmtToken{fmtComma, ","})
		case ch == '%':
			tokens = append(tokens, fmtToken{fmtPercent, "%"})
		case (ch == 'E' || ch == 'e') && i+1 < len(runes) && (runes[i+1] == '+' || runes[i+1] == '-'):
			tokens = append(tokens, fmtToken{fmtExponent, "E" + string(runes[i+1])})
			i++
		case strings.HasPrefix(strings.ToUpper(string(runes[i:])), "AM/PM"):
			tokens = append(tokens, fmtToken{fmtDatePart, "AM/PM"})
			i += 4
		case strings.HasPrefix(strings.ToUpper(string(runes[i:])), "A/P"):
			tokens = append(tokens, fmtToken{fmtDatePart, "A/P"})
			i += 2
		case strings.ContainsRune("ymdhsYMDHS", ch):
			j := i
			lower := unicodeLower(ch)
			for j < len(runes) && unicodeLower(runes[j]) == lower {
				j++
			}
			tokens = append(tokens, fmtToken{fmtDatePart, strings.ToLower(string(runes[i:j]))})
			i = j - 1
		default:
			tokens = append(tokens, fmtToken{fmtLiteral, string(ch)})
		}
	}
	return tokens
}

func unicodeLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 'a' - 'A'
	}
	return r
}

func isDateFormat(tokens []fmtToken) bool {
	hasDate := false
	for _, t := range tokens {
		switch t.kind {
		case fmtDigit:
			if t.text != "0" {
				return false
			}
		case fmtDatePart:
			hasDate = true
		}
	}
	return hasDate
}

// formatDigits applies a numeric section
func formatDigits(value float64, tokens []fmtToken) string {
	for _, t := range tokens {
		if t.kind == fmtPercent {
			value *= 100
		}
	}

	// split the placeholders into integer, fraction and exponent parts
	var intTokens, fracTokens, expTokens []fmtToken
	var prefix, suffix strings.Builder
	grouping := false
	expSign := ""
	seenDigit, seenPoint, seenExp := false, false, false
	lastDigit := -1
	for i, t := range tokens {
		if t.kind == fmtDigit {
			lastDigit = i
		}
	}
	for i, t := range tokens {
		switch {
		case t.kind == fmtExponent:
			seenExp, expSign = true, t.text[1:]
		case t.kind == fmtDecimalPoint && !seenExp:
			seenPoint = true
		case t.kind == fmtComma && seenDigit && !seenPoint && i < lastDigit:
			grouping = true
		case t.kind == fmtDigit && seenExp:
			expTokens = append(expTokens, t)
		case t.kind == fmtDigit && seenPoint:
			fracTokens = append(fracTokens, t)
			seenDigit = true
		case t.kind == fmtDigit:
			intTokens = append(intTokens, t)
			seenDigit = true
		case t.kind == fmtComma && i > lastDigit && seenDigit:
			value /= 1000
		case !seenDigit && !seenPoint:
			prefix.WriteString(t.text)
		case i > lastDigit:
			suffix.WriteString(t.text)
		default:
			// literal between placeholders, kept in the integer part
			intTokens = append(intTokens, t)
		}
	}

	negative := value < 0
	value = math.Abs(value)

	exponent := 0
	if seenExp && value != 0 {
		intDigits := max(countDigits(intTokens), 1)
		exponent = int(math.Floor(math.Log10(value))) - (intDigits - 1)
		value /= math.Pow(10, float64(exponent))
	}

	maxFrac := len(fracTokens)
	minFrac := 0
	for _, t := range fracTokens {
		if t.text == "0" {
			minFrac++
		}
	}
	rounded := strconv.FormatFloat(roundHalfAway(value, maxFrac), 'f', maxFrac, 64)
	intDigits, fracDigits, _ := strings.Cut(rounded, ".")
	if seenExp && len(intDigits) > max(countDigits(intTokens), 1) {
		// rounding carried into a new digit
		exponent++
		rounded = strconv.FormatFloat(roundHalfAway(value/10, maxFrac), 'f', maxFrac, 64)
		intDigits, fracDigits, _ = strings.Cut(rounded, ".")
	}
	for len(fracDigits) > minFrac && strings.HasSuffix(fracDigits, "0") {
		fracDigits = fracDigits[:len(fracDigits)-1]
	}
	if intDigits == "0" {
		intDigits = ""
	}

	var out strings.Builder
	if negative && (intDigits != "" || strings.Trim(fracDigits, "0") != "") {
		out.WriteByte('-')
	}
	out.WriteString(prefix.String())
	out.WriteString(fillInteger(intDigits, intTokens, grouping))
	if seenPoint {
		out.WriteByte('.')
		out.WriteString(fracDigits)
		for i := len(fracDigits); i < len(fracTokens); i++ {
			if fracTokens[i].text == "?" {
				out.WriteByte(' ')
			}
		}
	}
	if seenExp {
		sign := expSign
		if exponent < 0 {
			sign = "-"
		} else if sign == "-" {
			sign = ""
		}
		digits := strconv.Itoa(int(math.Abs(float64(exponent))))
		for len(digits) < countDigits(expTokens) {
			digits = "0" + digits
		}
		out.WriteString("E" + sign + digits)
	}
	out.WriteString(suffix.String())
	return out.String()
}

func countDigits(tokens []fmtToken) int {
	n := 0
	for _, t := range tokens {
		if t.kind == fmtDigit {
			n++
		}
	}
	return n
}

// fillInteger places digits right-aligned into the integer placeholders.
// digits beyond the placeholders go in front, missing ones are padded per
// placeholder: '0' with a zero, '?' with a space, '#' with nothing.
func fillInteger(digits string, tokens []fmtToken, grouping bool) string {
	if grouping {
		var placeholders []fmtToken
		for _, t := range tokens {
			if t.kind == fmtDigit {
				placeholders = append(placeholders, t)
			}
		}
		padded := padInteger(digits, placeholders)
		return groupThousands(padded)
	}

	var out []string
	d := len(digits) - 1
	for i := len(tokens) - 1; i >= 0; i-- {
		t := tokens[i]
		if t.kind != fmtDigit {
			out = append(out, t.text)
			continue
		}
		switch {
		case d >= 0:
			out = append(out, string(digits[d]))
			d--
		case t.text == "0":
			out = append(out, "0")
		case t.text == "?":
			out = append(out, " ")
		}
	}
	if d >= 0 {
		out = append(out, digits[:d+1])
	}
	var b strings.Builder
	for i := len(out) - 1; i >= 0; i-- {
		b.WriteString(out[i])
	}
	return b.String()
}

func padInteger(digits string, placeholders []fmtToken) string {
	zeros := 0
	for _, t := range placeholders {
		if t.text == "0" {
			zeros++
		}
	}
	for len(digits) < zeros {
		digits = "0" + digits
	}
	return digits
}

var (
	monthNames = []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
	dayNames = []string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}
)

// formatDate applies a date or time section. "m" and "mm" mean minutes
// when they follow an hour or precede a second.
func formatDate(serial float64, tokens []fmtToken, ds DateSystem) (Primitive, error) {
	year, month, day, err := dateParts(serial, ds)
	if err != nil {
		return nil, err
	}
	hour, minute, second := timeParts(serial)
	twelveHour := false
	for _, t := range tokens {
		if t.kind == fmtDatePart && (t.text == "AM/PM" || t.text == "A/P") {
			twelveHour = true
		}
	}

	var b strings.Builder
	for i, t := range tokens {
		if t.kind != fmtDatePart {
			b.WriteString(t.text)
			continue
		}
		switch t.text[0] {
		case 'y':
			if len(t.text) <= 2 {
				b.WriteString(pad2(year % 100))
			} else {
				b.WriteString(strconv.Itoa(year))
			}
		case 'm':
			if len(t.text) <= 2 && isMinuteToken(tokens, i) {
				writeNumber(&b, minute, len(t.text))
				continue
			}
			switch len(t.text) {
			case 1, 2:
				writeNumber(&b, month, len(t.text))
			case 3:
				b.WriteString(monthNames[month-1][:3])
			case 5:
				b.WriteString(monthNames[month-1][:1])
			default:
				b.WriteString(monthNames[month-1])
			}
		case 'd':
			switch len(t.text) {
			case 1, 2:
				writeNumber(&b, day, len(t.text))
			case 3:
				b.WriteString(dayNames[weekday(serial, ds)][:3])
			default:
				b.WriteString(dayNames[weekday(serial, ds)])
			}
		case 'h':
			h := hour
			if twelveHour {
				h = hour % 12
				if h == 0 {
					h = 12
				}
			}
			writeNumber(&b, h, len(t.text))
		case 's':
			writeNumber(&b, second, len(t.text))
		case 'A', 'a':
			switch {
			case t.text == "A/P" && hour < 12:
				b.WriteString("A")
			case t.text == "A/P":
				b.WriteString("P")
			case hour < 12:
				b.WriteString("AM")
			default:
				b.WriteString("PM")
			}
		}
	}
	return b.String(), nil
}

func isMinuteToken(tokens []fmtToken, i int) bool {
	for j := i - 1; j >= 0; j-- {
		if tokens[j].kind == fmtDatePart {
			if tokens[j].text[0] == 'h' {
				return true
			}
			break
		}
	}
	for j := i + 1; j < len(tokens); j++ {
		if tokens[j].kind == fmtDatePart {
			return tokens[j].text[0] == 's'
		}
	}
	return false
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func writeNumber(b *strings.Builder, n, width int) {
	if width >= 2 {
		b.WriteString(pad2(n))
		return
	}
	b.WriteString(strconv.Itoa(n))
}
