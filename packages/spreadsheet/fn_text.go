package spreadsheet

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// maxTextLength is the longest string a cell can hold
const maxTextLength = 32767

func registerTextFunctions(bf *BuiltInFunctions) {
	bf.Register("CONCATENATE", 1, -1, fnConcatenate)
	bf.Register("CONCAT", 1, -1, fnConcat)
	bf.Register("TEXTJOIN", 3, -1, fnTextJoin)
	bf.Register("LEN", 1, 1, textFn(func(s string) Primitive { return float64(utf8.RuneCountInString(s)) }))
	bf.Register("UPPER", 1, 1, textFn(func(s string) Primitive { return strings.ToUpper(s) }))
	bf.Register("LOWER", 1, 1, textFn(func(s string) Primitive { return strings.ToLower(s) }))
	bf.Register("PROPER", 1, 1, textFn(func(s string) Primitive { return proper(s) }))
	bf.Register("TRIM", 1, 1, textFn(func(s string) Primitive { return trimSpaces(s) }))
	bf.Register("CLEAN", 1, 1, textFn(func(s string) Primitive { return clean(s) }))
	bf.Register("LEFT", 1, 2, fnLeft)
	bf.Register("RIGHT", 1, 2, fnRight)
	bf.Register("MID", 3, 3, fnMid)
	bf.Register("FIND", 2, 3, fnFind)
	bf.Register("SEARCH", 2, 3, fnSearch)
	bf.Register("SUBSTITUTE", 3, 4, fnSubstitute)
	bf.Register("REPLACE", 4, 4, fnReplace)
	bf.Register("REPT", 2, 2, fnRept)
	bf.Register("EXACT", 2, 2, fnExact)
	bf.Register("CHAR", 1, 1, fnChar)
	bf.Register("CODE", 1, 1, fnCode)
	bf.Register("VALUE", 1, 1, fnValue)
	bf.Register("T", 1, 1, fnT)
	bf.Register("N", 1, 1, fnN)
	bf.Register("FIXED", 1, 3, fnFixed)
	bf.Register("DOLLAR", 1, 2, fnDollar)
	bf.Register("TEXT", 2, 2, fnText)
}

func textFn(f func(string) Primitive) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		s, err := ec.stringArg(args[0])
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func proper(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

// trimSpaces drops leading and trailing spaces and collapses inner runs to
// one space. other whitespace is kept.
func trimSpaces(s string) string {
	parts := strings.Split(s, " ")
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		return r
	}, s)
}

func checkLength(s string) (Primitive, error) {
	if utf8.RuneCountInString(s) > maxTextLength {
		return nil, errValue("text result is too long")
	}
	return s, nil
}

func fnConcatenate(ec *EvalContext, args ...Primitive) (Primitive, error) {
	var b strings.Builder
	for _, arg := range args {
		s, err := ec.stringArg(arg)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return checkLength(b.String())
}

// fnConcat joins every value, reading areas cell by cell
func fnConcat(ec *EvalContext, args ...Primitive) (Primitive, error) {
	var b strings.Builder
	for _, arg := range args {
		for _, v := range flatten(arg) {
			if err, ok := v.(*SpreadsheetError); ok {
				return nil, err
			}
			b.WriteString(coerceString(v))
		}
	}
	return checkLength(b.String())
}

func fnTextJoin(ec *EvalContext, args ...Primitive) (Primitive, error) {
	delimiter, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	ignoreEmpty, err := ec.boolArg(args[1])
	if err != nil {
		return nil, err
	}
	var parts []string
	for _, arg := range args[2:] {
		for _, v := range flatten(arg) {
			if err, ok := v.(*SpreadsheetError); ok {
				return nil, err
			}
			s := coerceString(v)
			if s == "" && ignoreEmpty {
				continue
			}
			parts = append(parts, s)
		}
	}
	return checkLength(strings.Join(parts, delimiter))
}

func (ec *EvalContext) countArg(args []Primitive, i int, name string) (int, error) {
	n, err := ec.optNumber(args, i, 1)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errValue(fmt.Sprintf("%s count must not be negative", name))
	}
	return int(n), nil
}

func fnLeft(ec *EvalContext, args ...Primitive) (Primitive, error) {
	s, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	n, err := ec.countArg(args, 1, "LEFT")
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	return string(runes[:min(n, len(runes))]), nil
}

func fnRight(ec *EvalContext, args ...Primitive) (Primitive, error) {
	s, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	n, err := ec.countArg(args, 1, "RIGHT")
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	return string(runes[len(runes)-min(n, len(runes)):]), nil
}

func fnMid(ec *EvalContext, args ...Primitive) (Primitive, error) {
	s, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	start, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	n, err := ec.intArg(args[2])
	if err != nil {
		return nil, err
	}
	if start < 1 || n < 0 {
		return nil, errValue("MID start must be at least 1 and count not negative")
	}
	runes := []rune(s)
	if start > len(runes) {
		return "", nil
	}
	end := min(start-1+n, len(runes))
	return string(runes[start-1 : end]), nil
}

// findArgs reads (find_text, within_text, [start_num]) and validates the
// start position against within_text
func (ec *EvalContext) findArgs(args []Primitive) (string, []rune, int, error) {
	needle, err := ec.stringArg(args[0])
	if err != nil {
		return "", nil, 0, err
	}
	haystack, err := ec.stringArg(args[1])
	if err != nil {
		return "", nil, 0, err
	}
	start, err := ec.optInt(args, 2, 1)
	if err != nil {
		return "", nil, 0, err
	}
	runes := []rune(haystack)
	if start < 1 || start > len(runes)+1 {
		return "", nil, 0, errValue(fmt.Sprintf("start position %d is out of range", start))
	}
	return needle, runes, start, nil
}

// fnFind is case-sensitive and has no wildcards
func fnFind(ec *EvalContext, args ...Primitive) (Primitive, error) {
	needle, runes, start, err := ec.findArgs(args)
	if err != nil {
		return nil, err
	}
	idx := strings.Index(string(runes[start-1:]), needle)
	if idx < 0 {
		return nil, errValue(fmt.Sprintf("'%s' not found", needle))
	}
	return float64(start + utf8.RuneCountInString(string(runes[start-1:])[:idx])), nil
}

// searchPattern compiles SEARCH wildcards into an unanchored,
// case-insensitive pattern
func searchPattern(s string) *regexp.Regexp {
	anchored := wildcardPattern(s).String()
	inner := strings.TrimSuffix(strings.TrimPrefix(anchored, "(?is)^"), "$")
	return regexp.MustCompile("(?is)" + strings.ReplaceAll(inner, ".*", ".*?"))
}

func fnSearch(ec *EvalContext, args ...Primitive) (Primitive, error) {
	needle, runes, start, err := ec.findArgs(args)
	if err != nil {
		return nil, err
	}
	tail := string(runes[start-1:])
	loc := searchPattern(needle).FindStringIndex(tail)
	if loc == nil {
		return nil, errValue(fmt.Sprintf("'%s' not found", needle))
	}
	return float64(start + utf8.RuneCountInString(tail[:loc[0]])), nil
}

func fnSubstitute(ec *EvalContext, args ...Primitive) (Primitive, error) {
	text, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	old, err := ec.stringArg(args[1])
	if err != nil {
		return nil, err
	}
	replacement, err := ec.stringArg(args[2])
	if err != nil {
		return nil, err
	}
	if len(args) < 4 {
		if old == "" {
			return text, nil
		}
		return checkLength(strings.ReplaceAll(text, old, replacement))
	}

	instance, err := ec.intArg(args[3])
	if err != nil {
		return nil, err
	}
	if instance < 1 {
		return nil, errValue("SUBSTITUTE instance must be at least 1")
	}
	if old == "" {
		return text, nil
	}
	offset := 0
	for i := 1; ; i++ {
		idx := strings.Index(text[offset:], old)
		if idx < 0 {
			return text, nil
		}
		pos := offset + idx
		if i == instance {
			return checkLength(text[:pos] + replacement + text[pos+len(old):])
		}
		offset = pos + len(old)
	}
}

func fnReplace(ec *EvalContext, args ...Primitive) (Primitive, error) {
	text, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	start, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	n, err := ec.intArg(args[2])
	if err != nil {
		return nil, err
	}
	replacement, err := ec.stringArg(args[3])
	if err != nil {
		return nil, err
	}
	if start < 1 || n < 0 {
		return nil, errValue("REPLACE start must be at least 1 and count not negative")
	}
	runes := []rune(text)
	from := min(start-1, len(runes))
	to := min(from+n, len(runes))
	return checkLength(string(runes[:from]) + replacement + string(runes[to:]))
}

func fnRept(ec *EvalContext, args ...Primitive) (Primitive, error) {
	text, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	n, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errValue("REPT count must not be negative")
	}
	if utf8.RuneCountInString(text)*n > maxTextLength {
		return nil, errValue("text result is too long")
	}
	return strings.Repeat(text, n), nil
}

func fnExact(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	b, err := ec.stringArg(args[1])
	if err != nil {
		return nil, err
	}
	return a == b, nil
}

func fnChar(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, err := ec.intArg(args[0])
	if err != nil {
		return nil, err
	}
	if n < 1 || n > 255 {
		return nil, errValue("CHAR code must be between 1 and 255")
	}
	return string(charmap.Windows1252.DecodeByte(byte(n))), nil
}

func fnCode(ec *EvalContext, args ...Primitive) (Primitive, error) {
	s, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, errValue("CODE of empty text")
	}
	r, _ := utf8.DecodeRuneInString(s)
	b, ok := charmap.Windows1252.EncodeRune(r)
	if !ok {
		// characters outside the code page read back as '?'
		return 63.0, nil
	}
	return float64(b), nil
}

func fnValue(ec *EvalContext, args ...Primitive) (Primitive, error) {
	switch v := ec.deref(args[0]).(type) {
	case float64:
		return v, nil
	case nil:
		return 0.0, nil
	case *SpreadsheetError:
		return nil, v
	case string:
		if n, ok := parseNumber(v); ok {
			return n, nil
		}
		if n, ok := parseDateTime(v, ec.DateSystem); ok {
			return n, nil
		}
		return nil, errValue(fmt.Sprintf("'%s' is not a number", v))
	}
	return nil, errValue("VALUE needs text or a number")
}

func fnT(ec *EvalContext, args ...Primitive) (Primitive, error) {
	switch v := ec.deref(args[0]).(type) {
	case string:
		return v, nil
	case *SpreadsheetError:
		return nil, v
	}
	return "", nil
}

func fnN(ec *EvalContext, args ...Primitive) (Primitive, error) {
	switch v := ec.deref(args[0]).(type) {
	case float64:
		return v, nil
	case bool:
		return boolToNumber(v), nil
	case *SpreadsheetError:
		return nil, v
	}
	return 0.0, nil
}

// groupThousands inserts commas into the integer part of a plain decimal
// string
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}

func fnFixed(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	decimals, err := ec.optInt(args, 1, 2)
	if err != nil {
		return nil, err
	}
	noCommas, err := ec.optBool(args, 2, false)
	if err != nil {
		return nil, err
	}
	if decimals > 127 {
		return nil, errValue("FIXED decimals must be at most 127")
	}
	s := fixedDecimal(x, decimals)
	if !noCommas {
		s = groupThousands(s)
	}
	return s, nil
}

// fnDollar formats as currency, negatives in parentheses
func fnDollar(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	decimals, err := ec.optInt(args, 1, 2)
	if err != nil {
		return nil, err
	}
	if decimals > 127 {
		return nil, errValue("DOLLAR decimals must be at most 127")
	}
	s := groupThousands(fixedDecimal(x, decimals))
	if strings.HasPrefix(s, "-") {
		return "($" + s[1:] + ")", nil
	}
	return "$" + s, nil
}

func fnText(ec *EvalContext, args ...Primitive) (Primitive, error) {
	format, err := ec.stringArg(args[1])
	if err != nil {
		return nil, err
	}
	var value float64
	switch v := ec.deref(args[0]).(type) {
	case *SpreadsheetError:
		return nil, v
	case string:
		n, ok := parseNumber(v)
		if !ok {
			if n, ok = parseDateTime(v, ec.DateSystem); !ok {
				return v, nil
			}
		}
		value = n
	case bool:
		return coerceString(v), nil
	default:
		if value, err = ec.coerceNumber(v); err != nil {
			return nil, err
		}
	}
	return applyNumberFormat(value, format, ec.DateSystem)
}
