package spreadsheet

import (
	"cmp"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// singleValue collapses an argument to one value. a 1x1 range yields its
// cell, a single column or row intersects with the formula cell, any other
// area is #VALUE!
func singleValue(v Primitive, source CellAddress) Primitive {
	r, ok := v.(Range)
	if !ok {
		return v
	}
	if r.IsSingleCell() {
		return r.ValueAt(0, 0)
	}
	b := r.GetBounds()
	if b.WorksheetID == source.WorksheetID {
		if r.Width() == 1 && source.Row >= b.StartRow && source.Row <= b.EndRow {
			return r.ValueAt(int(source.Row-b.StartRow), 0)
		}
		if r.Height() == 1 && source.Column >= b.StartColumn && source.Column <= b.EndColumn {
			return r.ValueAt(0, int(source.Column-b.StartColumn))
		}
	}
	return errValue("range does not intersect the formula cell")
}

func (ec *EvalContext) deref(v Primitive) Primitive {
	return singleValue(v, ec.Source)
}

// checkNumber turns NaN and infinities into #NUM!
func checkNumber(f float64) (Primitive, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errNum("result is not a finite number")
	}
	return f, nil
}

func boolToNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// coerceNumber converts a single value to a number. text is parsed as a
// number, percentage, currency amount, date or time.
func (ec *EvalContext) coerceNumber(v Primitive) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case bool:
		return boolToNumber(t), nil
	case nil:
		return 0, nil
	case string:
		if n, ok := parseNumber(t); ok {
			return n, nil
		}
		if n, ok := parseDateTime(t, ec.DateSystem); ok {
			return n, nil
		}
		return 0, errValue(fmt.Sprintf("cannot convert '%s' to a number", t))
	case *SpreadsheetError:
		return 0, t
	case Range:
		return ec.coerceNumber(ec.deref(t))
	}
	return 0, errValue(fmt.Sprintf("cannot convert %T to a number", v))
}

var numericText = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
var groupedText = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d*)?$`)

// parseNumber accepts the text forms a cell would accept as a number:
// "12", "-1.5e3", "1,234.5", "$12", "(12)", "50%"
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	sign := 1.0
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		sign = -1
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -sign, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if strings.HasPrefix(s, "-") && sign > 0 {
		sign, s = -1, s[1:]
	}

	scale := 1.0
	if strings.HasSuffix(s, "%") {
		scale = 0.01
		s = strings.TrimSpace(s[:len(s)-1])
	}

	if groupedText.MatchString(s) {
		s = strings.ReplaceAll(s, ",", "")
	}
	if !numericText.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return sign * f * scale, true
}

// formatNumber renders a number the way the General format does: at most
// 15 significant digits, no trailing zeros, scientific for very large or
// very small magnitudes
func formatNumber(f float64) string {
	if f == 0 {
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e15 || abs < 1e-9 {
		s := strconv.FormatFloat(f, 'E', 14, 64)
		mantissa, exp, _ := strings.Cut(s, "E")
		if strings.Contains(mantissa, ".") {
			mantissa = strings.TrimRight(strings.TrimRight(mantissa, "0"), ".")
		}
		return mantissa + "E" + exp
	}
	decimals := 15 - int(math.Floor(math.Log10(abs))) - 1
	if decimals < 0 {
		decimals = 0
	}
	s := strconv.FormatFloat(f, 'f', decimals, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

// coerceString converts a single value to text
func coerceString(v Primitive) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "TRUE"
		}
		return "FALSE"
	case nil:
		return ""
	case *SpreadsheetError:
		return t.ErrorCode.String()
	case Range:
		return coerceString(t.ValueAt(0, 0))
	}
	return fmt.Sprint(v)
}

// coerceBool converts a single value to a logical
func coerceBool(v Primitive) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	case int:
		return t != 0, nil
	case nil:
		return false, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "TRUE":
			return true, nil
		case "FALSE":
			return false, nil
		}
		return false, errValue(fmt.Sprintf("cannot convert '%s' to a logical value", t))
	case *SpreadsheetError:
		return false, t
	case Range:
		return coerceBool(t.ValueAt(0, 0))
	}
	return false, errValue(fmt.Sprintf("cannot convert %T to a logical value", v))
}

// typeRank orders values of different types: numbers < text < logicals < errors
func typeRank(v Primitive) int {
	switch v.(type) {
	case float64:
		return 0
	case string:
		return 1
	case bool:
		return 2
	case *SpreadsheetError:
		return 3
	}
	return 0
}

// blankAs returns the value a blank takes when compared against other
func blankAs(other Primitive) Primitive {
	switch other.(type) {
	case string:
		return ""
	case bool:
		return false
	}
	return 0.0
}

// compareValues orders two single values. a blank takes the zero value of
// whatever it is compared with.
func compareValues(a, b Primitive, caseSensitive bool) int {
	if i, ok := a.(int); ok {
		a = float64(i)
	}
	if i, ok := b.(int); ok {
		b = float64(i)
	}
	if a == nil {
		a = blankAs(b)
	}
	if b == nil {
		b = blankAs(a)
	}
	if ra, rb := typeRank(a), typeRank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case float64:
		return cmp.Compare(x, b.(float64))
	case string:
		y := b.(string)
		if !caseSensitive {
			x, y = strings.ToLower(x), strings.ToLower(y)
		}
		return strings.Compare(x, y)
	case bool:
		return cmp.Compare(boolToNumber(x), boolToNumber(b.(bool)))
	case *SpreadsheetError:
		return cmp.Compare(x.ErrorCode, b.(*SpreadsheetError).ErrorCode)
	}
	return 0
}

// numberArg reads a scalar numeric parameter
func (ec *EvalContext) numberArg(v Primitive) (float64, error) {
	return ec.coerceNumber(ec.deref(v))
}

// intArg reads a numeric parameter truncated toward zero
func (ec *EvalContext) intArg(v Primitive) (int, error) {
	f, err := ec.numberArg(v)
	if err != nil {
		return 0, err
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, errNum(fmt.Sprintf("%s is out of range", formatNumber(f)))
	}
	return int(math.Trunc(f)), nil
}

// stringArg reads a scalar text parameter
func (ec *EvalContext) stringArg(v Primitive) (string, error) {
	v = ec.deref(v)
	if err, ok := v.(*SpreadsheetError); ok {
		return "", err
	}
	return coerceString(v), nil
}

// boolArg reads a scalar logical parameter. numeric text is accepted too.
func (ec *EvalContext) boolArg(v Primitive) (bool, error) {
	v = ec.deref(v)
	if s, ok := v.(string); ok {
		if n, ok := parseNumber(s); ok {
			return n != 0, nil
		}
	}
	return coerceBool(v)
}

// optNumber reads an optional numeric parameter. an argument left empty
// reads as 0, one left out entirely gets def.
func (ec *EvalContext) optNumber(args []Primitive, i int, def float64) (float64, error) {
	if i >= len(args) {
		return def, nil
	}
	return ec.numberArg(args[i])
}

func (ec *EvalContext) optInt(args []Primitive, i int, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	return ec.intArg(args[i])
}

func (ec *EvalContext) optBool(args []Primitive, i int, def bool) (bool, error) {
	if i >= len(args) {
		return def, nil
	}
	return ec.boolArg(args[i])
}

// collectNumbers flattens aggregate arguments the way SUM, AVERAGE and
// friends read them. direct arguments count numbers, logicals and numeric
// text. inside ranges only numbers count. the first error wins.
func (ec *EvalContext) collectNumbers(args []Primitive) ([]float64, error) {
	return ec.collect(args, false)
}

// collectNumbersA is the *A variant: inside ranges text counts as 0 and
// logicals as 1 or 0
func (ec *EvalContext) collectNumbersA(args []Primitive) ([]float64, error) {
	return ec.collect(args, true)
}

func (ec *EvalContext) collect(args []Primitive, countAll bool) ([]float64, error) {
	var out []float64
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for v := range r.IterateValues() {
				switch t := v.(type) {
				case float64:
					out = append(out, t)
				case *SpreadsheetError:
					return nil, t
				case bool:
					if countAll {
						out = append(out, boolToNumber(t))
					}
				case string:
					if countAll {
						out = append(out, 0)
					}
				}
			}
			continue
		}
		n, err := ec.coerceNumber(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// flatten returns the values of an argument as a row-major list. a scalar
// is a list of one.
func flatten(v Primitive) []Primitive {
	if r, ok := v.(Range); ok {
		return rangeValues(r)
	}
	return []Primitive{v}
}

// firstError returns the first error value in values
func firstError(values []Primitive) *SpreadsheetError {
	for _, v := range values {
		if err, ok := v.(*SpreadsheetError); ok {
			return err
		}
	}
	return nil
}

// asRange views an argument as a 2D area. scalars become 1x1 areas.
func (ec *EvalContext) asRange(v Primitive) Range {
	if r, ok := v.(Range); ok {
		return r
	}
	return NewValueRange(RangeAddress{}, []Primitive{v})
}

// pairedNumbers reads two arrays of equal size, keeping positions where
// both hold numbers. errors are reported for the whole first array before
// the second is looked at.
func (ec *EvalContext) pairedNumbers(xArg, yArg Primitive) ([]float64, []float64, error) {
	xs, ys := flatten(xArg), flatten(yArg)
	if len(xs) != len(ys) {
		return nil, nil, errNA("arrays have different sizes")
	}
	if err := firstError(xs); err != nil {
		return nil, nil, err
	}
	if err := firstError(ys); err != nil {
		return nil, nil, err
	}
	var outX, outY []float64
	for i := range xs {
		x, xok := numericValue(xs[i], xArg)
		y, yok := numericValue(ys[i], yArg)
		if xok && yok {
			outX = append(outX, x)
			outY = append(outY, y)
		}
	}
	return outX, outY, nil
}

// numericValue reports whether an array element counts as a number. text
// and logicals given directly as a scalar are converted.
func numericValue(v Primitive, from Primitive) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if _, isRange := from.(Range); !isRange {
			return boolToNumber(t), true
		}
	case string:
		if _, isRange := from.(Range); !isRange {
			return parseNumber(t)
		}
	}
	return 0, false
}

// scalarArgs reads every argument as a number. optional trailing arguments
// left out are filled from defaults.
func (ec *EvalContext) scalarArgs(args []Primitive, defaults ...float64) ([]float64, error) {
	out := make([]float64, max(len(args), len(defaults)))
	copy(out, defaults)
	for i, arg := range args {
		n, err := ec.numberArg(arg)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}
