package spreadsheet

import (
	"regexp"
	"strings"
)

func registerCriteriaFunctions(bf *BuiltInFunctions) {
	bf.Register("COUNTIF", 2, 2, fnCountIf)
	bf.Register("COUNTIFS", 2, -1, fnCountIfs)
	bf.Register("SUMIF", 2, 3, conditionalSingle(sumMatches))
	bf.Register("SUMIFS", 3, -1, conditionalMulti(sumMatches))
	bf.Register("AVERAGEIF", 2, 3, conditionalSingle(averageMatches))
	bf.Register("AVERAGEIFS", 3, -1, conditionalMulti(averageMatches))
	bf.Register("MAXIFS", 3, -1, conditionalMulti(extremeMatches(true)))
	bf.Register("MINIFS", 3, -1, conditionalMulti(extremeMatches(false)))
}

type criterionKind uint8

const (
	criterionNone criterionKind = iota // matches nothing
	criterionBlank
	criterionNumber
	criterionBool
	criterionError
	criterionText
)

// criterion is a parsed COUNTIF-style condition such as ">=10", "ab*" or
// "<>". operators are "=", "<>", "<", "<=", ">" and ">=".
type criterion struct {
	op      string
	kind    criterionKind
	number  float64
	boolean bool
	code    ErrorCode
	text    string
	pattern *regexp.Regexp
}

var criterionOps = []string{"<=", ">=", "<>", "=", "<", ">"}

// parseCriterion reads the criteria argument. a blank criteria cell
// matches nothing.
func (ec *EvalContext) parseCriterion(arg Primitive) (*criterion, error) {
	switch v := ec.deref(arg).(type) {
	case float64:
		return &criterion{op: "=", kind: criterionNumber, number: v}, nil
	case bool:
		return &criterion{op: "=", kind: criterionBool, boolean: v}, nil
	case *SpreadsheetError:
		return nil, v
	case nil:
		return &criterion{op: "=", kind: criterionNone}, nil
	case string:
		return ec.parseCriterionText(v), nil
	}
	return &criterion{op: "=", kind: criterionNone}, nil
}

func (ec *EvalContext) parseCriterionText(s string) *criterion {
	c := &criterion{op: "="}
	for _, op := range criterionOps {
		if strings.HasPrefix(s, op) {
			c.op = op
			s = s[len(op):]
			break
		}
	}

	if s == "" {
		c.kind = criterionBlank
		return c
	}
	if n, ok := parseNumber(s); ok {
		c.kind, c.number = criterionNumber, n
		return c
	}
	if n, ok := parseDateTime(s, ec.DateSystem); ok {
		c.kind, c.number = criterionNumber, n
		return c
	}
	switch strings.ToUpper(s) {
	case "TRUE":
		c.kind, c.boolean = criterionBool, true
		return c
	case "FALSE":
		c.kind, c.boolean = criterionBool, false
		return c
	}
	if code, ok := ParseErrorCode(s); ok {
		c.kind, c.code = criterionError, code
		return c
	}
	c.kind, c.text = criterionText, s
	if c.op == "=" || c.op == "<>" {
		c.pattern = wildcardPattern(s)
	}
	return c
}

// wildcardPattern compiles * and ? wildcards, with ~ escaping the next
// character, into a case-insensitive whole-string match
func wildcardPattern(s string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		switch ch := runes[i]; {
		case ch == '~' && i+1 < len(runes):
			i++
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case ch == '*':
			b.WriteString(".*")
		case ch == '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return regexp.MustCompile(b.String())
}

func orderingMatches(op string, cmp int) bool {
	switch op {
	case "=":
		return cmp == 0
	case "<>":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// matches tests one cell value. values of a different type than the
// criterion only ever satisfy "<>".
func (c *criterion) matches(v Primitive) bool {
	switch c.kind {
	case criterionNone:
		return false
	case criterionBlank:
		blank := v == nil || v == ""
		switch c.op {
		case "=":
			return blank
		case "<>":
			return !blank
		}
		return false
	case criterionNumber:
		switch t := v.(type) {
		case float64:
			return orderingMatches(c.op, compareValues(t, c.number, false))
		case string:
			if c.op == "=" || c.op == "<>" {
				n, ok := parseNumber(t)
				return (ok && n == c.number) == (c.op == "=")
			}
		}
		return c.op == "<>"
	case criterionBool:
		if b, ok := v.(bool); ok {
			return orderingMatches(c.op, compareValues(b, c.boolean, false))
		}
		return c.op == "<>"
	case criterionError:
		if e, ok := v.(*SpreadsheetError); ok {
			return (e.ErrorCode == c.code) == (c.op == "=")
		}
		return c.op == "<>"
	case criterionText:
		if c.pattern != nil {
			s, isText := v.(string)
			matched := isText && c.pattern.MatchString(s)
			return matched == (c.op == "=")
		}
		if s, ok := v.(string); ok {
			return orderingMatches(c.op, compareValues(s, c.text, false))
		}
	}
	return false
}

// criteriaRange reads a range argument of a conditional function
func (ec *EvalContext) criteriaRange(arg Primitive) (Range, error) {
	if err, ok := arg.(*SpreadsheetError); ok {
		return nil, err
	}
	return ec.asRange(arg), nil
}

func fnCountIf(ec *EvalContext, args ...Primitive) (Primitive, error) {
	return fnCountIfs(ec, args...)
}

// matchMask evaluates range/criteria pairs and returns, for every cell of
// the first range, whether all criteria hold. every range must have the
// shape height x width.
func (ec *EvalContext) matchMask(pairs []Primitive, height, width int) ([]bool, error) {
	if len(pairs)%2 != 0 {
		return nil, errNA("criteria ranges and criteria must come in pairs")
	}
	mask := make([]bool, height*width)
	for i := range mask {
		mask[i] = true
	}
	for i := 0; i < len(pairs); i += 2 {
		r, err := ec.criteriaRange(pairs[i])
		if err != nil {
			return nil, err
		}
		if r.Height() != height || r.Width() != width {
			return nil, errValue("criteria ranges must all have the same shape")
		}
		c, err := ec.parseCriterion(pairs[i+1])
		if err != nil {
			return nil, err
		}
		j := 0
		for v := range r.IterateValues() {
			if mask[j] && !c.matches(v) {
				mask[j] = false
			}
			j++
		}
	}
	return mask, nil
}

func fnCountIfs(ec *EvalContext, args ...Primitive) (Primitive, error) {
	first, err := ec.criteriaRange(args[0])
	if err != nil {
		return nil, err
	}
	mask, err := ec.matchMask(args, first.Height(), first.Width())
	if err != nil {
		return nil, err
	}
	count := 0.0
	for _, ok := range mask {
		if ok {
			count++
		}
	}
	return count, nil
}

// reducer folds the values picked out by a criteria mask
type reducer func(values []Primitive, mask []bool) (Primitive, error)

// conditionalSingle builds SUMIF-style functions: (range, criteria,
// [value_range]). value_range takes the shape of range from its top left.
func conditionalSingle(reduce reducer) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		r, err := ec.criteriaRange(args[0])
		if err != nil {
			return nil, err
		}
		values := r
		if len(args) > 2 && args[2] != nil {
			vr, err := ec.criteriaRange(args[2])
			if err != nil {
				return nil, err
			}
			if values, err = vr.Offset(0, 0, r.Height(), r.Width()); err != nil {
				return nil, err
			}
		}
		mask, err := ec.matchMask(args[:2], r.Height(), r.Width())
		if err != nil {
			return nil, err
		}
		return reduce(rangeValues(values), mask)
	}
}

// conditionalMulti builds SUMIFS-style functions: (value_range, range1,
// criteria1, ...)
func conditionalMulti(reduce reducer) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		values, err := ec.criteriaRange(args[0])
		if err != nil {
			return nil, err
		}
		mask, err := ec.matchMask(args[1:], values.Height(), values.Width())
		if err != nil {
			return nil, err
		}
		return reduce(rangeValues(values), mask)
	}
}

// pickNumbers returns the numbers at masked positions. an error at a
// masked position is returned.
func pickNumbers(values []Primitive, mask []bool) ([]float64, error) {
	var nums []float64
	for i, v := range values {
		if !mask[i] {
			continue
		}
		switch t := v.(type) {
		case float64:
			nums = append(nums, t)
		case *SpreadsheetError:
			return nil, t
		}
	}
	return nums, nil
}

func sumMatches(values []Primitive, mask []bool) (Primitive, error) {
	nums, err := pickNumbers(values, mask)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func averageMatches(values []Primitive, mask []bool) (Primitive, error) {
	nums, err := pickNumbers(values, mask)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, errDiv0("no cells match the criteria")
	}
	return average(nums), nil
}

func extremeMatches(largest bool) reducer {
	return func(values []Primitive, mask []bool) (Primitive, error) {
		nums, err := pickNumbers(values, mask)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 {
			return 0.0, nil
		}
		if largest {
			return maxOf(nums), nil
		}
		return minOf(nums), nil
	}
}
