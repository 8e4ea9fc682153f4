package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	radixDigits = 10
	bitLimit    = 1 << 48
)

func registerEngineeringFunctions(bf *BuiltInFunctions) {
	bases := []struct {
		name  string
		radix int
	}{{"BIN", 2}, {"OCT", 8}, {"DEC", 10}, {"HEX", 16}}
	for _, from := range bases {
		for _, to := range bases {
			if from.radix == to.radix {
				continue
			}
			name := from.name + "2" + to.name
			if to.radix == 10 {
				bf.Register(name, 1, 1, toDecimalFn(from.radix))
			} else {
				bf.Register(name, 1, 2, convertBaseFn(from.radix, to.radix))
			}
		}
	}
	bf.Register("BASE", 2, 3, fnBase)
	bf.Register("DECIMAL", 2, 2, fnDecimal)
	bf.Register("BITAND", 2, 2, bitFn(func(a, b int64) int64 { return a & b }))
	bf.Register("BITOR", 2, 2, bitFn(func(a, b int64) int64 { return a | b }))
	bf.Register("BITXOR", 2, 2, bitFn(func(a, b int64) int64 { return a ^ b }))
	bf.Register("BITLSHIFT", 2, 2, shiftFn(1))
	bf.Register("BITRSHIFT", 2, 2, shiftFn(-1))
	bf.Register("DELTA", 1, 2, fnDelta)
	bf.Register("GESTEP", 1, 2, fnGeStep)
}

// radixLimit is the first value a ten digit two's complement number in
// radix cannot hold
func radixLimit(radix int) int64 {
	return int64(math.Pow(float64(radix), radixDigits)) / 2
}

// parseRadix reads up to ten digits. a ten digit value with the top bit set
// is negative.
func parseRadix(s string, radix int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if len(s) > radixDigits {
		return 0, errNum(fmt.Sprintf("'%s' has more than %d digits", s, radixDigits))
	}
	if s[0] == '+' || s[0] == '-' {
		return 0, errNum(fmt.Sprintf("'%s' is not a base %d number", s, radix))
	}
	n, err := strconv.ParseInt(s, radix, 64)
	if err != nil || n < 0 {
		return 0, errNum(fmt.Sprintf("'%s' is not a base %d number", s, radix))
	}
	if limit := radixLimit(radix); n >= limit {
		n -= 2 * limit
	}
	return n, nil
}

// formatRadix renders n in radix. negative numbers are written as ten
// digit two's complement and ignore places.
func formatRadix(n int64, radix int, places int, hasPlaces bool) (Primitive, error) {
	limit := radixLimit(radix)
	if n < -limit || n >= limit {
		return nil, errNum(fmt.Sprintf("%d does not fit in %d base %d digits", n, radixDigits, radix))
	}
	if n < 0 {
		return strings.ToUpper(strconv.FormatInt(n+2*limit, radix)), nil
	}
	s := strings.ToUpper(strconv.FormatInt(n, radix))
	if !hasPlaces {
		return s, nil
	}
	if places < len(s) || places > radixDigits {
		return nil, errNum(fmt.Sprintf("%d places cannot hold '%s'", places, s))
	}
	return strings.Repeat("0", places-len(s)) + s, nil
}

func (ec *EvalContext) radixArg(v Primitive, radix int) (int64, error) {
	v = ec.deref(v)
	switch t := v.(type) {
	case *SpreadsheetError:
		return 0, t
	case bool:
		return 0, errValue("logical values are not numbers")
	}
	if radix == 10 {
		f, err := ec.coerceNumber(v)
		if err != nil {
			return 0, err
		}
		return int64(math.Trunc(f)), nil
	}
	return parseRadix(coerceString(v), radix)
}

func toDecimalFn(from int) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		n, err := ec.radixArg(args[0], from)
		if err != nil {
			return nil, err
		}
		return float64(n), nil
	}
}

func convertBaseFn(from, to int) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		n, err := ec.radixArg(args[0], from)
		if err != nil {
			return nil, err
		}
		places, hasPlaces := 0, len(args) > 1 && args[1] != nil
		if hasPlaces {
			if places, err = ec.intArg(args[1]); err != nil {
				return nil, err
			}
			if places < 0 {
				return nil, errNum("places must not be negative")
			}
		}
		return formatRadix(n, to, places, hasPlaces)
	}
}

func fnBase(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	n, radix, minLength := math.Trunc(a[0]), int(a[1]), int(a[2])
	if n < 0 || n >= 1<<53 || radix < 2 || radix > 36 || minLength < 0 || minLength > 255 {
		return nil, errNum("BASE arguments are out of range")
	}
	s := strings.ToUpper(strconv.FormatInt(int64(n), radix))
	if len(s) < minLength {
		s = strings.Repeat("0", minLength-len(s)) + s
	}
	return s, nil
}

func fnDecimal(ec *EvalContext, args ...Primitive) (Primitive, error) {
	s, err := ec.stringArg(args[0])
	if err != nil {
		return nil, err
	}
	radix, err := ec.intArg(args[1])
	if err != nil {
		return nil, err
	}
	if radix < 2 || radix > 36 || len(s) > 255 {
		return nil, errNum("DECIMAL arguments are out of range")
	}
	if s == "" {
		return 0.0, nil
	}
	n, perr := strconv.ParseUint(s, radix, 64)
	if perr != nil {
		return nil, errNum(fmt.Sprintf("'%s' is not a base %d number", s, radix))
	}
	return float64(n), nil
}

// bitOperand reads a non-negative integer below 2^48
func (ec *EvalContext) bitOperand(v Primitive) (int64, error) {
	f, err := ec.numberArg(v)
	if err != nil {
		return 0, err
	}
	if f < 0 || f >= bitLimit || f != math.Trunc(f) {
		return 0, errNum(fmt.Sprintf("%s is not a valid bit operand", formatNumber(f)))
	}
	return int64(f), nil
}

func bitFn(op func(a, b int64) int64) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		a, err := ec.bitOperand(args[0])
		if err != nil {
			return nil, err
		}
		b, err := ec.bitOperand(args[1])
		if err != nil {
			return nil, err
		}
		return float64(op(a, b)), nil
	}
}

// shiftFn builds BITLSHIFT (direction 1) and BITRSHIFT (-1). a negative
// amount shifts the other way.
func shiftFn(direction int) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		n, err := ec.bitOperand(args[0])
		if err != nil {
			return nil, err
		}
		amount, err := ec.intArg(args[1])
		if err != nil {
			return nil, err
		}
		if amount < -53 || amount > 53 {
			return nil, errNum("shift amount must be between -53 and 53")
		}
		amount *= direction
		if amount < 0 {
			return float64(n >> uint(-amount)), nil
		}
		out := float64(n) * math.Pow(2, float64(amount))
		if out >= bitLimit {
			return nil, errNum("shifted value does not fit in 48 bits")
		}
		return out, nil
	}
}

func fnDelta(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0)
	if err != nil {
		return nil, err
	}
	if a[0] == a[1] {
		return 1.0, nil
	}
	return 0.0, nil
}

func fnGeStep(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0)
	if err != nil {
		return nil, err
	}
	if a[0] >= a[1] {
		return 1.0, nil
	}
	return 0.0, nil
}
