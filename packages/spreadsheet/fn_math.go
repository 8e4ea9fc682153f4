package spreadsheet

import (
	"fmt"
	"math"
)

func registerMathFunctions(bf *BuiltInFunctions) {
	bf.Register("SUM", 0, -1, fnSum)
	bf.Register("PRODUCT", 0, -1, fnProduct)
	bf.Register("SUMSQ", 0, -1, fnSumSq)
	bf.Register("SUMPRODUCT", 1, -1, fnSumProduct)
	bf.Register("SUMX2MY2", 2, 2, pairSum(func(x, y float64) float64 { return x*x - y*y }))
	bf.Register("SUMX2PY2", 2, 2, pairSum(func(x, y float64) float64 { return x*x + y*y }))
	bf.Register("SUMXMY2", 2, 2, pairSum(func(x, y float64) float64 { return (x - y) * (x - y) }))
	bf.Register("SUBTOTAL", 2, -1, fnSubtotal)

	bf.Register("ABS", 1, 1, mathFn(math.Abs))
	bf.Register("SIGN", 1, 1, mathFn(sign))
	bf.Register("INT", 1, 1, mathFn(math.Floor))
	bf.Register("TRUNC", 1, 2, roundingFn(roundToward, true))
	bf.Register("ROUND", 2, 2, roundingFn(roundHalfAway, false))
	bf.Register("ROUNDUP", 2, 2, roundingFn(roundAway, false))
	bf.Register("ROUNDDOWN", 2, 2, roundingFn(roundToward, false))
	bf.Register("MROUND", 2, 2, fnMround)
	bf.Register("CEILING", 1, 2, fnCeiling)
	bf.Register("FLOOR", 1, 2, fnFloor)
	bf.Register("EVEN", 1, 1, mathFn(even))
	bf.Register("ODD", 1, 1, mathFn(odd))
	bf.Register("MOD", 2, 2, fnMod)
	bf.Register("QUOTIENT", 2, 2, fnQuotient)
	bf.Register("POWER", 2, 2, fnPower)
	bf.Register("SQRT", 1, 1, domainFn(math.Sqrt, func(x float64) bool { return x >= 0 }))
	bf.Register("SQRTPI", 1, 1, domainFn(func(x float64) float64 { return math.Sqrt(x * math.Pi) }, func(x float64) bool { return x >= 0 }))
	bf.Register("EXP", 1, 1, mathFn(math.Exp))
	bf.Register("LN", 1, 1, domainFn(math.Log, positive))
	bf.Register("LOG10", 1, 1, domainFn(math.Log10, positive))
	bf.Register("LOG", 1, 2, fnLog)
	bf.Register("FACT", 1, 1, fnFact)
	bf.Register("FACTDOUBLE", 1, 1, fnFactDouble)
	bf.Register("COMBIN", 2, 2, fnCombin)
	bf.Register("PERMUT", 2, 2, fnPermut)
	bf.Register("GCD", 1, -1, fnGcd)
	bf.Register("LCM", 1, -1, fnLcm)

	bf.Register("PI", 0, 0, func(ec *EvalContext, args ...Primitive) (Primitive, error) { return math.Pi, nil })
	bf.RegisterVolatile("RAND", 0, 0, func(ec *EvalContext, args ...Primitive) (Primitive, error) { return ec.random(), nil })
	bf.RegisterVolatile("RANDBETWEEN", 2, 2, fnRandBetween)

	bf.Register("SIN", 1, 1, mathFn(math.Sin))
	bf.Register("COS", 1, 1, mathFn(math.Cos))
	bf.Register("TAN", 1, 1, mathFn(math.Tan))
	bf.Register("ASIN", 1, 1, domainFn(math.Asin, unitInterval))
	bf.Register("ACOS", 1, 1, domainFn(math.Acos, unitInterval))
	bf.Register("ATAN", 1, 1, mathFn(math.Atan))
	bf.Register("ATAN2", 2, 2, fnAtan2)
	bf.Register("SINH", 1, 1, mathFn(math.Sinh))
	bf.Register("COSH", 1, 1, mathFn(math.Cosh))
	bf.Register("TANH", 1, 1, mathFn(math.Tanh))
	bf.Register("ASINH", 1, 1, mathFn(math.Asinh))
	bf.Register("ACOSH", 1, 1, domainFn(math.Acosh, func(x float64) bool { return x >= 1 }))
	bf.Register("ATANH", 1, 1, domainFn(math.Atanh, func(x float64) bool { return x > -1 && x < 1 }))
	bf.Register("DEGREES", 1, 1, mathFn(func(x float64) float64 { return x * 180 / math.Pi }))
	bf.Register("RADIANS", 1, 1, mathFn(func(x float64) float64 { return x * math.Pi / 180 }))
}

func positive(x float64) bool { return x > 0 }

func unitInterval(x float64) bool { return x >= -1 && x <= 1 }

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// mathFn adapts a one-argument float function
func mathFn(f func(float64) float64) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		x, err := ec.numberArg(args[0])
		if err != nil {
			return nil, err
		}
		return checkNumber(f(x))
	}
}

// domainFn is mathFn with #NUM! outside the domain
func domainFn(f func(float64) float64, inDomain func(float64) bool) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		x, err := ec.numberArg(args[0])
		if err != nil {
			return nil, err
		}
		if !inDomain(x) {
			return nil, errNum(fmt.Sprintf("%s is outside the function's domain", formatNumber(x)))
		}
		return checkNumber(f(x))
	}
}

func fnSum(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := ec.collectNumbers(args)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return checkNumber(total)
}

func fnProduct(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := ec.collectNumbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return 0.0, nil
	}
	product := 1.0
	for _, n := range nums {
		product *= n
	}
	return checkNumber(product)
}

func fnSumSq(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := ec.collectNumbers(args)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, n := range nums {
		total += n * n
	}
	return checkNumber(total)
}

// fnSumProduct multiplies same-shaped arrays element-wise and sums the
// products. anything that is not a number counts as 0.
func fnSumProduct(ec *EvalContext, args ...Primitive) (Primitive, error) {
	if len(args) == 1 {
		if _, ok := args[0].(Range); !ok {
			return ec.coerceNumber(args[0])
		}
	}

	arrays := make([]Range, len(args))
	for i, arg := range args {
		if err, ok := arg.(*SpreadsheetError); ok {
			return nil, err
		}
		arrays[i] = ec.asRange(arg)
	}
	height, width := arrays[0].Height(), arrays[0].Width()
	for _, r := range arrays[1:] {
		if r.Height() != height || r.Width() != width {
			return nil, errValue("SUMPRODUCT arrays must have the same dimensions")
		}
	}

	values := make([][]Primitive, len(arrays))
	for i, r := range arrays {
		values[i] = rangeValues(r)
		if err := firstError(values[i]); err != nil {
			return nil, err
		}
	}

	total := 0.0
	for j := 0; j < height*width; j++ {
		term := 1.0
		for i := range values {
			n, ok := values[i][j].(float64)
			if !ok {
				term = 0
				break
			}
			term *= n
		}
		total += term
	}
	return checkNumber(total)
}

func pairSum(term func(x, y float64) float64) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		xs, ys, err := ec.pairedNumbers(args[0], args[1])
		if err != nil {
			return nil, err
		}
		total := 0.0
		for i := range xs {
			total += term(xs[i], ys[i])
		}
		return checkNumber(total)
	}
}

var subtotalFunctions = map[int]string{
	1: "AVERAGE", 2: "COUNT", 3: "COUNTA", 4: "MAX", 5: "MIN", 6: "PRODUCT",
	7: "STDEV", 8: "STDEVP", 9: "SUM", 10: "VAR", 11: "VARP",
}

// fnSubtotal dispatches on function_num. the 101-111 forms would also skip
// hidden rows, which do not exist here.
func fnSubtotal(ec *EvalContext, args ...Primitive) (Primitive, error) {
	num, err := ec.intArg(args[0])
	if err != nil {
		return nil, err
	}
	if num > 100 {
		num -= 100
	}
	name, ok := subtotalFunctions[num]
	if !ok {
		return nil, errValue(fmt.Sprintf("SUBTOTAL function_num %d is not supported", num))
	}
	return ec.Call(name, args[1:]...)
}

// roundingFn builds ROUND and friends from a decimal rounding mode
func roundingFn(mode func(float64, int) float64, digitsOptional bool) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		x, err := ec.numberArg(args[0])
		if err != nil {
			return nil, err
		}
		digits := 0
		if len(args) > 1 || !digitsOptional {
			if digits, err = ec.intArg(args[1]); err != nil {
				return nil, err
			}
		}
		if digits > 15 {
			digits = 15
		}
		if digits < -308 {
			return 0.0, nil
		}
		return checkNumber(mode(x, digits))
	}
}

func fnMround(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	multiple, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	if multiple == 0 || x == 0 {
		return 0.0, nil
	}
	if (x > 0) != (multiple > 0) {
		return nil, errNum("MROUND number and multiple must have the same sign")
	}
	return checkNumber(multipleOf(x, multiple, roundHalfAway))
}

func significanceArgs(ec *EvalContext, args []Primitive) (float64, float64, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return 0, 0, err
	}
	sig, err := ec.optNumber(args, 1, 1)
	if err != nil {
		return 0, 0, err
	}
	if x > 0 && sig < 0 {
		return 0, 0, errNum("significance must be positive for a positive number")
	}
	return x, sig, nil
}

func fnCeiling(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, sig, err := significanceArgs(ec, args)
	if err != nil {
		return nil, err
	}
	if sig == 0 || x == 0 {
		return 0.0, nil
	}
	return checkNumber(multipleOf(x, sig, func(v float64, _ int) float64 { return math.Ceil(v) }))
}

func fnFloor(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, sig, err := significanceArgs(ec, args)
	if err != nil {
		return nil, err
	}
	if x == 0 {
		return 0.0, nil
	}
	if sig == 0 {
		return nil, errDiv0("FLOOR significance cannot be 0")
	}
	return checkNumber(multipleOf(x, sig, func(v float64, _ int) float64 { return math.Floor(v) }))
}

func even(x float64) float64 {
	return sign(x) * math.Ceil(roundSignificant(math.Abs(x))/2) * 2
}

func odd(x float64) float64 {
	s := sign(x)
	if s == 0 {
		s = 1
	}
	return s * (math.Ceil((roundSignificant(math.Abs(x))+1)/2)*2 - 1)
}

func fnMod(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	d, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	if d == 0 {
		return nil, errDiv0("MOD divisor cannot be 0")
	}
	// the sign of the result follows the divisor
	return checkNumber(n - d*math.Floor(roundSignificant(n/d)))
}

func fnQuotient(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	d, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	if d == 0 {
		return nil, errDiv0("QUOTIENT divisor cannot be 0")
	}
	return checkNumber(math.Trunc(n / d))
}

func fnPower(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	y, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	switch {
	case x == 0 && y == 0:
		return nil, errNum("0^0 is undefined")
	case x == 0 && y < 0:
		return nil, errDiv0("0 raised to a negative power")
	}
	return checkNumber(math.Pow(x, y))
}

func fnLog(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	base, err := ec.optNumber(args, 1, 10)
	if err != nil {
		return nil, err
	}
	if x <= 0 || base <= 0 {
		return nil, errNum("LOG arguments must be positive")
	}
	if base == 1 {
		return nil, errDiv0("LOG base cannot be 1")
	}
	return checkNumber(math.Log(x) / math.Log(base))
}

func fnFact(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	n = math.Floor(n)
	if n < 0 || n > 170 {
		return nil, errNum("FACT argument out of range")
	}
	result := 1.0
	for i := 2.0; i <= n; i++ {
		result *= i
	}
	return result, nil
}

func fnFactDouble(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	n = math.Floor(n)
	if n < -1 || n > 300 {
		return nil, errNum("FACTDOUBLE argument out of range")
	}
	result := 1.0
	for i := n; i > 1; i -= 2 {
		result *= i
	}
	return checkNumber(result)
}

func combinArgs(ec *EvalContext, args []Primitive) (float64, float64, error) {
	n, err := ec.numberArg(args[0])
	if err != nil {
		return 0, 0, err
	}
	k, err := ec.numberArg(args[1])
	if err != nil {
		return 0, 0, err
	}
	n, k = math.Trunc(n), math.Trunc(k)
	if n < 0 || k < 0 || n < k {
		return 0, 0, errNum("number must be at least number_chosen and both non-negative")
	}
	return n, k, nil
}

func combinations(n, k float64) float64 {
	k = math.Min(k, n-k)
	result := 1.0
	for i := 1.0; i <= k; i++ {
		result = result * (n - k + i) / i
	}
	return math.Round(result)
}

func fnCombin(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, k, err := combinArgs(ec, args)
	if err != nil {
		return nil, err
	}
	return checkNumber(combinations(n, k))
}

func fnPermut(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, k, err := combinArgs(ec, args)
	if err != nil {
		return nil, err
	}
	result := 1.0
	for i := 0.0; i < k; i++ {
		result *= n - i
	}
	return checkNumber(result)
}

func integerArgs(ec *EvalContext, args []Primitive, name string) ([]float64, error) {
	nums, err := ec.collectNumbers(args)
	if err != nil {
		return nil, err
	}
	for i, n := range nums {
		if n < 0 {
			return nil, errNum(fmt.Sprintf("%s arguments must be non-negative", name))
		}
		nums[i] = math.Floor(n)
	}
	return nums, nil
}

func gcd(a, b float64) float64 {
	for b != 0 {
		a, b = b, math.Mod(a, b)
	}
	return a
}

func fnGcd(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := integerArgs(ec, args, "GCD")
	if err != nil {
		return nil, err
	}
	result := 0.0
	for _, n := range nums {
		result = gcd(result, n)
	}
	return result, nil
}

func fnLcm(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := integerArgs(ec, args, "LCM")
	if err != nil {
		return nil, err
	}
	result := 1.0
	for _, n := range nums {
		if n == 0 {
			return 0.0, nil
		}
		result = result / gcd(result, n) * n
	}
	return checkNumber(result)
}

func fnRandBetween(ec *EvalContext, args ...Primitive) (Primitive, error) {
	lo, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	hi, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	lo, hi = math.Ceil(lo), math.Floor(hi)
	if lo > hi {
		return nil, errNum("RANDBETWEEN bottom is greater than top")
	}
	return lo + math.Floor(ec.random()*(hi-lo+1)), nil
}

// fnAtan2 takes x first, unlike math.Atan2
func fnAtan2(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	y, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	if x == 0 && y == 0 {
		return nil, errDiv0("ATAN2 of the origin")
	}
	return math.Atan2(y, x), nil
}
