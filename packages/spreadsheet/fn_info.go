package spreadsheet

import "math"

func registerInfoFunctions(bf *BuiltInFunctions) {
	bf.Register("ISBLANK", 1, 1, isFn(func(v Primitive) bool { return v == nil }))
	bf.Register("ISNUMBER", 1, 1, isFn(func(v Primitive) bool { _, ok := v.(float64); return ok }))
	bf.Register("ISTEXT", 1, 1, isFn(func(v Primitive) bool { _, ok := v.(string); return ok }))
	bf.Register("ISNONTEXT", 1, 1, isFn(func(v Primitive) bool { _, ok := v.(string); return !ok }))
	bf.Register("ISLOGICAL", 1, 1, isFn(func(v Primitive) bool { _, ok := v.(bool); return ok }))
	bf.Register("ISERROR", 1, 1, isFn(func(v Primitive) bool { _, ok := v.(*SpreadsheetError); return ok }))
	bf.Register("ISERR", 1, 1, isFn(func(v Primitive) bool {
		err, ok := v.(*SpreadsheetError)
		return ok && err.ErrorCode != ErrorCodeNA
	}))
	bf.Register("ISNA", 1, 1, isFn(func(v Primitive) bool {
		err, ok := v.(*SpreadsheetError)
		return ok && err.ErrorCode == ErrorCodeNA
	}))
	bf.Register("ISREF", 1, 1, fnIsRef)
	bf.Register("ISEVEN", 1, 1, parityFn(0))
	bf.Register("ISODD", 1, 1, parityFn(1))
	bf.Register("NA", 0, 0, func(ec *EvalContext, args ...Primitive) (Primitive, error) { return nil, errNA("") })
	bf.Register("ERROR.TYPE", 1, 1, fnErrorType)
	bf.Register("TYPE", 1, 1, fnType)
}

// isFn builds the IS* predicates. they look at the dereferenced value and
// never return an error.
func isFn(test func(Primitive) bool) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		return test(ec.deref(args[0])), nil
	}
}

func fnIsRef(ec *EvalContext, args ...Primitive) (Primitive, error) {
	_, ok := args[0].(Range)
	return ok, nil
}

func parityFn(remainder float64) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		n, err := ec.numberArg(args[0])
		if err != nil {
			return nil, err
		}
		return math.Abs(math.Mod(math.Trunc(n), 2)) == remainder, nil
	}
}

// fnErrorType numbers errors 1 (#NULL!) through 7 (#N/A), anything that is
// not an error is #N/A
func fnErrorType(ec *EvalContext, args ...Primitive) (Primitive, error) {
	if err, ok := ec.deref(args[0]).(*SpreadsheetError); ok && err.ErrorCode < ErrorCodeOther {
		return float64(err.ErrorCode), nil
	}
	return nil, errNA("not an error value")
}

func fnType(ec *EvalContext, args ...Primitive) (Primitive, error) {
	if r, ok := args[0].(Range); ok && !r.IsSingleCell() {
		return 64.0, nil
	}
	switch ec.deref(args[0]).(type) {
	case string:
		return 2.0, nil
	case bool:
		return 4.0, nil
	case *SpreadsheetError:
		return 16.0, nil
	}
	return 1.0, nil
}
