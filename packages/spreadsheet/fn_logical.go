package spreadsheet

func registerLogicalFunctions(bf *BuiltInFunctions) {
	bf.Register("IF", 2, 3, fnIf)
	bf.Register("IFS", 2, -1, fnIfs)
	bf.Register("SWITCH", 3, -1, fnSwitch)
	bf.Register("AND", 1, -1, logicalFold(func(acc, v bool) bool { return acc && v }, true))
	bf.Register("OR", 1, -1, logicalFold(func(acc, v bool) bool { return acc || v }, false))
	bf.Register("XOR", 1, -1, logicalFold(func(acc, v bool) bool { return acc != v }, false))
	bf.Register("NOT", 1, 1, fnNot)
	bf.Register("IFERROR", 2, 2, fnIfError)
	bf.Register("IFNA", 2, 2, fnIfNA)
	bf.Register("TRUE", 0, 0, func(ec *EvalContext, args ...Primitive) (Primitive, error) { return true, nil })
	bf.Register("FALSE", 0, 0, func(ec *EvalContext, args ...Primitive) (Primitive, error) { return false, nil })
}

// fnIf returns the chosen branch as given, so IF can yield a reference. a
// missing false branch yields FALSE.
func fnIf(ec *EvalContext, args ...Primitive) (Primitive, error) {
	cond, err := ec.boolArg(args[0])
	if err != nil {
		return nil, err
	}
	if cond {
		return args[1], nil
	}
	if len(args) < 3 {
		return false, nil
	}
	return args[2], nil
}

func fnIfs(ec *EvalContext, args ...Primitive) (Primitive, error) {
	if len(args)%2 != 0 {
		return nil, errNA("IFS needs condition and value pairs")
	}
	for i := 0; i < len(args); i += 2 {
		cond, err := ec.boolArg(args[i])
		if err != nil {
			return nil, err
		}
		if cond {
			return args[i+1], nil
		}
	}
	return nil, errNA("no IFS condition was true")
}

// fnSwitch compares expression against each case, an odd trailing argument
// is the default
func fnSwitch(ec *EvalContext, args ...Primitive) (Primitive, error) {
	expr := ec.deref(args[0])
	if err, ok := expr.(*SpreadsheetError); ok {
		return nil, err
	}
	rest := args[1:]
	for len(rest) >= 2 {
		candidate := ec.deref(rest[0])
		if err, ok := candidate.(*SpreadsheetError); ok {
			return nil, err
		}
		if typeRank(candidate) == typeRank(expr) && compareValues(expr, candidate, false) == 0 {
			return rest[1], nil
		}
		rest = rest[2:]
	}
	if len(rest) == 1 {
		return rest[0], nil
	}
	return nil, errNA("no SWITCH case matched")
}

// logicalFold combines logical arguments. inside ranges text and blanks
// are skipped; with no logical value at all the result is #VALUE!.
func logicalFold(combine func(acc, v bool) bool, initial bool) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		acc, seen := initial, false
		for _, arg := range args {
			if r, ok := arg.(Range); ok {
				for v := range r.IterateValues() {
					switch t := v.(type) {
					case *SpreadsheetError:
						return nil, t
					case bool:
						acc, seen = combine(acc, t), true
					case float64:
						acc, seen = combine(acc, t != 0), true
					}
				}
				continue
			}
			if arg == nil {
				continue
			}
			b, err := coerceBool(arg)
			if err != nil {
				return nil, err
			}
			acc, seen = combine(acc, b), true
		}
		if !seen {
			return nil, errValue("no logical values")
		}
		return acc, nil
	}
}

func fnNot(ec *EvalContext, args ...Primitive) (Primitive, error) {
	b, err := ec.boolArg(args[0])
	if err != nil {
		return nil, err
	}
	return !b, nil
}

func fnIfError(ec *EvalContext, args ...Primitive) (Primitive, error) {
	v := ec.deref(args[0])
	if _, ok := v.(*SpreadsheetError); ok {
		return ec.deref(args[1]), nil
	}
	return v, nil
}

func fnIfNA(ec *EvalContext, args ...Primitive) (Primitive, error) {
	v := ec.deref(args[0])
	if err, ok := v.(*SpreadsheetError); ok && err.ErrorCode == ErrorCodeNA {
		return ec.deref(args[1]), nil
	}
	return v, nil
}
