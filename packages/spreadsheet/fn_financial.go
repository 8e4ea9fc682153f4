package spreadsheet

import "math"

const (
	irrIterations  = 20
	rateIterations = 50
	solverEpsilon  = 1e-7
)

func registerFinancialFunctions(bf *BuiltInFunctions) {
	bf.Register("PV", 3, 5, fnPV)
	bf.Register("FV", 3, 5, fnFV)
	bf.Register("PMT", 3, 5, fnPMT)
	bf.Register("NPER", 3, 5, fnNper)
	bf.Register("RATE", 3, 6, fnRate)
	bf.Register("IPMT", 4, 6, fnIPMT)
	bf.Register("PPMT", 4, 6, fnPPMT)
	bf.Register("NPV", 2, -1, fnNPV)
	bf.Register("IRR", 1, 2, fnIRR)
	bf.Register("MIRR", 3, 3, fnMIRR)
	bf.Register("XNPV", 3, 3, fnXNPV)
	bf.Register("XIRR", 2, 3, fnXIRR)
	bf.Register("SLN", 3, 3, fnSLN)
	bf.Register("SYD", 4, 4, fnSYD)
	bf.Register("DB", 4, 5, fnDB)
	bf.Register("DDB", 4, 5, fnDDB)
	bf.Register("EFFECT", 2, 2, fnEffect)
	bf.Register("NOMINAL", 2, 2, fnNominal)
}

// annuity terms shared by the time value of money functions. when means
// payments fall at the end (0) or the start (1) of each period.
func presentValue(rate, nper, pmt, fv, when float64) float64 {
	if rate == 0 {
		return -(fv + pmt*nper)
	}
	growth := math.Pow(1+rate, nper)
	return -(fv + pmt*(1+rate*when)*(growth-1)/rate) / growth
}

func futureValue(rate, nper, pmt, pv, when float64) float64 {
	if rate == 0 {
		return -(pv + pmt*nper)
	}
	growth := math.Pow(1+rate, nper)
	return -(pv*growth + pmt*(1+rate*when)*(growth-1)/rate)
}

func payment(rate, nper, pv, fv, when float64) float64 {
	if rate == 0 {
		return -(pv + fv) / nper
	}
	growth := math.Pow(1+rate, nper)
	return -rate * (pv*growth + fv) / ((1 + rate*when) * (growth - 1))
}

func interestPayment(rate, per, nper, pv, fv, when float64) float64 {
	pmt := payment(rate, nper, pv, fv, when)
	if when != 0 && per == 1 {
		return 0
	}
	interest := futureValue(rate, per-1, pmt, pv, when) * rate
	if when != 0 {
		interest /= 1 + rate
	}
	return interest
}

func paymentType(when float64) float64 {
	if when != 0 {
		return 1
	}
	return 0
}

func fnPV(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return presentValue(a[0], a[1], a[2], a[3], paymentType(a[4])), nil
}

func fnFV(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return futureValue(a[0], a[1], a[2], a[3], paymentType(a[4])), nil
}

func fnPMT(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	if a[1] == 0 {
		return nil, errNum("PMT needs a non-zero number of periods")
	}
	return payment(a[0], a[1], a[2], a[3], paymentType(a[4])), nil
}

func fnNper(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	rate, pmt, pv, fv, when := a[0], a[1], a[2], a[3], paymentType(a[4])
	if rate == 0 {
		if pmt == 0 {
			return nil, errNum("NPER needs a non-zero payment")
		}
		return -(pv + fv) / pmt, nil
	}
	num := pmt*(1+rate*when) - fv*rate
	den := pmt*(1+rate*when) + pv*rate
	if den == 0 || num/den <= 0 || rate <= -1 {
		return nil, errNum("NPER has no solution")
	}
	return math.Log(num/den) / math.Log(1+rate), nil
}

// newton finds a root of f starting at guess. derivative is estimated
// numerically when df is nil.
func newton(f, df func(float64) float64, guess float64, iterations int) (float64, bool) {
	x := guess
	for range iterations {
		y := f(x)
		var slope float64
		if df != nil {
			slope = df(x)
		} else {
			h := math.Max(math.Abs(x)*1e-6, 1e-10)
			slope = (f(x+h) - y) / h
		}
		if slope == 0 || math.IsNaN(slope) {
			return 0, false
		}
		next := x - y/slope
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, false
		}
		if math.Abs(next-x) < solverEpsilon {
			return next, true
		}
		x = next
	}
	return 0, false
}

func fnRate(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 0, 0.1)
	if err != nil {
		return nil, err
	}
	nper, pmt, pv, fv, when, guess := a[0], a[1], a[2], a[3], paymentType(a[4]), a[5]
	if nper <= 0 {
		return nil, errNum("RATE needs a positive number of periods")
	}
	balance := func(rate float64) float64 {
		if rate == 0 {
			return pv + pmt*nper + fv
		}
		growth := math.Pow(1+rate, nper)
		return pv*growth + pmt*(1+rate*when)*(growth-1)/rate + fv
	}
	rate, ok := newton(balance, nil, guess, rateIterations)
	if !ok {
		return nil, errNum("RATE did not converge")
	}
	return rate, nil
}

func (ec *EvalContext) periodPayment(args []Primitive) (pmt, ipmt float64, err error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 0, 0)
	if err != nil {
		return 0, 0, err
	}
	rate, per, nper, pv, fv, when := a[0], a[1], a[2], a[3], a[4], paymentType(a[5])
	if per < 1 || per > nper {
		return 0, 0, errNum("period is outside the loan term")
	}
	return payment(rate, nper, pv, fv, when), interestPayment(rate, per, nper, pv, fv, when), nil
}

func fnIPMT(ec *EvalContext, args ...Primitive) (Primitive, error) {
	_, ipmt, err := ec.periodPayment(args)
	if err != nil {
		return nil, err
	}
	return ipmt, nil
}

func fnPPMT(ec *EvalContext, args ...Primitive) (Primitive, error) {
	pmt, ipmt, err := ec.periodPayment(args)
	if err != nil {
		return nil, err
	}
	return pmt - ipmt, nil
}

func netPresentValue(rate float64, flows []float64) float64 {
	total := 0.0
	for i, v := range flows {
		total += v / math.Pow(1+rate, float64(i+1))
	}
	return total
}

func fnNPV(ec *EvalContext, args ...Primitive) (Primitive, error) {
	rate, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	if rate == -1 {
		return nil, errDiv0("NPV rate of -1")
	}
	flows, err := ec.collectNumbers(args[1:])
	if err != nil {
		return nil, err
	}
	return netPresentValue(rate, flows), nil
}

func hasSignChange(flows []float64) bool {
	var pos, neg bool
	for _, v := range flows {
		pos = pos || v > 0
		neg = neg || v < 0
	}
	return pos && neg
}

func fnIRR(ec *EvalContext, args ...Primitive) (Primitive, error) {
	flows, err := ec.collectNumbers(args[:1])
	if err != nil {
		return nil, err
	}
	guess, err := ec.optNumber(args, 1, 0.1)
	if err != nil {
		return nil, err
	}
	if !hasSignChange(flows) {
		return nil, errNum("IRR needs a positive and a negative cash flow")
	}
	npv := func(r float64) float64 {
		total := 0.0
		for i, v := range flows {
			total += v / math.Pow(1+r, float64(i))
		}
		return total
	}
	dnpv := func(r float64) float64 {
		total := 0.0
		for i, v := range flows {
			total -= float64(i) * v / math.Pow(1+r, float64(i+1))
		}
		return total
	}
	rate, ok := newton(npv, dnpv, guess, irrIterations)
	if !ok {
		return nil, errNum("IRR did not converge")
	}
	return rate, nil
}

func fnMIRR(ec *EvalContext, args ...Primitive) (Primitive, error) {
	flows, err := ec.collectNumbers(args[:1])
	if err != nil {
		return nil, err
	}
	rates, err := ec.scalarArgs(args[1:])
	if err != nil {
		return nil, err
	}
	financeRate, reinvestRate := rates[0], rates[1]
	n := float64(len(flows))
	if n < 2 {
		return nil, errDiv0("MIRR needs at least two cash flows")
	}
	var positive, negative []float64
	for _, v := range flows {
		if v > 0 {
			positive, negative = append(positive, v), append(negative, 0)
		} else {
			positive, negative = append(positive, 0), append(negative, v)
		}
	}
	npvPos := netPresentValue(reinvestRate, positive)
	npvNeg := netPresentValue(financeRate, negative)
	if npvPos == 0 || npvNeg == 0 {
		return nil, errDiv0("MIRR needs a positive and a negative cash flow")
	}
	ratio := -npvPos * math.Pow(1+reinvestRate, n) / (npvNeg * (1 + financeRate))
	return math.Pow(ratio, 1/(n-1)) - 1, nil
}

// scheduleArgs reads the cash flows and dates of XNPV and XIRR. every value
// must be numeric and the arrays must match.
func (ec *EvalContext) scheduleArgs(valuesArg, datesArg Primitive) ([]float64, []float64, error) {
	values, dates := flatten(valuesArg), flatten(datesArg)
	if err := firstError(values); err != nil {
		return nil, nil, err
	}
	if err := firstError(dates); err != nil {
		return nil, nil, err
	}
	if len(values) != len(dates) {
		return nil, nil, errNum("values and dates have different sizes")
	}
	flows := make([]float64, len(values))
	days := make([]float64, len(dates))
	for i := range values {
		v, err := ec.coerceNumber(values[i])
		if err != nil {
			return nil, nil, err
		}
		d, err := ec.coerceNumber(dates[i])
		if err != nil {
			return nil, nil, err
		}
		d = math.Floor(d)
		if d < 0 || (i > 0 && d < days[0]) {
			return nil, nil, errNum("dates must not precede the first date")
		}
		flows[i], days[i] = v, d
	}
	return flows, days, nil
}

func scheduleValue(rate float64, flows, days []float64) float64 {
	total := 0.0
	for i, v := range flows {
		total += v / math.Pow(1+rate, (days[i]-days[0])/365)
	}
	return total
}

func fnXNPV(ec *EvalContext, args ...Primitive) (Primitive, error) {
	rate, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	flows, days, err := ec.scheduleArgs(args[1], args[2])
	if err != nil {
		return nil, err
	}
	if rate <= -1 {
		return nil, errNum("XNPV rate must exceed -1")
	}
	return scheduleValue(rate, flows, days), nil
}

func fnXIRR(ec *EvalContext, args ...Primitive) (Primitive, error) {
	flows, days, err := ec.scheduleArgs(args[0], args[1])
	if err != nil {
		return nil, err
	}
	guess, err := ec.optNumber(args, 2, 0.1)
	if err != nil {
		return nil, err
	}
	if !hasSignChange(flows) {
		return nil, errNum("XIRR needs a positive and a negative cash flow")
	}
	dxnpv := func(r float64) float64 {
		total := 0.0
		for i, v := range flows {
			t := (days[i] - days[0]) / 365
			total -= t * v / math.Pow(1+r, t+1)
		}
		return total
	}
	rate, ok := newton(func(r float64) float64 { return scheduleValue(r, flows, days) }, dxnpv, guess, 100)
	if !ok {
		return nil, errNum("XIRR did not converge")
	}
	return rate, nil
}

func fnSLN(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return nil, err
	}
	if a[2] == 0 {
		return nil, errDiv0("SLN life is zero")
	}
	return (a[0] - a[1]) / a[2], nil
}

func fnSYD(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return nil, err
	}
	cost, salvage, life, per := a[0], a[1], a[2], a[3]
	if life <= 0 || per <= 0 || per > life {
		return nil, errNum("SYD period is outside the asset life")
	}
	return (cost - salvage) * (life - per + 1) * 2 / (life * (life + 1)), nil
}

// fnDB is fixed-declining balance depreciation. the rate is rounded to
// three places and a first year shorter than twelve months is prorated.
func fnDB(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 12)
	if err != nil {
		return nil, err
	}
	cost, salvage, life, period, months := a[0], a[1], math.Trunc(a[2]), math.Trunc(a[3]), math.Trunc(a[4])
	if cost < 0 || salvage < 0 || life <= 0 || period <= 0 || months < 1 || months > 12 {
		return nil, errNum("DB arguments are out of range")
	}
	lastPeriod := life
	if months < 12 {
		lastPeriod++
	}
	if period > lastPeriod {
		return nil, errNum("DB period is outside the asset life")
	}
	if cost == 0 {
		return 0.0, nil
	}
	rate := roundHalfAway(1-math.Pow(salvage/cost, 1/life), 3)
	depreciation := cost * rate * months / 12
	total := depreciation
	for p := 2.0; p <= period; p++ {
		if p == life+1 {
			depreciation = (cost - total) * rate * (12 - months) / 12
		} else {
			depreciation = (cost - total) * rate
		}
		total += depreciation
	}
	return depreciation, nil
}

func fnDDB(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 0, 2)
	if err != nil {
		return nil, err
	}
	cost, salvage, life, period, factor := a[0], a[1], a[2], a[3], a[4]
	if cost < 0 || salvage < 0 || life <= 0 || period <= 0 || factor <= 0 || period > life {
		return nil, errNum("DDB arguments are out of range")
	}
	rate := factor / life
	var before float64
	if rate >= 1 {
		rate = 1
		if period == 1 {
			before = cost
		}
	} else {
		before = cost * math.Pow(1-rate, period-1)
	}
	after := cost * math.Pow(1-rate, period)
	depreciation := before - after
	if after < salvage {
		depreciation = before - salvage
	}
	return math.Max(depreciation, 0), nil
}

func fnEffect(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return nil, err
	}
	nominal, periods := a[0], math.Trunc(a[1])
	if nominal <= 0 || periods < 1 {
		return nil, errNum("EFFECT arguments are out of range")
	}
	return math.Pow(1+nominal/periods, periods) - 1, nil
}

func fnNominal(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return nil, err
	}
	effect, periods := a[0], math.Trunc(a[1])
	if effect <= 0 || periods < 1 {
		return nil, errNum("NOMINAL arguments are out of range")
	}
	return periods * (math.Pow(1+effect, 1/periods) - 1), nil
}
