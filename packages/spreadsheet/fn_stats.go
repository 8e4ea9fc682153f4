package spreadsheet

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

func registerStatFunctions(bf *BuiltInFunctions) {
	bf.Register("AVERAGE", 1, -1, aggregate(false, 1, average))
	bf.Register("AVERAGEA", 1, -1, aggregate(true, 1, average))
	bf.Register("COUNT", 0, -1, fnCount)
	bf.Register("COUNTA", 0, -1, fnCountA)
	bf.Register("COUNTBLANK", 1, 1, fnCountBlank)
	bf.Register("MAX", 0, -1, aggregate(false, 0, maxOf))
	bf.Register("MAXA", 0, -1, aggregate(true, 0, maxOf))
	bf.Register("MIN", 0, -1, aggregate(false, 0, minOf))
	bf.Register("MINA", 0, -1, aggregate(true, 0, minOf))
	bf.Register("MEDIAN", 1, -1, aggregate(false, 1, median))
	bf.Register("MODE", 1, -1, fnMode)
	bf.Register("MODE.SNGL", 1, -1, fnMode)
	bf.Register("LARGE", 2, 2, kth(true))
	bf.Register("SMALL", 2, 2, kth(false))
	bf.Register("RANK", 2, 3, fnRank)
	bf.Register("RANK.EQ", 2, 3, fnRank)
	bf.Register("PERCENTILE", 2, 2, fnPercentile)
	bf.Register("PERCENTILE.INC", 2, 2, fnPercentile)
	bf.Register("QUARTILE", 2, 2, fnQuartile)
	bf.Register("QUARTILE.INC", 2, 2, fnQuartile)

	bf.Register("STDEV", 1, -1, aggregate(false, 2, sampleStdDev))
	bf.Register("STDEV.S", 1, -1, aggregate(false, 2, sampleStdDev))
	bf.Register("STDEVA", 1, -1, aggregate(true, 2, sampleStdDev))
	bf.Register("STDEVP", 1, -1, aggregate(false, 1, popStdDev))
	bf.Register("STDEV.P", 1, -1, aggregate(false, 1, popStdDev))
	bf.Register("STDEVPA", 1, -1, aggregate(true, 1, popStdDev))
	bf.Register("VAR", 1, -1, aggregate(false, 2, sampleVariance))
	bf.Register("VAR.S", 1, -1, aggregate(false, 2, sampleVariance))
	bf.Register("VARA", 1, -1, aggregate(true, 2, sampleVariance))
	bf.Register("VARP", 1, -1, aggregate(false, 1, popVariance))
	bf.Register("VAR.P", 1, -1, aggregate(false, 1, popVariance))
	bf.Register("VARPA", 1, -1, aggregate(true, 1, popVariance))

	bf.Register("AVEDEV", 1, -1, aggregate(false, 1, aveDev))
	bf.Register("DEVSQ", 1, -1, aggregate(false, 1, devSq))
	bf.Register("GEOMEAN", 1, -1, fnGeoMean)
	bf.Register("HARMEAN", 1, -1, fnHarMean)
	bf.Register("KURT", 1, -1, aggregate(false, 4, func(xs []float64) float64 { return stat.ExKurtosis(xs, nil) }))
	bf.Register("SKEW", 1, -1, aggregate(false, 3, func(xs []float64) float64 { return stat.Skew(xs, nil) }))

	bf.Register("CORREL", 2, 2, regression(2, correlation))
	bf.Register("PEARSON", 2, 2, regression(2, correlation))
	bf.Register("RSQ", 2, 2, regression(2, func(ys, xs []float64) float64 { r := correlation(ys, xs); return r * r }))
	bf.Register("COVAR", 2, 2, regression(1, popCovariance))
	bf.Register("COVARIANCE.P", 2, 2, regression(1, popCovariance))
	bf.Register("COVARIANCE.S", 2, 2, regression(2, func(ys, xs []float64) float64 { return stat.Covariance(xs, ys, nil) }))
	bf.Register("SLOPE", 2, 2, regression(2, slope))
	bf.Register("INTERCEPT", 2, 2, regression(2, intercept))
	bf.Register("STEYX", 2, 2, regression(3, steyx))
	bf.Register("FORECAST", 3, 3, fnForecast)
	bf.Register("FORECAST.LINEAR", 3, 3, fnForecast)
}

// aggregate builds a function over collected numbers. fewer than minCount
// numbers is #DIV/0!, with minCount 0 an empty set gives 0.
func aggregate(countAll bool, minCount int, f func([]float64) float64) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		nums, err := ec.collect(args, countAll)
		if err != nil {
			return nil, err
		}
		if len(nums) == 0 && minCount == 0 {
			return 0.0, nil
		}
		if len(nums) < minCount {
			return nil, errDiv0(fmt.Sprintf("needs at least %d numeric value(s)", minCount))
		}
		return checkNumber(f(nums))
	}
}

func average(xs []float64) float64 { return stat.Mean(xs, nil) }

func maxOf(xs []float64) float64 { return slices.Max(xs) }

func minOf(xs []float64) float64 { return slices.Min(xs) }

func median(xs []float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func sampleVariance(xs []float64) float64 { return stat.Variance(xs, nil) }

func sampleStdDev(xs []float64) float64 { return stat.StdDev(xs, nil) }

func popVariance(xs []float64) float64 { return stat.PopVariance(xs, nil) }

func popStdDev(xs []float64) float64 { return stat.PopStdDev(xs, nil) }

func aveDev(xs []float64) float64 {
	mean := stat.Mean(xs, nil)
	total := 0.0
	for _, x := range xs {
		total += math.Abs(x - mean)
	}
	return total / float64(len(xs))
}

func devSq(xs []float64) float64 {
	mean := stat.Mean(xs, nil)
	total := 0.0
	for _, x := range xs {
		total += (x - mean) * (x - mean)
	}
	return total
}

// fnCount counts numbers. direct arguments count when they are numbers,
// logicals or numeric text; errors are never counted and never returned.
func fnCount(ec *EvalContext, args ...Primitive) (Primitive, error) {
	count := 0.0
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for v := range r.IterateValues() {
				if _, isNum := v.(float64); isNum {
					count++
				}
			}
			continue
		}
		switch t := arg.(type) {
		case float64, bool:
			count++
		case string:
			if _, ok := parseNumber(t); ok {
				count++
			} else if _, ok := parseDateTime(t, ec.DateSystem); ok {
				count++
			}
		}
	}
	return count, nil
}

// fnCountA counts everything that is not blank, errors included
func fnCountA(ec *EvalContext, args ...Primitive) (Primitive, error) {
	count := 0.0
	for _, arg := range args {
		if r, ok := arg.(Range); ok {
			for v := range r.IterateValues() {
				if v != nil {
					count++
				}
			}
			continue
		}
		count++
	}
	return count, nil
}

// fnCountBlank counts empty cells and cells holding empty text
func fnCountBlank(ec *EvalContext, args ...Primitive) (Primitive, error) {
	r, ok := args[0].(Range)
	if !ok {
		if err, isErr := args[0].(*SpreadsheetError); isErr {
			return nil, err
		}
		return nil, errValue("COUNTBLANK requires a range")
	}
	count := 0.0
	for v := range r.IterateValues() {
		if v == nil || v == "" {
			count++
		}
	}
	return count, nil
}

// fnMode returns the most frequent value, the earliest one on ties. no
// repeated value is #N/A.
func fnMode(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := ec.collectNumbers(args)
	if err != nil {
		return nil, err
	}
	counts := make(map[float64]int, len(nums))
	for _, n := range nums {
		counts[n]++
	}
	best, bestCount := 0.0, 1
	for _, n := range nums {
		if counts[n] > bestCount {
			best, bestCount = n, counts[n]
		}
	}
	if bestCount < 2 {
		return nil, errNA("MODE found no repeated value")
	}
	return best, nil
}

func kth(largest bool) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		nums, err := ec.collectNumbers(args[:1])
		if err != nil {
			return nil, err
		}
		k, err := ec.numberArg(args[1])
		if err != nil {
			return nil, err
		}
		k = math.Ceil(k)
		if k < 1 || int(k) > len(nums) {
			return nil, errNum(fmt.Sprintf("k=%s is outside 1..%d", formatNumber(k), len(nums)))
		}
		sorted := slices.Clone(nums)
		slices.Sort(sorted)
		if largest {
			return sorted[len(sorted)-int(k)], nil
		}
		return sorted[int(k)-1], nil
	}
}

// fnRank returns the position of number in ref, descending unless order
// is non-zero. number must be present in ref.
func fnRank(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	if _, ok := args[1].(Range); !ok {
		return nil, errValue("RANK requires a range")
	}
	nums, err := ec.collectNumbers(args[1:2])
	if err != nil {
		return nil, err
	}
	order, err := ec.optNumber(args, 2, 0)
	if err != nil {
		return nil, err
	}
	rank, found := 1.0, false
	for _, n := range nums {
		switch {
		case n == x:
			found = true
		case order == 0 && n > x, order != 0 && n < x:
			rank++
		}
	}
	if !found {
		return nil, errNA(fmt.Sprintf("%s is not in the list", formatNumber(x)))
	}
	return rank, nil
}

// percentile interpolates linearly between closest ranks, inclusive of
// both ends
func percentile(sorted []float64, p float64) float64 {
	pos := p * float64(len(sorted)-1)
	lower := math.Floor(pos)
	i := int(lower)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (pos-lower)*(sorted[i+1]-sorted[i])
}

func sortedNumbers(ec *EvalContext, arg Primitive) ([]float64, error) {
	nums, err := ec.collectNumbers([]Primitive{arg})
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, errNum("no numeric values")
	}
	slices.Sort(nums)
	return nums, nil
}

func fnPercentile(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := sortedNumbers(ec, args[0])
	if err != nil {
		return nil, err
	}
	p, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	if p < 0 || p > 1 {
		return nil, errNum("percentile must be between 0 and 1")
	}
	return percentile(nums, p), nil
}

func fnQuartile(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := sortedNumbers(ec, args[0])
	if err != nil {
		return nil, err
	}
	q, err := ec.numberArg(args[1])
	if err != nil {
		return nil, err
	}
	q = math.Trunc(q)
	if q < 0 || q > 4 {
		return nil, errNum("quart must be between 0 and 4")
	}
	return percentile(nums, q/4), nil
}

func fnGeoMean(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := ec.collectNumbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, errNum("GEOMEAN needs at least one number")
	}
	for _, n := range nums {
		if n <= 0 {
			return nil, errNum("GEOMEAN values must be positive")
		}
	}
	return checkNumber(stat.GeometricMean(nums, nil))
}

func fnHarMean(ec *EvalContext, args ...Primitive) (Primitive, error) {
	nums, err := ec.collectNumbers(args)
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, errNum("HARMEAN needs at least one number")
	}
	for _, n := range nums {
		if n <= 0 {
			return nil, errNum("HARMEAN values must be positive")
		}
	}
	return checkNumber(stat.HarmonicMean(nums, nil))
}

// regression builds the two-array functions. known_y comes first, as in
// SLOPE(known_y, known_x).
func regression(minPairs int, f func(ys, xs []float64) float64) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		ys, xs, err := ec.pairedNumbers(args[0], args[1])
		if err != nil {
			return nil, err
		}
		if len(xs) < minPairs {
			return nil, errDiv0(fmt.Sprintf("needs at least %d pairs of numbers", minPairs))
		}
		result := f(ys, xs)
		if math.IsNaN(result) || math.IsInf(result, 0) {
			return nil, errDiv0("a data set has zero variance")
		}
		return result, nil
	}
}

func correlation(ys, xs []float64) float64 {
	if stat.PopVariance(xs, nil) == 0 || stat.PopVariance(ys, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}

func popCovariance(ys, xs []float64) float64 {
	n := float64(len(xs))
	return stat.Covariance(xs, ys, nil) * (n - 1) / n
}

func slope(ys, xs []float64) float64 {
	if stat.PopVariance(xs, nil) == 0 {
		return math.NaN()
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta
}

func intercept(ys, xs []float64) float64 {
	if stat.PopVariance(xs, nil) == 0 {
		return math.NaN()
	}
	alpha, _ := stat.LinearRegression(xs, ys, nil, false)
	return alpha
}

func steyx(ys, xs []float64) float64 {
	if stat.PopVariance(xs, nil) == 0 {
		return math.NaN()
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	residual := 0.0
	for i := range xs {
		d := ys[i] - (alpha + beta*xs[i])
		residual += d * d
	}
	return math.Sqrt(residual / float64(len(xs)-2))
}

func fnForecast(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	ys, xs, err := ec.pairedNumbers(args[1], args[2])
	if err != nil {
		return nil, err
	}
	if len(xs) < 1 || stat.PopVariance(xs, nil) == 0 {
		return nil, errDiv0("known_x has zero variance")
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	return checkNumber(alpha + beta*x)
}
