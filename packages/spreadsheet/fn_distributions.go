package spreadsheet

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// continuous is the subset of the gonum distributions the spreadsheet
// functions evaluate
type continuous interface {
	CDF(x float64) float64
	Prob(x float64) float64
}

type invertible interface {
	continuous
	Quantile(p float64) float64
	Survival(x float64) float64
}

func registerDistributionFunctions(bf *BuiltInFunctions) {
	bf.Register("NORMDIST", 4, 4, fnNormDist)
	bf.Register("NORM.DIST", 4, 4, fnNormDist)
	bf.Register("NORMSDIST", 1, 1, fnNormSDist)
	bf.Register("NORM.S.DIST", 2, 2, fnNormSDist)
	bf.Register("NORMINV", 3, 3, fnNormInv)
	bf.Register("NORM.INV", 3, 3, fnNormInv)
	bf.Register("NORMSINV", 1, 1, fnNormSInv)
	bf.Register("NORM.S.INV", 1, 1, fnNormSInv)

	bf.Register("TDIST", 3, 3, fnTDist)
	bf.Register("T.DIST", 3, 3, fnTDistLeft)
	bf.Register("T.DIST.2T", 2, 2, tailFn(studentsT, 2))
	bf.Register("T.DIST.RT", 2, 2, tailFn(studentsT, 1))
	bf.Register("TINV", 2, 2, fnTInvTwoTailed)
	bf.Register("T.INV.2T", 2, 2, fnTInvTwoTailed)
	bf.Register("T.INV", 2, 2, inverseFn(studentsT, false))

	bf.Register("CHIDIST", 2, 2, tailFn(chiSquared, 1))
	bf.Register("CHISQ.DIST.RT", 2, 2, tailFn(chiSquared, 1))
	bf.Register("CHISQ.DIST", 3, 3, distFn(chiSquared))
	bf.Register("CHIINV", 2, 2, inverseFn(chiSquared, true))
	bf.Register("CHISQ.INV.RT", 2, 2, inverseFn(chiSquared, true))
	bf.Register("CHISQ.INV", 2, 2, inverseFn(chiSquared, false))

	bf.Register("FDIST", 3, 3, tailFn(fisherF, 1))
	bf.Register("F.DIST.RT", 3, 3, tailFn(fisherF, 1))
	bf.Register("F.DIST", 4, 4, distFn(fisherF))
	bf.Register("FINV", 3, 3, inverseFn(fisherF, true))
	bf.Register("F.INV.RT", 3, 3, inverseFn(fisherF, true))
	bf.Register("F.INV", 3, 3, inverseFn(fisherF, false))

	bf.Register("BETADIST", 3, 5, fnBetaDist)
	bf.Register("BETAINV", 3, 5, fnBetaInv)
	bf.Register("GAMMADIST", 4, 4, distFn(gammaDist))
	bf.Register("GAMMA.DIST", 4, 4, distFn(gammaDist))
	bf.Register("GAMMAINV", 3, 3, inverseFn(gammaDist, false))
	bf.Register("GAMMA.INV", 3, 3, inverseFn(gammaDist, false))
	bf.Register("GAMMALN", 1, 1, fnGammaLn)
	bf.Register("GAMMALN.PRECISE", 1, 1, fnGammaLn)

	bf.Register("LOGNORMDIST", 3, 3, fnLogNormDist)
	bf.Register("LOGNORM.DIST", 4, 4, fnLogNormDist)
	bf.Register("LOGINV", 3, 3, inverseFn(logNormal, false))
	bf.Register("LOGNORM.INV", 3, 3, inverseFn(logNormal, false))
	bf.Register("EXPONDIST", 3, 3, distFn(exponential))
	bf.Register("EXPON.DIST", 3, 3, distFn(exponential))
	bf.Register("WEIBULL", 4, 4, distFn(weibull))
	bf.Register("WEIBULL.DIST", 4, 4, distFn(weibull))
	bf.Register("POISSON", 3, 3, fnPoisson)
	bf.Register("POISSON.DIST", 3, 3, fnPoisson)
	bf.Register("BINOMDIST", 4, 4, fnBinomDist)
	bf.Register("BINOM.DIST", 4, 4, fnBinomDist)
	bf.Register("CRITBINOM", 3, 3, fnCritBinom)
	bf.Register("BINOM.INV", 3, 3, fnCritBinom)

	bf.Register("STANDARDIZE", 3, 3, fnStandardize)
	bf.Register("FISHER", 1, 1, domainFn(math.Atanh, func(x float64) bool { return x > -1 && x < 1 }))
	bf.Register("FISHERINV", 1, 1, mathFn(math.Tanh))
	bf.Register("CONFIDENCE", 3, 3, fnConfidence)
	bf.Register("CONFIDENCE.NORM", 3, 3, fnConfidence)
}

// a family builds a distribution from its parameters, rejecting values
// outside its domain
type family[D continuous] struct {
	params int
	build  func(p []float64) (D, bool)
	// support reports whether x is a valid point to evaluate
	support func(x float64) bool
}

func nonNegative(x float64) bool { return x >= 0 }

func anyReal(float64) bool { return true }

var (
	studentsT = family[invertible]{1, func(p []float64) (invertible, bool) {
		df := math.Trunc(p[0])
		return distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}, df >= 1
	}, anyReal}
	chiSquared = family[invertible]{1, func(p []float64) (invertible, bool) {
		df := math.Trunc(p[0])
		return distuv.ChiSquared{K: df}, df >= 1 && df <= 1e10
	}, nonNegative}
	fisherF = family[invertible]{2, func(p []float64) (invertible, bool) {
		d1, d2 := math.Trunc(p[0]), math.Trunc(p[1])
		return distuv.F{D1: d1, D2: d2}, d1 >= 1 && d2 >= 1 && d1 < 1e10 && d2 < 1e10
	}, nonNegative}
	// spreadsheets give gamma a scale, gonum a rate
	gammaDist = family[invertible]{2, func(p []float64) (invertible, bool) {
		return distuv.Gamma{Alpha: p[0], Beta: 1 / p[1]}, p[0] > 0 && p[1] > 0
	}, nonNegative}
	logNormal = family[invertible]{2, func(p []float64) (invertible, bool) {
		return distuv.LogNormal{Mu: p[0], Sigma: p[1]}, p[1] > 0
	}, positive}
	exponential = family[continuous]{1, func(p []float64) (continuous, bool) {
		return distuv.Exponential{Rate: p[0]}, p[0] > 0
	}, nonNegative}
	weibull = family[continuous]{2, func(p []float64) (continuous, bool) {
		return distuv.Weibull{K: p[0], Lambda: p[1]}, p[0] > 0 && p[1] > 0
	}, nonNegative}
)

func (f family[D]) read(ec *EvalContext, args []Primitive) (D, error) {
	var zero D
	params, err := ec.scalarArgs(args[:f.params])
	if err != nil {
		return zero, err
	}
	d, ok := f.build(params)
	if !ok {
		return zero, errNum("distribution parameters are out of range")
	}
	return d, nil
}

// point reads the evaluation point followed by the parameters
func (f family[D]) point(ec *EvalContext, args []Primitive) (float64, D, error) {
	var zero D
	x, err := ec.numberArg(args[0])
	if err != nil {
		return 0, zero, err
	}
	d, err := f.read(ec, args[1:])
	if err != nil {
		return 0, zero, err
	}
	if !f.support(x) {
		return 0, zero, errNum("value is outside the distribution's support")
	}
	return x, d, nil
}

func density(d continuous, x float64, cumulative bool) float64 {
	if cumulative {
		return d.CDF(x)
	}
	return d.Prob(x)
}

// distFn evaluates f(x, params..., cumulative)
func distFn[D continuous](f family[D]) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		x, d, err := f.point(ec, args)
		if err != nil {
			return nil, err
		}
		cumulative, err := ec.boolArg(args[f.params+1])
		if err != nil {
			return nil, err
		}
		return density(d, x, cumulative), nil
	}
}

// tailFn evaluates the right tail probability, doubled for two tails
func tailFn(f family[invertible], tails float64) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		x, d, err := f.point(ec, args)
		if err != nil {
			return nil, err
		}
		if tails == 2 && x < 0 {
			return nil, errNum("value must not be negative")
		}
		return tails * d.Survival(x), nil
	}
}

func probabilityArg(ec *EvalContext, v Primitive) (float64, error) {
	p, err := ec.numberArg(v)
	if err != nil {
		return 0, err
	}
	if p < 0 || p > 1 {
		return 0, errNum("probability must be between 0 and 1")
	}
	return p, nil
}

// inverseFn evaluates the quantile of p, or of 1-p for right tail inverses
func inverseFn(f family[invertible], rightTail bool) Function {
	return func(ec *EvalContext, args ...Primitive) (Primitive, error) {
		p, err := probabilityArg(ec, args[0])
		if err != nil {
			return nil, err
		}
		d, err := f.read(ec, args[1:])
		if err != nil {
			return nil, err
		}
		if rightTail {
			p = 1 - p
		}
		if p <= 0 || p >= 1 {
			// distributions bounded below at zero invert 0 to 0
			if p == 0 && f.support(0) && !f.support(-1) {
				return 0.0, nil
			}
			return nil, errNum("probability must be strictly between 0 and 1")
		}
		return d.Quantile(p), nil
	}
}

func normalArgs(ec *EvalContext, args []Primitive) (distuv.Normal, error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return distuv.Normal{}, err
	}
	if a[1] <= 0 {
		return distuv.Normal{}, errNum("standard deviation must be positive")
	}
	return distuv.Normal{Mu: a[0], Sigma: a[1]}, nil
}

func fnNormDist(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	d, err := normalArgs(ec, args[1:3])
	if err != nil {
		return nil, err
	}
	cumulative, err := ec.boolArg(args[3])
	if err != nil {
		return nil, err
	}
	return density(d, x, cumulative), nil
}

// fnNormSDist is cumulative unless a second argument says otherwise
func fnNormSDist(ec *EvalContext, args ...Primitive) (Primitive, error) {
	z, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	cumulative, err := ec.optBool(args, 1, true)
	if err != nil {
		return nil, err
	}
	return density(distuv.UnitNormal, z, cumulative), nil
}

func openProbability(ec *EvalContext, v Primitive) (float64, error) {
	p, err := ec.numberArg(v)
	if err != nil {
		return 0, err
	}
	if p <= 0 || p >= 1 {
		return 0, errNum("probability must be strictly between 0 and 1")
	}
	return p, nil
}

func fnNormInv(ec *EvalContext, args ...Primitive) (Primitive, error) {
	p, err := openProbability(ec, args[0])
	if err != nil {
		return nil, err
	}
	d, err := normalArgs(ec, args[1:3])
	if err != nil {
		return nil, err
	}
	return d.Quantile(p), nil
}

func fnNormSInv(ec *EvalContext, args ...Primitive) (Primitive, error) {
	p, err := openProbability(ec, args[0])
	if err != nil {
		return nil, err
	}
	return distuv.UnitNormal.Quantile(p), nil
}

// fnTDist is the legacy TDIST(x, df, tails), defined for x >= 0 only
func fnTDist(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, d, err := studentsT.point(ec, args[:2])
	if err != nil {
		return nil, err
	}
	tails, err := ec.intArg(args[2])
	if err != nil {
		return nil, err
	}
	if x < 0 || (tails != 1 && tails != 2) {
		return nil, errNum("TDIST needs x >= 0 and 1 or 2 tails")
	}
	return float64(tails) * d.Survival(x), nil
}

func fnTDistLeft(ec *EvalContext, args ...Primitive) (Primitive, error) {
	return distFn(studentsT)(ec, args...)
}

func fnTInvTwoTailed(ec *EvalContext, args ...Primitive) (Primitive, error) {
	p, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	if p <= 0 || p > 1 {
		return nil, errNum("probability must be in (0, 1]")
	}
	d, err := studentsT.read(ec, args[1:])
	if err != nil {
		return nil, err
	}
	return math.Abs(d.Quantile(p / 2)), nil
}

// betaArgs reads alpha, beta and the optional bounds A and B
func betaArgs(ec *EvalContext, args []Primitive) (distuv.Beta, float64, float64, error) {
	a, err := ec.scalarArgs(args, 0, 0, 0, 1)
	if err != nil {
		return distuv.Beta{}, 0, 0, err
	}
	alpha, beta, lower, upper := a[0], a[1], a[2], a[3]
	if alpha <= 0 || beta <= 0 || lower >= upper {
		return distuv.Beta{}, 0, 0, errNum("BETA parameters are out of range")
	}
	return distuv.Beta{Alpha: alpha, Beta: beta}, lower, upper, nil
}

func fnBetaDist(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	d, lower, upper, err := betaArgs(ec, args[1:])
	if err != nil {
		return nil, err
	}
	if x < lower || x > upper {
		return nil, errNum("x is outside the bounds")
	}
	return d.CDF((x - lower) / (upper - lower)), nil
}

func fnBetaInv(ec *EvalContext, args ...Primitive) (Primitive, error) {
	p, err := probabilityArg(ec, args[0])
	if err != nil {
		return nil, err
	}
	d, lower, upper, err := betaArgs(ec, args[1:])
	if err != nil {
		return nil, err
	}
	if p == 0 || p == 1 {
		return lower + p*(upper-lower), nil
	}
	return lower + d.Quantile(p)*(upper-lower), nil
}

func fnGammaLn(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	if x <= 0 {
		return nil, errNum("GAMMALN needs a positive value")
	}
	lg, _ := math.Lgamma(x)
	return lg, nil
}

// fnLogNormDist is cumulative for the three argument legacy form
func fnLogNormDist(ec *EvalContext, args ...Primitive) (Primitive, error) {
	x, d, err := logNormal.point(ec, args[:3])
	if err != nil {
		return nil, err
	}
	cumulative, err := ec.optBool(args, 3, true)
	if err != nil {
		return nil, err
	}
	return density(d, x, cumulative), nil
}

func fnPoisson(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args[:2])
	if err != nil {
		return nil, err
	}
	k, mean := math.Trunc(a[0]), a[1]
	cumulative, err := ec.boolArg(args[2])
	if err != nil {
		return nil, err
	}
	if k < 0 || mean < 0 {
		return nil, errNum("POISSON arguments must not be negative")
	}
	if mean == 0 {
		if k == 0 || cumulative {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return density(distuv.Poisson{Lambda: mean}, k, cumulative), nil
}

func binomialArgs(ec *EvalContext, args []Primitive) (n, p float64, err error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return 0, 0, err
	}
	n, p = math.Trunc(a[0]), a[1]
	if n < 0 || p < 0 || p > 1 {
		return 0, 0, errNum("BINOM arguments are out of range")
	}
	return n, p, nil
}

// binomial evaluates the distribution, handling the degenerate
// probabilities gonum leaves undefined
func binomial(k, n, p float64, cumulative bool) float64 {
	switch p {
	case 0:
		return 1
	case 1:
		if k >= n {
			return 1
		}
		return 0
	}
	return density(distuv.Binomial{N: n, P: p}, k, cumulative)
}

func fnBinomDist(ec *EvalContext, args ...Primitive) (Primitive, error) {
	k, err := ec.numberArg(args[0])
	if err != nil {
		return nil, err
	}
	n, p, err := binomialArgs(ec, args[1:3])
	if err != nil {
		return nil, err
	}
	cumulative, err := ec.boolArg(args[3])
	if err != nil {
		return nil, err
	}
	k = math.Trunc(k)
	if k < 0 || k > n {
		return nil, errNum("successes must be between 0 and trials")
	}
	if !cumulative && (p == 0 || p == 1) {
		if (p == 0 && k == 0) || (p == 1 && k == n) {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return binomial(k, n, p, cumulative), nil
}

// fnCritBinom returns the smallest k whose cumulative probability reaches
// alpha
func fnCritBinom(ec *EvalContext, args ...Primitive) (Primitive, error) {
	n, p, err := binomialArgs(ec, args[:2])
	if err != nil {
		return nil, err
	}
	alpha, err := probabilityArg(ec, args[2])
	if err != nil {
		return nil, err
	}
	for k := 0.0; k < n; k++ {
		if binomial(k, n, p, true) >= alpha {
			return k, nil
		}
	}
	return n, nil
}

func fnStandardize(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return nil, err
	}
	if a[2] <= 0 {
		return nil, errNum("standard deviation must be positive")
	}
	return (a[0] - a[1]) / a[2], nil
}

func fnConfidence(ec *EvalContext, args ...Primitive) (Primitive, error) {
	a, err := ec.scalarArgs(args)
	if err != nil {
		return nil, err
	}
	alpha, sd, size := a[0], a[1], math.Trunc(a[2])
	if alpha <= 0 || alpha >= 1 || sd <= 0 || size < 1 {
		return nil, errNum("CONFIDENCE arguments are out of range")
	}
	return distuv.UnitNormal.Quantile(1-alpha/2) * sd / math.Sqrt(size), nil
}
