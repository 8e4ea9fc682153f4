package spreadsheet

import (
	"math"
	"testing"
)

func TestNormalDistribution(t *testing.T) {
	assertNumber(t, 0.9087887802741321, invoke("NORM.DIST", 42.0, 40.0, 1.5, true))
	assertNumber(t, 0.10934004978399575, invoke("NORMDIST", 42.0, 40.0, 1.5, false))
	assertNumber(t, 0.8413447460685429, invoke("NORMSDIST", 1.0))
	assertNumber(t, 0.2419707245191434, invoke("NORM.S.DIST", 1.0, false))
	assertNumberWithin(t, 42, 1e-7, invoke("NORM.INV", 0.9087887802741321, 40.0, 1.5))
	assertNumberWithin(t, 1, 1e-8, invoke("NORMSINV", 0.8413447460685429))
	assertNumberWithin(t, 0, 1e-12, invoke("NORM.S.INV", 0.5))
	assertNumber(t, 4.0/3, invoke("STANDARDIZE", 42.0, 40.0, 1.5))
	assertNumberWithin(t, 0.692951912, 1e-9, invoke("CONFIDENCE", 0.05, 2.5, 50.0))

	assertErrorCode(t, ErrorCodeNum, invoke("NORM.DIST", 1.0, 0.0, 0.0, true))
	assertErrorCode(t, ErrorCodeNum, invoke("NORM.S.INV", 0.0))
	assertErrorCode(t, ErrorCodeNum, invoke("NORM.INV", 1.0, 0.0, 1.0))
	assertErrorCode(t, ErrorCodeNum, invoke("STANDARDIZE", 1.0, 0.0, -1.0))
	assertErrorCode(t, ErrorCodeNum, invoke("CONFIDENCE", 1.5, 2.5, 50.0))
	assertErrorCode(t, ErrorCodeValue, invoke("NORM.DIST", "x", 0.0, 1.0, true))
}

func TestStudentsT(t *testing.T) {
	// one degree of freedom is the Cauchy distribution
	assertNumber(t, 0.9946953263673768, invoke("T.DIST", 60.0, 1.0, true))
	assertNumberWithin(t, 0.0007369065209469265, 1e-12, invoke("T.DIST", 8.0, 3.0, false))
	assertNumber(t, 0.25, invoke("T.DIST.RT", 1.0, 1.0))
	assertNumber(t, 0.5, invoke("T.DIST.2T", 1.0, 1.0))
	assertNumber(t, 0.5, invoke("TDIST", 1.0, 1.0, 2.0))
	assertNumber(t, 0.25, invoke("TDIST", 1.0, 1.0, 1.0))
	assertNumberWithin(t, 0.054644930, 1e-8, invoke("TDIST", 1.959999998, 60.0, 2.0))
	assertNumberWithin(t, 1, 1e-8, invoke("T.INV", 0.75, 1.0))
	assertNumberWithin(t, 1, 1e-8, invoke("TINV", 0.5, 1.0))
	assertNumberWithin(t, 1, 1e-8, invoke("T.INV.2T", 0.5, 1.0))

	assertErrorCode(t, ErrorCodeNum, invoke("T.DIST.2T", -1.0, 1.0))
	assertErrorCode(t, ErrorCodeNum, invoke("TDIST", -1.0, 1.0, 2.0))
	assertErrorCode(t, ErrorCodeNum, invoke("TDIST", 1.0, 1.0, 3.0))
	assertErrorCode(t, ErrorCodeNum, invoke("T.DIST", 1.0, 0.0, true))
	assertErrorCode(t, ErrorCodeNum, invoke("TINV", 0.0, 1.0))
}

func TestChiSquaredAndF(t *testing.T) {
	// two degrees of freedom reduce to an exponential with rate 1/2
	assertNumber(t, math.Exp(-3), invoke("CHISQ.DIST.RT", 6.0, 2.0))
	assertNumber(t, math.Exp(-3), invoke("CHIDIST", 6.0, 2.0))
	assertNumber(t, 1-math.Exp(-3), invoke("CHISQ.DIST", 6.0, 2.0, true))
	assertNumber(t, 0.5*math.Exp(-3), invoke("CHISQ.DIST", 6.0, 2.0, false))
	assertNumberWithin(t, 6, 1e-7, invoke("CHISQ.INV.RT", math.Exp(-3), 2.0))
	assertNumberWithin(t, 6, 1e-7, invoke("CHIINV", math.Exp(-3), 2.0))
	assertNumberWithin(t, 6, 1e-7, invoke("CHISQ.INV", 1-math.Exp(-3), 2.0))
	assertNumber(t, 0, invoke("CHISQ.INV.RT", 1.0, 2.0))
	assertErrorCode(t, ErrorCodeNum, invoke("CHISQ.DIST.RT", -1.0, 2.0))
	assertErrorCode(t, ErrorCodeNum, invoke("CHISQ.INV", 0.5, 0.0))

	// F(2, 2) has CDF x/(1+x)
	assertNumber(t, 0.75, invoke("F.DIST", 3.0, 2.0, 2.0, true))
	assertNumber(t, 0.0625, invoke("F.DIST", 3.0, 2.0, 2.0, false))
	assertNumber(t, 0.25, invoke("F.DIST.RT", 3.0, 2.0, 2.0))
	assertNumber(t, 0.25, invoke("FDIST", 3.0, 2.0, 2.0))
	assertNumberWithin(t, 3, 1e-7, invoke("F.INV", 0.75, 2.0, 2.0))
	assertNumberWithin(t, 3, 1e-7, invoke("FINV", 0.25, 2.0, 2.0))
	assertNumberWithin(t, 15.206865, 1e-5, invoke("F.INV.RT", 0.01, 6.0, 4.0))
	assertErrorCode(t, ErrorCodeNum, invoke("F.DIST", 3.0, 0.0, 2.0, true))
	assertErrorCode(t, ErrorCodeNum, invoke("F.INV", 1.5, 2.0, 2.0))
}

func TestBetaAndGamma(t *testing.T) {
	assertNumber(t, 0.5, invoke("BETADIST", 2.0, 1.0, 1.0, 1.0, 3.0))
	assertNumber(t, 0.25, invoke("BETADIST", 0.5, 2.0, 1.0))
	assertNumberWithin(t, 0.6854706, 1e-7, invoke("BETADIST", 2.0, 8.0, 10.0, 1.0, 3.0))
	assertNumberWithin(t, 2, 1e-7, invoke("BETAINV", 0.25, 2.0, 1.0, 1.0, 3.0))
	assertNumberWithin(t, 2, 1e-6, invoke("BETAINV", 0.685470581, 8.0, 10.0, 1.0, 3.0))
	assertNumber(t, 3, invoke("BETAINV", 1.0, 2.0, 1.0, 1.0, 3.0))
	assertErrorCode(t, ErrorCodeNum, invoke("BETADIST", 4.0, 1.0, 1.0, 1.0, 3.0))
	assertErrorCode(t, ErrorCodeNum, invoke("BETADIST", 0.5, 0.0, 1.0))
	assertErrorCode(t, ErrorCodeNum, invoke("BETAINV", 0.5, 1.0, 1.0, 3.0, 1.0))

	// shape 1, scale 2 is an exponential with rate 1/2
	assertNumber(t, 1-math.Exp(-1.5), invoke("GAMMA.DIST", 3.0, 1.0, 2.0, true))
	assertNumber(t, 0.5*math.Exp(-1.5), invoke("GAMMADIST", 3.0, 1.0, 2.0, false))
	assertNumberWithin(t, 0.032639, 1e-6, invoke("GAMMA.DIST", 10.00001131, 9.0, 2.0, false))
	assertNumberWithin(t, 0.068094, 1e-6, invoke("GAMMA.DIST", 10.00001131, 9.0, 2.0, true))
	assertNumberWithin(t, 3, 1e-7, invoke("GAMMA.INV", 1-math.Exp(-1.5), 1.0, 2.0))
	assertNumberWithin(t, 3, 1e-7, invoke("GAMMAINV", 1-math.Exp(-1.5), 1.0, 2.0))
	assertErrorCode(t, ErrorCodeNum, invoke("GAMMA.DIST", 3.0, 0.0, 2.0, true))

	assertNumber(t, 1.7917594692280554, invoke("GAMMALN", 4.0))
	assertNumber(t, 0, invoke("GAMMALN.PRECISE", 1.0))
	assertErrorCode(t, ErrorCodeNum, invoke("GAMMALN", 0.0))
}

func TestContinuousFamilies(t *testing.T) {
	assertNumber(t, 0.0390835557068005, invoke("LOGNORMDIST", 4.0, 3.5, 1.2))
	assertNumber(t, 0.0390835557068005, invoke("LOGNORM.DIST", 4.0, 3.5, 1.2, true))
	assertNumber(t, 0.01761759668181923, invoke("LOGNORM.DIST", 4.0, 3.5, 1.2, false))
	assertNumberWithin(t, 4, 1e-7, invoke("LOGNORM.INV", 0.0390835557068005, 3.5, 1.2))
	assertNumberWithin(t, 4, 1e-7, invoke("LOGINV", 0.0390835557068005, 3.5, 1.2))
	assertErrorCode(t, ErrorCodeNum, invoke("LOGNORM.DIST", 0.0, 3.5, 1.2, true))
	assertErrorCode(t, ErrorCodeNum, invoke("LOGNORM.DIST", 4.0, 3.5, 0.0, true))

	assertNumber(t, 0.8646647167633873, invoke("EXPON.DIST", 0.2, 10.0, true))
	assertNumber(t, 1.353352832366127, invoke("EXPONDIST", 0.2, 10.0, false))
	assertErrorCode(t, ErrorCodeNum, invoke("EXPON.DIST", 0.2, 0.0, true))
	assertErrorCode(t, ErrorCodeNum, invoke("EXPON.DIST", -0.2, 10.0, true))

	assertNumber(t, 0.9295813900692769, invoke("WEIBULL.DIST", 105.0, 20.0, 100.0, true))
	assertNumber(t, 0.03558886402450434, invoke("WEIBULL", 105.0, 20.0, 100.0, false))
	assertErrorCode(t, ErrorCodeNum, invoke("WEIBULL", 105.0, 0.0, 100.0, true))

	assertNumber(t, 0.9729550745276566, invoke("FISHER", 0.75))
	assertNumber(t, 0.75, invoke("FISHERINV", 0.9729550745276566))
	assertErrorCode(t, ErrorCodeNum, invoke("FISHER", 1.0))
}

func TestDiscreteDistributions(t *testing.T) {
	t.Run("Poisson", func(t *testing.T) {
		assertNumber(t, 0.12465201948308113, invoke("POISSON.DIST", 2.0, 5.0, true))
		assertNumber(t, 0.08422433748856833, invoke("POISSON", 2.0, 5.0, false))
		assertNumber(t, 0.08422433748856833, invoke("POISSON", 2.9, 5.0, false))
		assertNumber(t, 1, invoke("POISSON", 0.0, 0.0, false))
		assertNumber(t, 0, invoke("POISSON", 2.0, 0.0, false))
		assertNumber(t, 1, invoke("POISSON", 2.0, 0.0, true))
		assertErrorCode(t, ErrorCodeNum, invoke("POISSON", -1.0, 5.0, true))
	})

	t.Run("Binomial", func(t *testing.T) {
		assertNumber(t, 0.205078125, invoke("BINOM.DIST", 6.0, 10.0, 0.5, false))
		assertNumber(t, 0.828125, invoke("BINOMDIST", 6.0, 10.0, 0.5, true))
		assertNumber(t, 1, invoke("BINOM.DIST", 0.0, 10.0, 0.0, false))
		assertNumber(t, 0, invoke("BINOM.DIST", 2.0, 10.0, 0.0, false))
		assertNumber(t, 1, invoke("BINOM.DIST", 10.0, 10.0, 1.0, false))
		assertNumber(t, 0, invoke("BINOM.DIST", 9.0, 10.0, 1.0, true))
		assertErrorCode(t, ErrorCodeNum, invoke("BINOM.DIST", 11.0, 10.0, 0.5, false))
		assertErrorCode(t, ErrorCodeNum, invoke("BINOM.DIST", 1.0, 10.0, 1.5, false))
	})

	t.Run("CriticalBinomial", func(t *testing.T) {
		assertNumber(t, 4, invoke("CRITBINOM", 6.0, 0.5, 0.75))
		assertNumber(t, 0, invoke("BINOM.INV", 6.0, 0.5, 0.01))
		assertNumber(t, 6, invoke("BINOM.INV", 6.0, 0.5, 1.0))
		assertErrorCode(t, ErrorCodeNum, invoke("CRITBINOM", 6.0, 0.5, 1.5))
	})
}
