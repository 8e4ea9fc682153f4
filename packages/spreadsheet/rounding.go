package spreadsheet

import (
	"math"

	"github.com/shopspring/decimal"
)

// rounding goes through decimal so that values like 2.675 round on their
// shortest decimal representation, not their binary approximation

// roundHalfAway rounds to digits decimal places, halves away from zero.
// negative digits round to the left of the decimal point.
func roundHalfAway(x float64, digits int) float64 {
	f, _ := decimal.NewFromFloat(x).Round(int32(digits)).Float64()
	return f
}

// roundAway rounds away from zero
func roundAway(x float64, digits int) float64 {
	f, _ := decimal.NewFromFloat(x).RoundUp(int32(digits)).Float64()
	return f
}

// roundToward rounds toward zero
func roundToward(x float64, digits int) float64 {
	f, _ := decimal.NewFromFloat(x).RoundDown(int32(digits)).Float64()
	return f
}

// roundSignificant keeps 15 significant digits, which hides binary noise
// such as 0.1+0.2 before comparing or flooring
func roundSignificant(x float64) float64 {
	if x == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	exp := int(math.Floor(math.Log10(math.Abs(x))))
	return roundHalfAway(x, 14-exp)
}

// fixedDecimal formats x with digits decimal places, halves away from zero.
// negative digits round to the left and show no decimals.
func fixedDecimal(x float64, digits int) string {
	if digits < -308 {
		return "0"
	}
	d := decimal.NewFromFloat(x).Round(int32(digits))
	if digits < 0 {
		digits = 0
	}
	return d.StringFixed(int32(digits))
}

// multipleOf rounds x to a multiple of step using mode, which is one of
// roundHalfAway, roundAway or roundToward applied to x/step
func multipleOf(x, step float64, mode func(float64, int) float64) float64 {
	q := mode(roundSignificant(x/step), 0)
	d := decimal.NewFromFloat(q).Mul(decimal.NewFromFloat(step))
	f, _ := d.Float64()
	return f
}
