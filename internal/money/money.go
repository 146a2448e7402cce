// Package money holds the arithmetic that touches rates. Amounts are int64
// minor units (cents) everywhere; decimal is only used where a rate multiplies
// an amount, so results are exact before the final rounding step.
package money

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PercentOf returns cents*percent/100 rounded half away from zero.
func PercentOf(cents int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(cents).Mul(percent).Div(hundred).Round(0).IntPart()
}

// PointsFor returns floor(cents/100 * perUnit), never negative.
func PointsFor(cents int64, perUnit decimal.Decimal) int64 {
	if cents <= 0 || !perUnit.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(cents).Div(hundred).Mul(perUnit).Floor().IntPart()
}

// Format renders cents with two decimals, e.g. 1234 -> "12.34".
func Format(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// FromDecimal converts a currency amount such as 12.345 to cents, rounding half up.
func FromDecimal(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// DivRound returns num/den rounded half away from zero. den must be positive.
func DivRound(num int64, den int64) int64 {
	return decimal.NewFromInt(num).Div(decimal.NewFromInt(den)).Round(0).IntPart()
}
