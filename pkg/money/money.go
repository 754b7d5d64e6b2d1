// Package money holds the fixed-point helpers used for all billing arithmetic.
// Amounts are shopspring decimals carrying at most two fraction digits.
package money

import "github.com/shopspring/decimal"

// Scale is the number of minor-unit digits kept for currency amounts.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half-up to currency precision. Amounts handled by the engine are
// never negative, so decimal's half-away-from-zero rounding is half-up here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Percent returns round(total * pct / 100).
func Percent(total, pct decimal.Decimal) decimal.Decimal {
	return Round(total.Mul(pct).Div(hundred))
}

// HasValidScale reports whether d carries no more than two fraction digits.
func HasValidScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}

// IsPositiveAmount reports whether d is a usable payment or assessment amount.
func IsPositiveAmount(d decimal.Decimal) bool {
	return d.IsPositive() && HasValidScale(d)
}

// Sum adds the provided amounts.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// NonNegative clamps negative values to zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Format renders d with exactly two fraction digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
