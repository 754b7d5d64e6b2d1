package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPercentRoundsHalfUp(t *testing.T) {
	total := decimal.RequireFromString("10000.00")
	assert.Equal(t, "4215.00", Format(Percent(total, decimal.RequireFromString("42.15"))))

	// 0.05 * 10% = 0.005 -> 0.01
	assert.Equal(t, "0.01", Format(Percent(decimal.RequireFromString("0.05"), decimal.NewFromInt(10))))
}

func TestHasValidScale(t *testing.T) {
	assert.True(t, HasValidScale(decimal.RequireFromString("12.30")))
	assert.True(t, HasValidScale(decimal.RequireFromString("12")))
	assert.False(t, HasValidScale(decimal.RequireFromString("12.305")))
}

func TestIsPositiveAmount(t *testing.T) {
	assert.True(t, IsPositiveAmount(decimal.RequireFromString("0.01")))
	assert.False(t, IsPositiveAmount(decimal.Zero))
	assert.False(t, IsPositiveAmount(decimal.RequireFromString("-5")))
	assert.False(t, IsPositiveAmount(decimal.RequireFromString("1.001")))
}

func TestSumAndNonNegative(t *testing.T) {
	total := Sum(decimal.RequireFromString("0.10"), decimal.RequireFromString("0.20"))
	assert.Equal(t, "0.30", Format(total))
	assert.True(t, NonNegative(decimal.NewFromInt(-1)).IsZero())
}
