package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places amounts are stored with.
const MoneyScale = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half away from zero to two decimal places.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// Percent returns amount * pct / 100 rounded to money precision.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(pct).Div(hundred))
}

// ToMinorUnits converts a major-unit amount into integer minor units (amount x 100).
// Amounts with more than two decimal places are rejected instead of silently truncated.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has sub-minor precision", d.String())
	}
	return minor.IntPart(), nil
}

// FromMinorUnits converts integer minor units back into a major-unit amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -MoneyScale)
}

// ParseMoney parses a decimal string and rejects negatives and sub-minor precision.
func ParseMoney(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative")
	}
	if d.Exponent() < -MoneyScale && !d.Equal(RoundMoney(d)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, MoneyScale)
	}
	return RoundMoney(d), nil
}
