package model

import (
	"fmt"
	"github.com/shopspring/decimal"
	"math"
)

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ToMinor converts a decimal amount in major units into minor units with the
// given currency exponent. Fractions below the minor unit and values that do
// not fit into int64 are rejected.
func ToMinor(d decimal.Decimal, exp int32) (int64, error) {
	shifted := d.Shift(exp)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d fractional digits", d.String(), exp)
	}
	if !shifted.IsPositive() {
		return 0, fmt.Errorf("amount %s is not positive", d.String())
	}
	if shifted.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("amount %s is too large", d.String())
	}
	return shifted.IntPart(), nil
}

// FromMinor converts minor units back to a decimal in major units.
func FromMinor(v int64, exp int32) decimal.Decimal {
	return decimal.New(v, -exp)
}
