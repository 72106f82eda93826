package decimal

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Places is the number of fractional digits carried by every monetary amount
const Places = 2

// Zero is decimal zero
var Zero = decimal.Zero

// Tolerance is the absolute difference accepted by numeric cross-checks
var Tolerance = decimal.New(1, -Places)

// Bounds on parsed amounts. Rounding and comparing cost grows with the
// exponent, so values outside them are rejected before any arithmetic.
const (
	MaxExponent = 18
	MaxDigits   = 40
)

// ErrOutOfRange is returned for amounts outside MaxExponent or MaxDigits
var ErrOutOfRange = errors.New("amount out of range")

// InRange reports whether d is within MaxExponent and MaxDigits
func InRange(d decimal.Decimal) bool {
	exp := d.Exponent()
	return exp >= -MaxExponent && exp <= MaxExponent && d.NumDigits() <= MaxDigits
}

// FromString parses an amount, rejecting values that are not InRange
func FromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Zero, err
	}
	if !InRange(d) {
		return Zero, ErrOutOfRange
	}
	return d, nil
}

// Round rounds to 2 places, half away from zero.
// Amounts are never negative here, so this is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Mul multiplies two decimals, rounds to 2 places
func Mul(a, b decimal.Decimal) decimal.Decimal {
	return Round(a.Mul(b))
}

// Sum sums a slice of decimals without intermediate rounding
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// Format renders an amount with exactly 2 fractional digits
func Format(d decimal.Decimal) string {
	return d.StringFixed(Places)
}

// Percent renders a fractional rate as a percentage with 2 fractional digits (0.15 -> "15.00")
func Percent(rate decimal.Decimal) string {
	return rate.Shift(2).StringFixed(Places)
}

// WithinTolerance reports whether |a-b| <= 0.01
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}
