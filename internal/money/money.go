// Package money holds the currency helpers shared by the calculator, the
// persistence models and the wire formats. All amounts are decimal dollars
// with two places of precision.
package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

func init() {
	// Stored breakdowns and the model contract carry amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	// Cent is the smallest representable amount.
	Cent = decimal.New(1, -2)

	hundred = decimal.NewFromInt(100)

	ErrNotFinite = errors.New("amount must be a finite number")
	ErrNegative  = errors.New("amount must not be negative")
)

// Round rounds half-up (away from zero) to cents.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FromFloat converts a float amount, rejecting NaN, infinities and negatives.
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrNotFinite
	}
	if f < 0 {
		return decimal.Zero, ErrNegative
	}
	return Round(decimal.NewFromFloat(f)), nil
}

// Parse converts a decimal string such as "12.5" into a rounded amount.
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, ErrNegative
	}
	return Round(d), nil
}

// Cents returns the amount as a whole number of cents, after rounding.
func Cents(d decimal.Decimal) int64 {
	return Round(d).Shift(2).IntPart()
}

// FromCents is the inverse of Cents.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// Percent returns pct percent of base, rounded to cents.
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round(base.Mul(pct).Div(hundred))
}

// Sum adds the given amounts.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Tolerance is the rounding slack allowed when n independently rounded
// shares are summed: one cent per share, never less than one cent.
func Tolerance(n int) decimal.Decimal {
	if n < 1 {
		n = 1
	}
	return Cent.Mul(decimal.NewFromInt(int64(n)))
}

// Within reports whether a and b differ by no more than tol.
func Within(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// Format renders an amount as "$12.34".
func Format(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
