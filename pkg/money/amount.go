// Package money provides a fixed-point monetary amount with exactly two
// fractional digits. All arithmetic stays at scale 2; rounding, where it
// happens at all, is half-up.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned when a string cannot be parsed as a scale-2
// decimal amount.
var ErrInvalidAmount = errors.New("invalid monetary amount")

// Amount is an immutable monetary value with exactly two decimal digits.
// The zero value is 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero returns the 0.00 amount.
func Zero() Amount {
	return Amount{}
}

// FromCents builds an Amount from an integer number of cents.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -2)}
}

// Parse parses a decimal string such as "12.50" or "-3". Strings with more
// than two fractional digits are rejected rather than silently rounded, so
// amounts round-trip exactly across the API boundary.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Exponent() < -2 {
		// More precision than cents: only acceptable if the extra digits
		// are zeros ("1.500" == "1.50").
		if !d.Equal(d.Round(2)) {
			return Amount{}, fmt.Errorf("%w: %q has more than 2 decimal digits", ErrInvalidAmount, s)
		}
	}
	return Amount{d: rescale(d)}, nil
}

// MustParse is Parse for test fixtures and constants; it panics on error.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// rescale forces the internal representation to exponent -2 so String and
// Cents are exact for every Amount regardless of how it was built.
func rescale(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: rescale(a.d.Add(b.d))}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: rescale(a.d.Sub(b.d))}
}

// Neg returns -a.
func (a Amount) Neg() Amount {
	return Amount{d: a.d.Neg()}
}

// Abs returns the absolute value of a.
func (a Amount) Abs() Amount {
	return Amount{d: a.d.Abs()}
}

// IsZero reports whether a == 0.00.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// IsNegative reports whether a < 0.00.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// IsPositive reports whether a > 0.00.
func (a Amount) IsPositive() bool {
	return a.d.IsPositive()
}

// Equal reports whether a and b represent the same value.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// Cents returns the amount as an integer number of cents.
func (a Amount) Cents() int64 {
	return rescale(a.d).Shift(2).IntPart()
}

// String renders the amount with exactly two decimal digits ("-3.00").
func (a Amount) String() string {
	return a.d.StringFixed(2)
}

// Decimal exposes the underlying decimal for storage drivers.
func (a Amount) Decimal() decimal.Decimal {
	return rescale(a.d)
}

// FromDecimal wraps a decimal read back from storage, rounding half-up to
// scale 2 as a safety net against drivers returning wider scales.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: rescale(d)}
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

// UnmarshalJSON decodes either a JSON string ("12.50") or a bare number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum adds up a list of amounts.
func Sum(amounts ...Amount) Amount {
	total := Zero()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
