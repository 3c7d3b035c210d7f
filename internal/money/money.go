// Package money implements the fixed-point decimal arithmetic the order
// lifecycle core is built on. Amounts are stored as integer minor units
// (paise) so totals never accumulate floating-point drift; the exported
// helpers convert to/from the two-decimal-digit rupee representation used
// at the API boundary and in persisted snapshots.
package money

import (
	"fmt"
	"math"
)

// Amount is a monetary value in minor units (1 rupee = 100 paise).
type Amount int64

// Zero is the additive identity.
const Zero Amount = 0

// Tolerance is the revalidator's price-drift epsilon: ₹0.01, i.e. one paisa.
const Tolerance Amount = 1

// FromRupees converts a floating-point rupee amount (as decoded from JSON
// or an upstream service response) into minor units, rounding half-up to
// the nearest paisa.
func FromRupees(rupees float64) Amount {
	return Amount(math.Floor(rupees*100+0.5))
}

// ToRupees returns the amount as a float64 number of rupees. Only used at
// presentation boundaries (API responses, logs); all arithmetic happens in
// minor units.
func (a Amount) ToRupees() float64 {
	return float64(a) / 100
}

// String renders the amount as "123.45".
func (a Amount) String() string {
	neg := ""
	v := int64(a)
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", neg, v/100, v%100)
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount { return a + b }

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount { return a - b }

// Mul returns a scaled by an integer quantity.
func (a Amount) Mul(qty int) Amount { return a * Amount(qty) }

// MulFrac scales the amount by a rational numerator/denominator, rounding
// half-up. Used for proportional-line-discount math during refund
// calculation.
func (a Amount) MulFrac(num, den int64) Amount {
	if den == 0 {
		return 0
	}
	prod := int64(a) * num
	if prod < 0 {
		return Amount(-roundHalfUpDiv(-prod, den))
	}
	return Amount(roundHalfUpDiv(prod, den))
}

func roundHalfUpDiv(num, den int64) int64 {
	return (num + den/2) / den
}

// NonNegative clamps the amount at zero.
func (a Amount) NonNegative() Amount {
	if a < 0 {
		return 0
	}
	return a
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Exceeds reports whether the absolute difference from b is strictly
// greater than the revalidator tolerance (§8 boundary: 0.009 is not
// flagged, 0.011 is).
func (a Amount) Exceeds(b Amount, tolerance Amount) bool {
	return a.Sub(b).Abs() > tolerance
}

// Sum totals a slice of amounts.
func Sum(amounts []Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}

// Max returns the greater of a and b.
func Max(a, b Amount) Amount {
	if a > b {
		return a
	}
	return b
}

// Min returns the lesser of a and b.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}
