package tax

import (
	"context"
	"math"
	"strings"
)

// GSTCalculator computes Indian GST per line item's slab rate,
// splitting into CGST+SGST when the shipping address's state matches
// the seller's registered state, and into IGST otherwise.
type GSTCalculator struct{}

// NewGSTCalculator creates a GST-slab tax calculator.
func NewGSTCalculator() Calculator {
	return &GSTCalculator{}
}

func (c *GSTCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	if params.TaxExemptionID != "" {
		return &TaxResult{}, nil
	}

	intraState := strings.EqualFold(params.Seller.State, params.ShippingAddress.State)

	var total int64
	rateBuckets := map[float64]int64{}
	for _, item := range params.LineItems {
		amount := int64(math.Round(float64(item.TotalCents) * item.TaxRatePct / 100))
		rateBuckets[item.TaxRatePct] += amount
		total += amount
	}

	var breakdown []TaxBreakdown
	for rate, amount := range rateBuckets {
		if amount == 0 {
			continue
		}
		if intraState {
			half := amount / 2
			breakdown = append(breakdown,
				TaxBreakdown{Label: "CGST", Rate: rate / 2, AmountCents: half},
				TaxBreakdown{Label: "SGST", Rate: rate / 2, AmountCents: amount - half},
			)
		} else {
			breakdown = append(breakdown, TaxBreakdown{Label: "IGST", Rate: rate, AmountCents: amount})
		}
	}

	return &TaxResult{TotalTaxCents: total, Breakdown: breakdown}, nil
}
