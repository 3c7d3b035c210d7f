package tax_test

import (
	"context"
	"testing"

	"github.com/dukerupert/freyja/internal/tax"
	"github.com/stretchr/testify/assert"
)

func TestGSTCalculator_IntraState_SplitsCGSTAndSGST(t *testing.T) {
	calc := tax.NewGSTCalculator()

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		Seller:          tax.SellerParams{State: "KA"},
		ShippingAddress: tax.Address{State: "KA"},
		LineItems: []tax.LineItem{
			{TotalCents: 10000, TaxRatePct: 18},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1800), result.TotalTaxCents)
	assert.Len(t, result.Breakdown, 2)

	labels := map[string]int64{}
	for _, b := range result.Breakdown {
		labels[b.Label] = b.AmountCents
	}
	assert.Equal(t, int64(900), labels["CGST"])
	assert.Equal(t, int64(900), labels["SGST"])
}

func TestGSTCalculator_InterState_UsesIGST(t *testing.T) {
	calc := tax.NewGSTCalculator()

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		Seller:          tax.SellerParams{State: "KA"},
		ShippingAddress: tax.Address{State: "MH"},
		LineItems: []tax.LineItem{
			{TotalCents: 10000, TaxRatePct: 18},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1800), result.TotalTaxCents)
	assert.Len(t, result.Breakdown, 1)
	assert.Equal(t, "IGST", result.Breakdown[0].Label)
	assert.Equal(t, int64(1800), result.Breakdown[0].AmountCents)
}

func TestGSTCalculator_TaxExemption_ReturnsZero(t *testing.T) {
	calc := tax.NewGSTCalculator()

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		Seller:          tax.SellerParams{State: "KA"},
		ShippingAddress: tax.Address{State: "KA"},
		LineItems: []tax.LineItem{
			{TotalCents: 10000, TaxRatePct: 18},
		},
		TaxExemptionID: "EXEMPT-001",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalTaxCents)
	assert.Empty(t, result.Breakdown)
}

func TestGSTCalculator_MultipleSlabs_GroupsByRate(t *testing.T) {
	calc := tax.NewGSTCalculator()

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		Seller:          tax.SellerParams{State: "KA"},
		ShippingAddress: tax.Address{State: "KA"},
		LineItems: []tax.LineItem{
			{TotalCents: 10000, TaxRatePct: 18},
			{TotalCents: 5000, TaxRatePct: 5},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(1800+250), result.TotalTaxCents)
	assert.Len(t, result.Breakdown, 4) // CGST+SGST per distinct rate
}
