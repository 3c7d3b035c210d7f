package tax_test

import (
	"context"
	"testing"

	"github.com/dukerupert/freyja/internal/tax"
	"github.com/stretchr/testify/assert"
)

func TestNoTaxCalculator_CalculateTax_ReturnsZeroTax(t *testing.T) {
	calc := tax.NewNoTaxCalculator()

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		ShippingAddress: tax.Address{City: "Bengaluru", State: "KA", Pincode: "560001", Country: "IN"},
		LineItems: []tax.LineItem{
			{TotalCents: 3600, TaxRatePct: 18},
			{TotalCents: 2200, TaxRatePct: 18},
		},
		ShippingCents:  500,
		TaxExemptionID: "EX-12345",
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalTaxCents)
	assert.Empty(t, result.Breakdown)
	assert.False(t, result.IsEstimate)
}

func TestNoTaxCalculator_CalculateTax_EmptyLineItems(t *testing.T) {
	calc := tax.NewNoTaxCalculator()

	result, err := calc.CalculateTax(context.Background(), tax.TaxParams{
		ShippingAddress: tax.Address{City: "Pune", State: "MH", Pincode: "411001", Country: "IN"},
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalTaxCents)
}

func TestNoTaxCalculator_NewConstructor(t *testing.T) {
	calc := tax.NewNoTaxCalculator()

	assert.NotNil(t, calc)
	var _ tax.Calculator = calc
}

func TestNoTaxCalculator_Idempotency(t *testing.T) {
	calc := tax.NewNoTaxCalculator()
	params := tax.TaxParams{
		LineItems:     []tax.LineItem{{TotalCents: 5000, TaxRatePct: 18}},
		ShippingCents: 750,
	}

	r1, err1 := calc.CalculateTax(context.Background(), params)
	r2, err2 := calc.CalculateTax(context.Background(), params)

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Equal(t, r1.TotalTaxCents, r2.TotalTaxCents)
	assert.Equal(t, int64(0), r1.TotalTaxCents)
}
