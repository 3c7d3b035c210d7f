package tax

import "context"

// NoTaxCalculator returns zero tax for all calculations. Used in
// environments without a configured GST registration (e.g. local dev).
type NoTaxCalculator struct{}

// NewNoTaxCalculator creates a new no-tax calculator.
func NewNoTaxCalculator() Calculator {
	return &NoTaxCalculator{}
}

func (c *NoTaxCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	return &TaxResult{}, nil
}
