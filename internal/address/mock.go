package address

import (
	"context"
	"strings"
)

// MockValidator is a deterministic stand-in for a real address
// verification provider, normalizing and lightly validating an Indian
// postal address. It never performs a network call.
type MockValidator struct{}

// NewMockValidator creates a new mock address validator.
func NewMockValidator() Validator {
	return &MockValidator{}
}

// Validate normalizes field casing/whitespace and requires address line
// 1, city, state (non-empty only) and a 6-digit PIN code; a missing
// recipient name or phone yields a warning, not an error. It exists
// alongside BasicValidator for tests that want a NormalizedAddress.
func (m *MockValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	normalized := Address{
		Type:         addr.Type,
		FullName:     strings.TrimSpace(addr.FullName),
		Company:      strings.TrimSpace(addr.Company),
		AddressLine1: strings.TrimSpace(addr.AddressLine1),
		AddressLine2: strings.TrimSpace(addr.AddressLine2),
		City:         strings.TrimSpace(addr.City),
		State:        strings.TrimSpace(addr.State),
		PostalCode:   strings.TrimSpace(addr.PostalCode),
		Country:      strings.ToUpper(strings.TrimSpace(addr.Country)),
		Phone:        strings.TrimSpace(addr.Phone),
	}

	var errs []ValidationError
	var warnings []string

	if normalized.AddressLine1 == "" {
		errs = append(errs, ValidationError{Field: "AddressLine1", Message: "address line 1 is required"})
	}
	if normalized.City == "" {
		errs = append(errs, ValidationError{Field: "City", Message: "city is required"})
	}
	if normalized.State == "" {
		errs = append(errs, ValidationError{Field: "State", Message: "state is required"})
	}
	if !pincodeRe.MatchString(normalized.PostalCode) {
		errs = append(errs, ValidationError{Field: "PostalCode", Message: "postal code must be a 6-digit PIN code"})
	}

	if normalized.FullName == "" {
		warnings = append(warnings, "recipient name is recommended for delivery")
	}
	if normalized.Phone == "" {
		warnings = append(warnings, "phone number is recommended for delivery issues")
	}

	return &ValidationResult{
		IsValid:           len(errs) == 0,
		NormalizedAddress: &normalized,
		Errors:            errs,
		Warnings:          warnings,
	}, nil
}
