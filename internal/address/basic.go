package address

import (
	"context"
	"regexp"
	"strings"
)

// pincodeRe matches a 6-digit Indian PIN code.
var pincodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)

// BasicValidator performs format validation without calling an external
// address-verification API: required fields present, PIN code shape,
// phone number shape.
type BasicValidator struct{}

// NewBasicValidator creates a new basic address validator.
func NewBasicValidator() Validator {
	return &BasicValidator{}
}

// Validate checks required fields and the PIN code format. It never
// produces a NormalizedAddress — that requires a real validation
// provider — only pass/fail plus field-level messages.
func (v *BasicValidator) Validate(ctx context.Context, addr Address) (*ValidationResult, error) {
	var errs []ValidationError

	if strings.TrimSpace(addr.FullName) == "" {
		errs = append(errs, ValidationError{Field: "fullName", Message: "full name is required"})
	}
	if strings.TrimSpace(addr.AddressLine1) == "" {
		errs = append(errs, ValidationError{Field: "addressLine1", Message: "address line 1 is required"})
	}
	if strings.TrimSpace(addr.City) == "" {
		errs = append(errs, ValidationError{Field: "city", Message: "city is required"})
	}
	if strings.TrimSpace(addr.State) == "" {
		errs = append(errs, ValidationError{Field: "state", Message: "state is required"})
	}
	if !pincodeRe.MatchString(addr.PostalCode) {
		errs = append(errs, ValidationError{Field: "postalCode", Message: "postal code must be a 6-digit PIN code"})
	}
	if digits := digitsOnly(addr.Phone); len(digits) != 10 {
		errs = append(errs, ValidationError{Field: "phone", Message: "phone must be a 10-digit number"})
	}

	return &ValidationResult{
		IsValid: len(errs) == 0,
		Errors:  errs,
	}, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
