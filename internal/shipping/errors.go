package shipping

import "fmt"

// These mirror domain error codes to avoid a circular import; the
// handler layer maps them to HTTP status codes the same way.
const (
	codeConflict    = "conflict"
	codeInternal    = "internal"
	codeInvalid     = "invalid"
	codeNotFound    = "not_found"
	codeNotImpl     = "not_implemented"
	codeUnavailable = "unavailable"
)

// ShippingError represents a shipping-specific error with a code and message.
type ShippingError struct {
	Code    string
	Message string
}

func (e *ShippingError) Error() string { return e.Message }

func (e *ShippingError) ErrorCode() string { return e.Code }

func (e *ShippingError) ErrorMessage() string { return e.Message }

func newShippingError(code, message string) *ShippingError {
	return &ShippingError{Code: code, Message: message}
}

var (
	ErrNotImplemented = newShippingError(codeNotImpl, "shipping method not implemented")
	ErrNoPackages     = newShippingError(codeInvalid, "at least one package is required")
	ErrOriginRequired = newShippingError(codeInvalid, "origin address is required")
	ErrNoRates        = newShippingError(codeUnavailable, "no shipping rates available")
	ErrInvalidRate    = newShippingError(codeInvalid, "invalid or expired rate")
	ErrLabelNotFound  = newShippingError(codeNotFound, "label not found")
	ErrAddressInvalid = newShippingError(codeInvalid, "address validation failed")
	ErrMissingAPIKey  = newShippingError(codeInternal, "shipping provider api key is required")
)

// ErrInvalidAmount creates an error for invalid amount parsing.
func ErrInvalidAmount(amount string, err error) error {
	return &ShippingError{Code: codeInvalid, Message: fmt.Sprintf("invalid amount %q: %v", amount, err)}
}
