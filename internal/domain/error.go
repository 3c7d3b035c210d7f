package domain

import (
	"errors"
	"fmt"
)

// Application error codes. These map to HTTP status codes at the handler
// boundary and determine which user-facing message is shown.
const (
	ECONFLICT     = "conflict"         // 409 - state conflict, CAS miss, duplicate
	EINTERNAL     = "internal"         // 500 - bug or invariant violation, hide details
	EINVALID      = "invalid"          // 400 - validation error
	ENOTFOUND     = "not_found"        // 404 - resource not found
	EUNAUTHORIZED = "unauthorized"     // 401 - missing/invalid principal
	EFORBIDDEN    = "forbidden"        // 403 - wrong role, ownership mismatch
	ENOTIMPL      = "not_implemented"  // 501
	EPAYMENT      = "payment_required" // 402 - payment failed or required
	EUNAVAILABLE  = "unavailable"      // 503 - downstream dependency unavailable (soft failure)
)

// Error represents an application error with a machine-readable code and
// a user-safe message. It implements error wrapping via Unwrap.
type Error struct {
	// Code is one of the E* constants above.
	Code string

	// Message is safe to return to API callers.
	Message string

	// Op names the operation where the error occurred, e.g. "cart.addItem".
	// Used for logging, never shown to users.
	Op string

	// Err is the wrapped underlying error, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode extracts the error code from err, defaulting to EINTERNAL for
// non-domain errors and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage extracts a user-facing message, hiding internals.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return "an internal error occurred, please try again later"
		}
		return e.Message
	}
	return "an internal error occurred, please try again later"
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// ValidationError carries one or more field-level validation failures.
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return fmt.Sprintf("%s: %s", field, msg)
		}
	}
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// AddFieldError appends a field error, creating a new ValidationError if
// err is nil or not already one.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if err != nil && errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}
	return &ValidationError{Fields: map[string]string{field: message}}
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Constructors mirroring the taxonomy above. Keep call sites terse:
// domain.NotFound("order", orderID), domain.Conflict(op, "...").

func NotFound(op, resource, identifier string) error {
	return &Error{Code: ENOTFOUND, Op: op, Message: fmt.Sprintf("%s not found: %s", resource, identifier)}
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Forbidden(op, message string) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

func PaymentRequired(op, message string) error {
	return &Error{Code: EPAYMENT, Op: op, Message: message}
}

func Unavailable(op, message string, err error) error {
	return &Error{Code: EUNAVAILABLE, Op: op, Message: message, Err: err}
}

func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}
