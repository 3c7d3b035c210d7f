package handler

import "github.com/go-playground/validator/v10"

// RequestValidator adapts go-playground/validator to echo.Echo's
// Validator interface.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}
