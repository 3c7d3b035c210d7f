// Package handler exposes the order lifecycle core's services over
// HTTP: consumer-facing cart/checkout/order/refund/return/invoice
// routes, the admin operations surface, and the inbound payment
// gateway webhook.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/domain"
)

// envelope is the response shape every handler in this package writes:
// a human-readable message, the payload on success, and a machine
// code on failure.
type envelope struct {
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func ok(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Data: data})
}

func okMessage(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, envelope{Message: message, Data: data})
}

// fail maps a domain.Error's code to an HTTP status and writes the
// envelope. Non-domain errors are treated as internal.
func fail(c echo.Context, err error) error {
	code := domain.ErrorCode(err)
	return c.JSON(statusFor(code), envelope{Error: domain.ErrorMessage(err)})
}

func statusFor(code string) int {
	switch code {
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	case domain.ENOTIMPL:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// bindAndValidate decodes the request body into req and runs struct
// validation tags, returning a single 400 envelope on either failure.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: "invalid request body"})
	}
	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, envelope{Error: err.Error()})
	}
	return nil
}
