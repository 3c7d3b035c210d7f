package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/service"
)

// PaymentHandler exposes the consumer-facing payment-signature
// verification callback and the admin payment-stats dashboard query.
type PaymentHandler struct {
	payments    repository.PaymentRepository
	paymentSvc  *service.PaymentService
}

func NewPaymentHandler(payments repository.PaymentRepository, paymentSvc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments, paymentSvc: paymentSvc}
}

// verifySignatureRequest is the synchronous checkout-return callback
// body: the gateway order/payment identifiers and their HMAC-SHA256
// signature (§4.5).
type verifySignatureRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}

// VerifySignature handles POST /payments/verify-signature.
func (h *PaymentHandler) VerifySignature(c echo.Context) error {
	var req verifySignatureRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	payment, err := h.paymentSvc.VerifySignature(c.Request().Context(), req.GatewayOrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, payment)
}

// Stats returns payment counts and totals grouped by status over a
// trailing window, defaulting to 30 days; pass ?since=<RFC3339> to
// override.
func (h *PaymentHandler) Stats(c echo.Context) error {
	since := time.Now().AddDate(0, 0, -30)
	if raw := c.QueryParam("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, envelope{Error: "since must be an RFC3339 timestamp"})
		}
		since = parsed
	}

	stats, err := h.payments.Stats(c.Request().Context(), since)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, stats)
}
