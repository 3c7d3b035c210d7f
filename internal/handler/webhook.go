package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/metrics"
	"github.com/dukerupert/freyja/internal/service"
)

// StripeSignatureHeader is the header Stripe signs webhook deliveries
// with.
const StripeSignatureHeader = "Stripe-Signature"

// WebhookHandler receives inbound payment gateway callbacks. Signature
// verification and idempotent state advancement live in
// PaymentService.IngestWebhook; this layer only reads the delivery and
// always answers 200 so the gateway doesn't retry a request we've
// already accepted, even when the underlying event turned out to be a
// business-logic no-op.
type WebhookHandler struct {
	payments *service.PaymentService
}

func NewWebhookHandler(payments *service.PaymentService) *WebhookHandler {
	return &WebhookHandler{payments: payments}
}

func (h *WebhookHandler) Stripe(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		metrics.PaymentWebhooksTotal.WithLabelValues("read_error").Inc()
		return c.JSON(http.StatusBadRequest, envelope{Error: "could not read request body"})
	}

	sig := c.Request().Header.Get(StripeSignatureHeader)
	err = h.payments.IngestWebhook(c.Request().Context(), body, sig)
	switch {
	case err == nil:
		metrics.PaymentWebhooksTotal.WithLabelValues("accepted").Inc()
		return c.JSON(http.StatusOK, envelope{Message: "accepted"})
	case err == domain.ErrSignatureInvalid:
		metrics.PaymentWebhooksTotal.WithLabelValues("invalid_signature").Inc()
		return c.JSON(http.StatusBadRequest, envelope{Error: "invalid signature"})
	case err == domain.ErrPaymentAmountMismatch:
		metrics.PaymentWebhooksTotal.WithLabelValues("amount_mismatch").Inc()
		// Accepted at the transport level so Stripe stops retrying; the
		// mismatch is recorded only through the amount_mismatch counter
		// above, and the payment is left unchanged.
		return c.JSON(http.StatusOK, envelope{Message: "accepted"})
	default:
		metrics.PaymentWebhooksTotal.WithLabelValues("error").Inc()
		return c.JSON(http.StatusOK, envelope{Message: "accepted"})
	}
}
