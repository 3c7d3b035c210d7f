// Package provider holds the outbound collaborator interfaces the order
// lifecycle core depends on: payment gateway, pricing, catalog,
// inventory, and notifications (shipping rates live in package
// shipping). Each is a narrow
// interface with one production implementation and is wrapped in a
// circuit breaker at the service layer (see internal/breaker).
package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/freyja/internal/money"
)

// Gateway is the payment-provider boundary the checkout and refund
// flows depend on. The only production implementation is Stripe; a
// second gateway would implement the same interface.
type Gateway interface {
	// CreatePaymentOrder opens a payment intent for a checkout session's
	// grand total. The checkout service derives the idempotency key from
	// the user ID, checkout session ID and session creation time, so
	// retried client requests never double-charge.
	CreatePaymentOrder(ctx context.Context, params CreatePaymentOrderParams) (*PaymentOrder, error)

	// VerifyWebhookSignature validates an inbound webhook body against
	// the configured signing secret, per §4.5's HMAC-SHA256 requirement.
	VerifyWebhookSignature(payload []byte, signatureHeader string) (*WebhookEvent, error)

	// VerifyPaymentSignature validates the client-supplied signature
	// over gatewayOrderID+"|"+gatewayPaymentID from a synchronous
	// checkout-return callback, per §4.5's payment verification
	// algorithm. This is distinct from VerifyWebhookSignature, which
	// authenticates the gateway's own asynchronous webhook deliveries.
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signatureHex string) bool

	// Refund issues a refund against a captured payment.
	Refund(ctx context.Context, params RefundParams) (*GatewayRefund, error)
}

// CreatePaymentOrderParams describes a checkout's payment request.
type CreatePaymentOrderParams struct {
	Amount         money.Amount
	Currency       string
	CheckoutID     string
	CustomerEmail  string
	IdempotencyKey string
}

// PaymentOrder is the gateway's handle for a payment in progress.
type PaymentOrder struct {
	GatewayOrderID string
	ClientSecret   string
	Status         string
}

// WebhookEvent is the normalized shape of a verified gateway callback.
type WebhookEvent struct {
	Type            string
	GatewayOrderID   string
	GatewayPaymentID string
	AmountReceived   money.Amount
	FailureCode      string
	FailureMessage   string
}

// RefundParams describes a refund request against a captured payment.
type RefundParams struct {
	GatewayPaymentID string
	Amount           money.Amount
	Reason           string
	IdempotencyKey   string
}

// GatewayRefund is the gateway's record of a refund attempt.
type GatewayRefund struct {
	GatewayRefundID string
	Status          string
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	apiKey        string
	webhookSecret string
}

// NewStripeGateway configures the global Stripe client with apiKey and
// returns a Gateway that verifies webhooks against webhookSecret and
// client-supplied payment signatures against apiKey (the gateway
// secret named in §4.5's payment verification algorithm).
func NewStripeGateway(apiKey, webhookSecret string) (*StripeGateway, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe api key is required")
	}
	stripe.Key = apiKey
	return &StripeGateway{apiKey: apiKey, webhookSecret: webhookSecret}, nil
}

func (g *StripeGateway) CreatePaymentOrder(ctx context.Context, params CreatePaymentOrderParams) (*PaymentOrder, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(params.Amount)),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{"checkout_id": params.CheckoutID},
	}
	if params.CustomerEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	piParams.SetIdempotencyKey(params.IdempotencyKey)

	pi, err := paymentintent.New(piParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	return &PaymentOrder{
		GatewayOrderID: pi.ID,
		ClientSecret:   pi.ClientSecret,
		Status:         string(pi.Status),
	}, nil
}

func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signatureHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("stripe: signature verification failed: %w", err)
	}

	var pi stripe.PaymentIntent
	if err := pi.UnmarshalJSON(event.Data.Raw); err != nil {
		return nil, fmt.Errorf("stripe: decode payment intent: %w", err)
	}

	we := &WebhookEvent{
		Type:             string(event.Type),
		GatewayOrderID:   pi.ID,
		GatewayPaymentID: pi.ID,
		AmountReceived:   money.Amount(pi.Amount),
	}
	if pi.LastPaymentError != nil {
		we.FailureCode = string(pi.LastPaymentError.Code)
		we.FailureMessage = pi.LastPaymentError.Msg
	}
	return we, nil
}

func (g *StripeGateway) Refund(ctx context.Context, params RefundParams) (*GatewayRefund, error) {
	rParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.GatewayPaymentID),
		Amount:        stripe.Int64(int64(params.Amount)),
	}
	if params.Reason != "" {
		rParams.Metadata = map[string]string{"reason": params.Reason}
	}
	rParams.SetIdempotencyKey(params.IdempotencyKey)

	r, err := refund.New(rParams)
	if err != nil {
		return nil, fmt.Errorf("stripe: create refund: %w", err)
	}
	return &GatewayRefund{GatewayRefundID: r.ID, Status: string(r.Status)}, nil
}

// VerifyInternalSignature validates the HMAC-SHA256 signature an
// internal service places on trusted server-to-server callbacks (as
// opposed to the gateway's own webhook signing), using a constant-time
// comparison to avoid timing leaks.
func VerifyInternalSignature(payload []byte, signatureHex, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}

// VerifyPaymentSignature implements §4.5's payment verification
// algorithm: HMAC-SHA256 over gatewayOrderID+"|"+gatewayPaymentID using
// the gateway secret, compared in constant time.
func (g *StripeGateway) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signatureHex string) bool {
	payload := []byte(gatewayOrderID + "|" + gatewayPaymentID)
	return VerifyInternalSignature(payload, signatureHex, g.apiKey)
}
