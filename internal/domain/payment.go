package domain

import (
	"time"

	"github.com/dukerupert/freyja/internal/money"
)

// Payment-related domain errors.
var (
	ErrPaymentNotFound         = &Error{Code: ENOTFOUND, Message: "payment not found"}
	ErrPaymentAlreadyProcessed = &Error{Code: ECONFLICT, Message: "payment intent already processed"}
	ErrPaymentAmountMismatch   = &Error{Code: ECONFLICT, Message: "gateway amount does not match order total"}
	ErrSignatureInvalid        = &Error{Code: EUNAUTHORIZED, Message: "webhook signature verification failed"}
)

// GatewayStatus is the raw status reported by the payment gateway,
// independent of the order-facing PaymentStatus derived from it.
type GatewayStatus string

const (
	GatewayCreated    GatewayStatus = "created"
	GatewayAuthorized GatewayStatus = "authorized"
	GatewayCaptured   GatewayStatus = "captured"
	GatewayFailed     GatewayStatus = "failed"
	GatewayRefunded   GatewayStatus = "refunded"
)

// Payment records one attempt to collect funds for a checkout session
// (or, after success, its resulting order), per §3/§4.5.
type Payment struct {
	ID              string
	OrderID         string
	CheckoutID      string
	Gateway         string // "stripe"
	GatewayOrderID  string
	GatewayPaymentID string
	GatewaySignature string

	Method        PaymentMethodSnapshot
	Amount        money.Amount
	Currency      string
	Status        PaymentStatus
	GatewayStatus GatewayStatus

	FailureCode    string
	FailureReason  string

	RefundedAmount money.Amount

	AuthorizedAt time.Time
	CapturedAt   time.Time
	FailedAt     time.Time

	Timestamps
}

// Refundable is the amount still available for a new refund on this
// payment: Amount - RefundedAmount, never negative.
func (p Payment) Refundable() money.Amount {
	return p.Amount.Sub(p.RefundedAmount).NonNegative()
}
