package domain

import (
	"fmt"
	"time"

	"github.com/dukerupert/freyja/internal/money"
)

// Order-related domain errors.
var (
	ErrOrderNotFound        = &Error{Code: ENOTFOUND, Message: "order not found"}
	ErrInvalidTransition    = &Error{Code: ECONFLICT, Message: "order status transition not permitted"}
	ErrConcurrentUpdate     = &Error{Code: ECONFLICT, Message: "order was modified concurrently, retry"}
	ErrCancelReasonRequired = &Error{Code: EINVALID, Message: "cancel reason is required"}
)

// OrderStatus is the primary order lifecycle dimension (§4.4).
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderProcessing     OrderStatus = "processing"
	OrderShipped        OrderStatus = "shipped"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderCancelled      OrderStatus = "cancelled"
	OrderReturned       OrderStatus = "returned"
	OrderRefunded       OrderStatus = "refunded"
)

// orderTransitions is the permitted-edge set from §4.4, encoded as an
// adjacency list. Any edge not listed here is rejected.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderConfirmed, OrderCancelled},
	OrderConfirmed:      {OrderProcessing, OrderCancelled},
	OrderProcessing:     {OrderShipped},
	OrderShipped:        {OrderOutForDelivery},
	OrderOutForDelivery: {OrderDelivered},
	OrderDelivered:      {OrderReturned},
	OrderReturned:       {OrderRefunded},
}

// CanTransition reports whether from -> to is a legal order-status edge.
// Cancellation is an edge only from pending/confirmed; cancelling from
// processing or shipped is an admin override that callers gate
// separately via AllowAdminCancel.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowAdminCancel reports whether an admin override may cancel an order
// in the given state (pending|confirmed|processing|shipped), per the
// override clause in §4.4.
func AllowAdminCancel(from OrderStatus) bool {
	switch from {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped:
		return true
	default:
		return false
	}
}

// PaymentStatus is the independent payment dimension (§4.4).
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentInitiated         PaymentStatus = "initiated"
	PaymentProcessing        PaymentStatus = "processing"
	PaymentAuthorized        PaymentStatus = "authorized"
	PaymentCaptured          PaymentStatus = "captured"
	PaymentPaid              PaymentStatus = "paid"
	PaymentFailed            PaymentStatus = "failed"
	PaymentCancelled         PaymentStatus = "cancelled"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
	PaymentRefunded          PaymentStatus = "refunded"
)

// FulfillmentStatus aggregates per-line fulfillment progress (§4.4).
type FulfillmentStatus string

const (
	FulfillmentUnfulfilled        FulfillmentStatus = "unfulfilled"
	FulfillmentPartiallyFulfilled FulfillmentStatus = "partially_fulfilled"
	FulfillmentFulfilled          FulfillmentStatus = "fulfilled"
)

// DeriveFulfillmentStatus computes the aggregate from per-line counters.
func DeriveFulfillmentStatus(items []OrderItem) FulfillmentStatus {
	allZero, allFull := true, true
	for _, it := range items {
		if it.QuantityFulfilled > 0 {
			allZero = false
		}
		if it.QuantityFulfilled < it.Quantity {
			allFull = false
		}
	}
	switch {
	case allZero:
		return FulfillmentUnfulfilled
	case allFull:
		return FulfillmentFulfilled
	default:
		return FulfillmentPartiallyFulfilled
	}
}

// CancelReason enumerates why an order was cancelled.
type CancelReason string

const (
	CancelCustomerRequest CancelReason = "customer_request"
	CancelOutOfStock      CancelReason = "out_of_stock"
	CancelPaymentFailed   CancelReason = "payment_failed"
	CancelFraudulent      CancelReason = "fraudulent"
	CancelDuplicateOrder  CancelReason = "duplicate_order"
	CancelOther           CancelReason = "other"
)

// Valid reports whether r is one of the recognized cancel reasons.
func (r CancelReason) Valid() bool {
	switch r {
	case CancelCustomerRequest, CancelOutOfStock, CancelPaymentFailed, CancelFraudulent, CancelDuplicateOrder, CancelOther:
		return true
	default:
		return false
	}
}

// CustomerContactSnapshot is frozen at order creation.
type CustomerContactSnapshot struct {
	FullName string
	Email    string
	Phone    string
}

// Order is the immutable business snapshot created from a completed
// checkout. Only status fields, fulfillment counters, tracking, and
// version ever change after creation (§3).
type Order struct {
	ID          string
	OrderNumber string // ORD-YYYY-NNNNNN
	UserID      string

	Customer        CustomerContactSnapshot
	ShippingAddress Address
	BillingAddress  Address
	Totals          TotalsSnapshot
	PaymentMethod   string

	Status            OrderStatus
	PaymentStatus     PaymentStatus
	FulfillmentStatus FulfillmentStatus

	CancelReason CancelReason
	CancelledAt  time.Time
	CancelledBy  string

	TrackingCarrier string
	TrackingNumber  string
	TrackingURL     string

	// ReservationToken is the inventory reservation this order was
	// committed from, kept so a later cancellation can release the
	// stock it holds.
	ReservationToken string

	// Version backs optimistic-concurrency updates: every write includes
	// a WHERE version = $n and increments it, retried on miss.
	Version int64

	Timestamps
}

// OrderItem is one immutable line snapshot plus the mutable fulfillment
// counters (§3).
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	VariantID string
	BundleID  string

	SKU      string
	Name     string
	ImageURL string
	HSNCode  string

	Quantity          int
	QuantityFulfilled int
	QuantityReturned  int
	QuantityRefunded  int

	UnitPrice    money.Amount
	UnitMRP      money.Amount
	LineDiscount money.Amount
	LineTax      money.Amount
	LineTotal    money.Amount
	IsFreeGift   bool
}

// RemainingRefundable is quantity - quantityRefunded, used by the refund
// workflow to enforce the per-line cap.
func (it OrderItem) RemainingRefundable() int {
	return it.Quantity - it.QuantityRefunded
}

// CheckInvariants validates the per-item counter invariants from §3/§8.
func (it OrderItem) CheckInvariants() error {
	if it.QuantityReturned > it.QuantityFulfilled {
		return fmt.Errorf("orderItem %s: returned exceeds fulfilled", it.ID)
	}
	if it.QuantityRefunded > it.Quantity {
		return fmt.Errorf("orderItem %s: refunded exceeds quantity", it.ID)
	}
	return nil
}

// StatusHistoryType names which dimension a StatusHistory row tracks.
type StatusHistoryType string

const (
	HistoryOrder       StatusHistoryType = "order"
	HistoryPayment     StatusHistoryType = "payment"
	HistoryFulfillment StatusHistoryType = "fulfillment"
)

// ChangedByActor names who triggered a status change.
type ChangedByActor string

const (
	ActorSystem   ChangedByActor = "system"
	ActorAdmin    ChangedByActor = "admin"
	ActorCustomer ChangedByActor = "customer"
)

// StatusHistory is an append-only audit log entry for an order (§3).
type StatusHistory struct {
	ID         string
	OrderID    string
	Type       StatusHistoryType
	FromStatus string
	ToStatus   string
	ChangedBy  ChangedByActor
	ActorID    string
	Reason     string
	CreatedAt  time.Time
}

// FormatOrderNumber renders a human-readable identifier such as
// ORD-2026-000042 from a yearly sequence value.
func FormatOrderNumber(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}
