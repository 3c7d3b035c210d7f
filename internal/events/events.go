// Package events defines the domain event contract the order lifecycle
// core publishes as it moves carts through checkout and orders through
// fulfillment, and the NATS JetStream implementation that ships them.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/freyja/internal/domain"
)

// Publisher is the outbound event contract. The service layer publishes
// after a state transition commits, never before — an event must never be
// observable for a state change that didn't happen.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	PublishBatch(ctx context.Context, events []Event) error
	Close() error
}

// Handler processes a received event; returning an error causes the
// message to be redelivered.
type Handler func(ctx context.Context, event Event) error

// Event is one domain occurrence, serialized as the JetStream message body.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	Data        map[string]any `json:"data"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Event type constants, grouped by the aggregate that emits them. The
// subject an event is published under is the type string, prefixed with
// the publisher's namespace and a dot when a namespace is configured.
const (
	EventCartItemAdded   = "cart.item_added"
	EventCartItemRemoved = "cart.item_removed"
	EventCartMerged      = "cart.merged"
	EventCartAbandoned   = "cart.abandoned"
	EventCartExpired     = "cart.expired"
	EventCartRevalidated = "cart.revalidated"

	EventCheckoutInitiated = "checkout.initiated"
	EventCheckoutExpired   = "checkout.expired"
	EventCheckoutCompleted = "checkout.completed"

	EventPaymentInitiated = "payment.initiated"
	EventPaymentCaptured  = "payment.captured"
	EventPaymentFailed    = "payment.failed"

	EventOrderCreated           = "order.created"
	EventOrderConfirmed         = "order.confirmed"
	EventOrderProcessing        = "order.processing"
	EventOrderShipped           = "order.shipped"
	EventOrderOutForDelivery    = "order.out_for_delivery"
	EventOrderDelivered         = "order.delivered"
	EventOrderCancelled         = "order.cancelled"

	EventRefundRequested = "refund.requested"
	EventRefundApproved  = "refund.approved"
	EventRefundRejected  = "refund.rejected"
	EventRefundCompleted = "refund.completed"

	EventReturnRequested = "return.requested"
	EventReturnApproved  = "return.approved"
	EventReturnCompleted = "return.completed"

	EventInvoiceGenerated = "invoice.generated"
)

// New builds an Event, stamping a fresh ID and the current time.
func New(eventType, aggregateID string, data map[string]any) Event {
	return Event{
		ID:          domain.NewID(),
		Type:        eventType,
		AggregateID: aggregateID,
		Data:        data,
		Timestamp:   time.Now(),
	}
}

// Aggregate prefixes are combined with a bare entity ID to form the
// AggregateID convention "<kind>:<id>", mirrored by IsAggregateType.
const (
	AggregateCart     = "cart"
	AggregateCheckout = "checkout"
	AggregateOrder    = "order"
	AggregateRefund   = "refund"
	AggregateReturn   = "return"
	AggregateInvoice  = "invoice"
)

func aggregateID(kind, id string) string {
	return kind + ":" + id
}

// NewOrderEvent builds an order-aggregate event.
func NewOrderEvent(eventType, orderID string, data map[string]any) Event {
	return New(eventType, aggregateID(AggregateOrder, orderID), data)
}

// NewCartEvent builds a cart-aggregate event.
func NewCartEvent(eventType, cartID string, data map[string]any) Event {
	return New(eventType, aggregateID(AggregateCart, cartID), data)
}

// NewCheckoutEvent builds a checkout-aggregate event.
func NewCheckoutEvent(eventType, checkoutID string, data map[string]any) Event {
	return New(eventType, aggregateID(AggregateCheckout, checkoutID), data)
}

// NewRefundEvent builds a refund-aggregate event.
func NewRefundEvent(eventType, refundID string, data map[string]any) Event {
	return New(eventType, aggregateID(AggregateRefund, refundID), data)
}

// NewReturnEvent builds a return-aggregate event.
func NewReturnEvent(eventType, returnID string, data map[string]any) Event {
	return New(eventType, aggregateID(AggregateReturn, returnID), data)
}

// NewInvoiceEvent builds an invoice-aggregate event.
func NewInvoiceEvent(eventType, invoiceID string, data map[string]any) Event {
	return New(eventType, aggregateID(AggregateInvoice, invoiceID), data)
}

// Validate checks the required fields before an event is handed to a
// Publisher, so a malformed event fails fast at the call site rather than
// surfacing as an opaque broker error.
func Validate(e Event) error {
	if e.ID == "" {
		return fmt.Errorf("events: event ID is required")
	}
	if e.Type == "" {
		return fmt.Errorf("events: event type is required")
	}
	if e.AggregateID == "" {
		return fmt.Errorf("events: aggregate ID is required")
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("events: timestamp is required")
	}
	return nil
}

// IsAggregateType reports whether e belongs to the given aggregate kind.
func IsAggregateType(e Event, kind string) bool {
	return strings.HasPrefix(e.AggregateID, kind+":")
}
