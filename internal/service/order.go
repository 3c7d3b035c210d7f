package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/breaker"
	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/events"
	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/sequence"
)

// maxCASRetries bounds the optimistic-concurrency retry loop on Order
// updates (§4.4).
const maxCASRetries = 3

// OrderService owns the order lifecycle: materializing an order from a
// completed checkout, driving status transitions, and cancellation.
type OrderService struct {
	orders    repository.OrderRepository
	inventory provider.Inventory
	seq       *sequence.Generator
	refunds   *RefundService

	breakers *breaker.Manager
	events   events.Publisher
	log      zerolog.Logger

	OrderNumberPrefix string
}

func NewOrderService(orders repository.OrderRepository, inventory provider.Inventory, seq *sequence.Generator, breakers *breaker.Manager, pub events.Publisher, log zerolog.Logger) *OrderService {
	return &OrderService{
		orders: orders, inventory: inventory, seq: seq,
		breakers: breakers, events: pub, log: log.With().Str("component", "order_service").Logger(),
		OrderNumberPrefix: "ORD",
	}
}

// SetRefundService wires the refund service in after both have been
// constructed, breaking the construction-order cycle (RefundService
// itself depends on *OrderService). Cancel uses it to open a full
// refund when cancelling a paid order.
func (s *OrderService) SetRefundService(refunds *RefundService) {
	s.refunds = refunds
}

func (s *OrderService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish order event")
	}
}

// CreateFromCheckout materializes an Order and its line items from a
// checkout session's frozen snapshot, mints the order number from the
// durable per-year sequence, and commits the held inventory reservation
// (§4.3 step 5, §4.4 creation).
func (s *OrderService) CreateFromCheckout(ctx context.Context, session *domain.CheckoutSession, customerEmail string) (*domain.Order, error) {
	now := time.Now()
	seq, err := s.seq.Next(ctx, "order", now.Year())
	if err != nil {
		return nil, fmt.Errorf("order.CreateFromCheckout: mint order number: %w", err)
	}

	order := &domain.Order{
		ID:          domain.NewID(),
		OrderNumber: domain.FormatOrderNumber(s.OrderNumberPrefix, now.Year(), seq),
		UserID:      session.UserID,
		Customer: domain.CustomerContactSnapshot{
			FullName: session.ShippingAddress.FullName,
			Email:    customerEmail,
			Phone:    session.ShippingAddress.Phone,
		},
		ShippingAddress:   session.ShippingAddress,
		BillingAddress:    session.BillingAddress,
		Totals:            session.Totals,
		PaymentMethod:     session.PaymentMethod,
		Status:            domain.OrderPending,
		PaymentStatus:     domain.PaymentInitiated,
		FulfillmentStatus: domain.FulfillmentUnfulfilled,
		ReservationToken:  session.ReservationToken,
		Version:           1,
		Timestamps:        domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	items := make([]domain.OrderItem, len(session.Items))
	for i, it := range session.Items {
		items[i] = domain.OrderItem{
			ID: domain.NewID(), OrderID: order.ID,
			ProductID: it.ProductID, VariantID: it.VariantID, BundleID: it.BundleID,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			UnitMRP:      it.UnitMRP,
			LineDiscount: it.LineDiscount,
			LineTotal:    it.LineTotal,
			IsFreeGift:   it.IsFreeGift,
		}
	}

	if err := s.orders.Create(ctx, order, items); err != nil {
		return nil, fmt.Errorf("order.CreateFromCheckout: %w", err)
	}

	if err := s.breakers.Do(breaker.Inventory, func() error {
		return s.inventory.Commit(ctx, session.ReservationToken)
	}); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to commit inventory reservation for created order")
	}

	s.appendHistory(ctx, order.ID, domain.HistoryOrder, "", string(order.Status), domain.ActorSystem, "", "order created from checkout")
	s.publish(ctx, events.NewOrderEvent(events.EventOrderCreated, order.ID, map[string]any{"orderNumber": order.OrderNumber, "checkoutId": session.ID}))
	return order, nil
}

func (s *OrderService) appendHistory(ctx context.Context, orderID string, typ domain.StatusHistoryType, from, to string, actor domain.ChangedByActor, actorID, reason string) {
	h := &domain.StatusHistory{
		ID: domain.NewID(), OrderID: orderID, Type: typ,
		FromStatus: from, ToStatus: to, ChangedBy: actor, ActorID: actorID, Reason: reason,
		CreatedAt: time.Now(),
	}
	if err := s.orders.AppendHistory(ctx, h); err != nil {
		s.log.Error().Err(err).Str("order_id", orderID).Msg("failed to append order status history")
	}
}

// withRetry re-reads and re-applies mutate against the current order on
// every ErrConcurrentUpdate, up to maxCASRetries times with jittered
// backoff (§4.4).
func (s *OrderService) withRetry(ctx context.Context, orderID string, mutate func(o *domain.Order) error) (*domain.Order, error) {
	var order *domain.Order
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		o, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if err := mutate(o); err != nil {
			return nil, err
		}
		o.UpdatedAt = time.Now()
		if err := s.orders.Update(ctx, o); err != nil {
			if err == domain.ErrConcurrentUpdate {
				time.Sleep(time.Duration(50+rand.Intn(50)) * time.Millisecond)
				continue
			}
			return nil, err
		}
		order = o
		break
	}
	if order == nil {
		return nil, domain.ErrConcurrentUpdate
	}
	return order, nil
}

// Transition advances the order's primary status, validating the edge
// against the state machine and appending an audit row.
func (s *OrderService) Transition(ctx context.Context, orderID string, to domain.OrderStatus, actor domain.ChangedByActor, actorID string) (*domain.Order, error) {
	var from domain.OrderStatus
	order, err := s.withRetry(ctx, orderID, func(o *domain.Order) error {
		if !domain.CanTransition(o.Status, to) {
			return domain.ErrInvalidTransition
		}
		from = o.Status
		o.Status = to
		if to == domain.OrderDelivered {
			o.PaymentStatus = domain.PaymentPaid
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.appendHistory(ctx, order.ID, domain.HistoryOrder, string(from), string(to), actor, actorID, "")
	s.publish(ctx, events.NewOrderEvent(orderEventFor(to), order.ID, map[string]any{"from": from, "to": to}))
	return order, nil
}

func orderEventFor(status domain.OrderStatus) string {
	switch status {
	case domain.OrderConfirmed:
		return events.EventOrderConfirmed
	case domain.OrderProcessing:
		return events.EventOrderProcessing
	case domain.OrderShipped:
		return events.EventOrderShipped
	case domain.OrderOutForDelivery:
		return events.EventOrderOutForDelivery
	case domain.OrderDelivered:
		return events.EventOrderDelivered
	case domain.OrderCancelled:
		return events.EventOrderCancelled
	default:
		return events.EventOrderCreated
	}
}

// Cancel cancels an order, either via the customer's own request (only
// while pending/confirmed) or an admin override (up through shipped),
// releasing or voiding the reservation as appropriate (§4.4).
func (s *OrderService) Cancel(ctx context.Context, orderID string, reason domain.CancelReason, actor domain.ChangedByActor, actorID string) (*domain.Order, error) {
	if !reason.Valid() {
		return nil, domain.ErrCancelReasonRequired
	}

	var from domain.OrderStatus
	var wasPaid bool
	order, err := s.withRetry(ctx, orderID, func(o *domain.Order) error {
		from = o.Status
		switch actor {
		case domain.ActorAdmin:
			if !domain.AllowAdminCancel(o.Status) {
				return domain.ErrInvalidTransition
			}
		default:
			if !domain.CanTransition(o.Status, domain.OrderCancelled) {
				return domain.ErrInvalidTransition
			}
		}
		wasPaid = o.PaymentStatus == domain.PaymentCaptured || o.PaymentStatus == domain.PaymentPaid
		o.Status = domain.OrderCancelled
		o.CancelReason = reason
		o.CancelledAt = time.Now()
		o.CancelledBy = actorID
		if o.PaymentStatus == domain.PaymentInitiated || o.PaymentStatus == domain.PaymentPending {
			o.PaymentStatus = domain.PaymentCancelled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if order.ReservationToken != "" {
		if err := s.breakers.Do(breaker.Inventory, func() error {
			return s.inventory.Release(ctx, order.ReservationToken)
		}); err != nil {
			s.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to release inventory reservation on cancel")
		}
	}

	if wasPaid {
		s.refundOnCancel(ctx, order, reason, actor, actorID)
	}

	s.appendHistory(ctx, order.ID, domain.HistoryOrder, string(from), string(domain.OrderCancelled), actor, actorID, string(reason))
	s.publish(ctx, events.NewOrderEvent(events.EventOrderCancelled, order.ID, map[string]any{"reason": reason, "from": from}))
	return order, nil
}

// refundOnCancel opens a full refund across every remaining-refundable
// line when a paid order is cancelled (§4.4). Failure is logged, not
// propagated: the cancellation itself already committed.
func (s *OrderService) refundOnCancel(ctx context.Context, order *domain.Order, reason domain.CancelReason, actor domain.ChangedByActor, actorID string) {
	if s.refunds == nil {
		s.log.Error().Str("order_id", order.ID).Msg("no refund service wired, cannot refund cancelled paid order")
		return
	}
	items, err := s.orders.ListItems(ctx, order.ID)
	if err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to list order items for cancel refund")
		return
	}
	var lines []LineRequest
	for _, it := range items {
		if qty := it.RemainingRefundable(); qty > 0 {
			lines = append(lines, LineRequest{OrderItemID: it.ID, Quantity: qty})
		}
	}
	if len(lines) == 0 {
		return
	}
	if _, err := s.refunds.Request(ctx, order.ID, lines, string(reason), domain.RefundToSource, actor, actorID); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to open refund for cancelled paid order")
	}
}

// SetTracking records carrier tracking details on an order already in
// processing or beyond, without touching its primary status.
func (s *OrderService) SetTracking(ctx context.Context, orderID, carrier, number, url string) (*domain.Order, error) {
	return s.withRetry(ctx, orderID, func(o *domain.Order) error {
		o.TrackingCarrier = carrier
		o.TrackingNumber = number
		o.TrackingURL = url
		return nil
	})
}

// MarkFulfilled records partial or complete fulfillment progress on one
// line item and recomputes the order's aggregate fulfillment status.
func (s *OrderService) MarkFulfilled(ctx context.Context, orderID, itemID string, quantity int) (*domain.Order, error) {
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID != itemID {
			continue
		}
		items[i].QuantityFulfilled += quantity
		if items[i].QuantityFulfilled > items[i].Quantity {
			return nil, domain.Invalid("order.MarkFulfilled", "fulfilled quantity exceeds ordered quantity")
		}
		if err := s.orders.UpdateItem(ctx, &items[i]); err != nil {
			return nil, err
		}
		break
	}

	return s.withRetry(ctx, orderID, func(o *domain.Order) error {
		o.FulfillmentStatus = domain.DeriveFulfillmentStatus(items)
		return nil
	})
}

// AutoConfirmStale advances pending orders whose payment is captured or
// paid and which are older than cutoffHours to confirmed, used by the
// order-auto-confirm scheduler.
func (s *OrderService) AutoConfirmStale(ctx context.Context, cutoffHours int) (int, error) {
	stale, err := s.orders.ListByStatusOlderThan(ctx, domain.OrderPending, cutoffHours)
	if err != nil {
		return 0, fmt.Errorf("order.AutoConfirmStale: %w", err)
	}

	var confirmed int
	for _, o := range stale {
		if o.PaymentStatus != domain.PaymentCaptured && o.PaymentStatus != domain.PaymentPaid {
			continue
		}
		if _, err := s.Transition(ctx, o.ID, domain.OrderConfirmed, domain.ActorSystem, ""); err != nil {
			s.log.Error().Err(err).Str("order_id", o.ID).Msg("auto-confirm transition failed")
			continue
		}
		confirmed++
	}
	return confirmed, nil
}
