package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/breaker"
	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/events"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/repository"
)

// PaymentService tracks one payment attempt per checkout through to
// settlement, and advances the order/checkout it belongs to on capture
// or failure (§4.5).
type PaymentService struct {
	payments  repository.PaymentRepository
	checkouts repository.CheckoutSessionRepository
	orders    *OrderService
	gateway   provider.Gateway

	breakers *breaker.Manager
	events   events.Publisher
	log      zerolog.Logger
}

func NewPaymentService(payments repository.PaymentRepository, checkouts repository.CheckoutSessionRepository, orders *OrderService, gateway provider.Gateway, breakers *breaker.Manager, pub events.Publisher, log zerolog.Logger) *PaymentService {
	return &PaymentService{
		payments: payments, checkouts: checkouts, orders: orders, gateway: gateway,
		breakers: breakers, events: pub, log: log.With().Str("component", "payment_service").Logger(),
	}
}

func (s *PaymentService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish payment event")
	}
}

// CreatePending records the gateway's payment order as a pending attempt,
// called right after CheckoutService opens it.
func (s *PaymentService) CreatePending(ctx context.Context, orderID, checkoutID string, po *provider.PaymentOrder, amount money.Amount, method domain.PaymentMethodSnapshot) (*domain.Payment, error) {
	now := time.Now()
	p := &domain.Payment{
		ID: domain.NewID(), OrderID: orderID, CheckoutID: checkoutID,
		Gateway: "stripe", GatewayOrderID: po.GatewayOrderID,
		Method: method, Amount: amount, Currency: "INR",
		Status: domain.PaymentInitiated, GatewayStatus: domain.GatewayCreated,
		Timestamps: domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("payment.CreatePending: %w", err)
	}
	return p, nil
}

// IngestWebhook verifies an inbound gateway callback and advances the
// matching payment, order, and checkout session accordingly (§4.5). It is
// idempotent: re-delivering the same event after it has already been
// applied is a no-op, not an error.
func (s *PaymentService) IngestWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	var event *provider.WebhookEvent
	if err := s.breakers.Do(breaker.Gateway, func() error {
		var doErr error
		event, doErr = s.gateway.VerifyWebhookSignature(payload, signatureHeader)
		return doErr
	}); err != nil {
		return domain.ErrSignatureInvalid
	}

	payment, err := s.payments.GetByGatewayPaymentID(ctx, "stripe", event.GatewayPaymentID)
	if err != nil {
		return err
	}

	switch payment.Status {
	case domain.PaymentCaptured, domain.PaymentPaid, domain.PaymentFailed, domain.PaymentCancelled:
		// Already settled by an earlier delivery of this (or an
		// equivalent) event — webhook delivery is at-least-once.
		return nil
	}

	if event.AmountReceived != 0 && event.AmountReceived != payment.Amount {
		return domain.ErrPaymentAmountMismatch
	}

	now := time.Now()
	payment.GatewayPaymentID = event.GatewayPaymentID

	switch event.Type {
	case "payment_intent.succeeded":
		payment.Status = domain.PaymentCaptured
		payment.GatewayStatus = domain.GatewayCaptured
		payment.CapturedAt = now
	case "payment_intent.payment_failed":
		payment.Status = domain.PaymentFailed
		payment.GatewayStatus = domain.GatewayFailed
		payment.FailureCode = event.FailureCode
		payment.FailureReason = event.FailureMessage
		payment.FailedAt = now
	default:
		return nil
	}
	payment.UpdatedAt = now

	if err := s.payments.Update(ctx, payment); err != nil {
		return fmt.Errorf("payment.IngestWebhook: update payment: %w", err)
	}

	if payment.OrderID == "" {
		return nil
	}

	switch payment.Status {
	case domain.PaymentCaptured:
		if _, err := s.orders.withRetry(ctx, payment.OrderID, func(o *domain.Order) error {
			o.PaymentStatus = domain.PaymentCaptured
			return nil
		}); err != nil {
			s.log.Error().Err(err).Str("order_id", payment.OrderID).Msg("failed to mark order paid after capture")
		}
		s.completeCheckout(ctx, payment.CheckoutID)
		s.publish(ctx, events.NewOrderEvent(events.EventOrderConfirmed, payment.OrderID, map[string]any{"paymentId": payment.ID}))
	case domain.PaymentFailed:
		if _, err := s.orders.withRetry(ctx, payment.OrderID, func(o *domain.Order) error {
			o.PaymentStatus = domain.PaymentFailed
			return nil
		}); err != nil {
			s.log.Error().Err(err).Str("order_id", payment.OrderID).Msg("failed to mark order payment failed")
		}
		if _, err := s.orders.Cancel(ctx, payment.OrderID, domain.CancelPaymentFailed, domain.ActorSystem, ""); err != nil {
			s.log.Error().Err(err).Str("order_id", payment.OrderID).Msg("failed to auto-cancel order on payment failure")
		}
	}
	return nil
}

// VerifySignature implements §4.5's payment verification algorithm for
// a synchronous checkout-return callback: HMAC-SHA256 over
// gatewayOrderID+"|"+gatewayPaymentID, compared in constant time by the
// gateway. A mismatch is reported as domain.ErrSignatureInvalid. On
// match, it advances the payment to captured/paid and the order's
// paymentStatus, the same way IngestWebhook's capture branch does. It
// is idempotent: a payment already in a terminal status is returned
// unmutated rather than re-advanced.
func (s *PaymentService) VerifySignature(ctx context.Context, gatewayOrderID, gatewayPaymentID, signatureHex string) (*domain.Payment, error) {
	if !s.gateway.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signatureHex) {
		return nil, domain.ErrSignatureInvalid
	}

	payment, err := s.payments.GetByGatewayOrderID(ctx, "stripe", gatewayOrderID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.PaymentCaptured, domain.PaymentPaid, domain.PaymentFailed, domain.PaymentCancelled:
		return payment, nil
	}

	now := time.Now()
	payment.GatewayPaymentID = gatewayPaymentID
	payment.GatewaySignature = signatureHex
	payment.Status = domain.PaymentPaid
	payment.GatewayStatus = domain.GatewayCaptured
	payment.CapturedAt = now
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, payment); err != nil {
		return nil, fmt.Errorf("payment.VerifySignature: update payment: %w", err)
	}

	if payment.OrderID != "" {
		if _, err := s.orders.withRetry(ctx, payment.OrderID, func(o *domain.Order) error {
			o.PaymentStatus = domain.PaymentPaid
			return nil
		}); err != nil {
			s.log.Error().Err(err).Str("order_id", payment.OrderID).Msg("failed to mark order paid after signature verification")
		}
		s.completeCheckout(ctx, payment.CheckoutID)
		s.publish(ctx, events.NewOrderEvent(events.EventOrderConfirmed, payment.OrderID, map[string]any{"paymentId": payment.ID}))
	}
	return payment, nil
}

func (s *PaymentService) completeCheckout(ctx context.Context, checkoutID string) {
	if checkoutID == "" {
		return
	}
	session, err := s.checkouts.Get(ctx, checkoutID)
	if err != nil {
		s.log.Error().Err(err).Str("checkout_id", checkoutID).Msg("failed to load checkout session on payment capture")
		return
	}
	if session.Status.IsTerminal() {
		return
	}
	session.Status = domain.CheckoutCompleted
	session.UpdatedAt = time.Now()
	if err := s.checkouts.Update(ctx, session); err != nil {
		s.log.Error().Err(err).Str("checkout_id", checkoutID).Msg("failed to mark checkout session completed")
	}
}

// ReconcileStale marks payment attempts that never reached a terminal
// gateway status within the reconciliation window as failed, and cancels
// the order they were attached to. Driven by the payment-reconciliation
// scheduler worker (§4.6) since the gateway interface here exposes no
// poll-by-ID call — only inbound webhooks and the outbound create/refund
// calls — so a lapsed attempt is resolved locally rather than re-queried.
func (s *PaymentService) ReconcileStale(ctx context.Context, window time.Duration) (int, error) {
	stale, err := s.payments.ListStale(ctx, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("payment.ReconcileStale: %w", err)
	}

	var reconciled int
	for _, p := range stale {
		p.Status = domain.PaymentFailed
		p.GatewayStatus = domain.GatewayFailed
		p.FailureReason = "payment reconciliation window elapsed without gateway confirmation"
		p.FailedAt = time.Now()
		p.UpdatedAt = time.Now()
		if err := s.payments.Update(ctx, &p); err != nil {
			s.log.Error().Err(err).Str("payment_id", p.ID).Msg("failed to mark stale payment failed")
			continue
		}
		if p.OrderID != "" {
			if _, err := s.orders.Cancel(ctx, p.OrderID, domain.CancelPaymentFailed, domain.ActorSystem, ""); err != nil {
				s.log.Error().Err(err).Str("order_id", p.OrderID).Msg("failed to cancel order after stale payment reconciliation")
			}
		}
		reconciled++
	}
	return reconciled, nil
}
