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
	"github.com/dukerupert/freyja/internal/sequence"
)

// RefundService drives partial or full refunds against an order's
// payment, including the per-line remaining-refundable cap and the
// proportional discount math (§4.5).
type RefundService struct {
	refunds      repository.RefundRepository
	payments     repository.PaymentRepository
	storeCredits repository.StoreCreditRepository
	orders       *OrderService
	gateway      provider.Gateway
	seq          *sequence.Generator

	breakers *breaker.Manager
	events   events.Publisher
	log      zerolog.Logger

	RefundNumberPrefix string
}

func NewRefundService(refunds repository.RefundRepository, payments repository.PaymentRepository, storeCredits repository.StoreCreditRepository, orders *OrderService, gateway provider.Gateway, seq *sequence.Generator, breakers *breaker.Manager, pub events.Publisher, log zerolog.Logger) *RefundService {
	return &RefundService{
		refunds: refunds, payments: payments, storeCredits: storeCredits, orders: orders, gateway: gateway, seq: seq,
		breakers: breakers, events: pub, log: log.With().Str("component", "refund_service").Logger(),
		RefundNumberPrefix: "REF",
	}
}

func (s *RefundService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish refund event")
	}
}

// LineRequest is one requested refund line: an order item and how much of
// its remaining refundable quantity to return.
type LineRequest struct {
	OrderItemID string
	Quantity    int
}

// Request opens a refund against orderID's most recent payment. Each
// line's quantity is capped at OrderItem.RemainingRefundable, and its
// amount is the order line's unit price times quantity less its
// proportional share of any line discount (§4.5 proportional math).
func (s *RefundService) Request(ctx context.Context, orderID string, lines []LineRequest, reason string, method domain.RefundMethod, actor domain.ChangedByActor, actorID string) (*domain.Refund, error) {
	order, err := s.orders.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderCancelled {
		return nil, domain.ErrRefundInvalidState
	}
	items, err := s.orders.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	itemsByID := make(map[string]domain.OrderItem, len(items))
	for _, it := range items {
		itemsByID[it.ID] = it
	}

	payment, err := s.payments.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	refundLines := make([]domain.RefundLineItem, 0, len(lines))
	var total money.Amount
	for _, req := range lines {
		it, ok := itemsByID[req.OrderItemID]
		if !ok {
			return nil, domain.NotFound("refund.Request", "order item", req.OrderItemID)
		}
		if req.Quantity <= 0 || req.Quantity > it.RemainingRefundable() {
			return nil, domain.ErrRefundLineQtyExceeded
		}

		lineDiscountShare := it.LineDiscount.MulFrac(int64(req.Quantity), int64(it.Quantity))
		amount := it.UnitPrice.Mul(req.Quantity).Sub(lineDiscountShare).NonNegative()
		refundLines = append(refundLines, domain.RefundLineItem{OrderItemID: it.ID, Quantity: req.Quantity, Amount: amount})
		total += amount
	}

	if total > payment.Refundable() {
		return nil, domain.ErrRefundExceedsBalance
	}

	now := time.Now()
	seq, err := s.seq.Next(ctx, "refund", now.Year())
	if err != nil {
		return nil, fmt.Errorf("refund.Request: mint refund number: %w", err)
	}

	refund := &domain.Refund{
		ID: domain.NewID(), RefundNumber: domain.FormatRefundNumber(s.RefundNumberPrefix, now.Year(), seq),
		OrderID: orderID, PaymentID: payment.ID,
		Lines: refundLines, Amount: total, Reason: reason, Method: method,
		Status: domain.RefundRequested, InitiatedBy: actor, ActorID: actorID,
		Timestamps: domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.refunds.Create(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund.Request: %w", err)
	}

	s.publish(ctx, events.NewRefundEvent(events.EventRefundRequested, refund.ID, map[string]any{"orderId": orderID, "amount": int64(total)}))
	return refund, nil
}

// Approve transitions a requested refund to approved, recording the
// admin-approved amount (capped at the requested Amount, per §4.5).
func (s *RefundService) Approve(ctx context.Context, refundID string, approvedAmount money.Amount, actorID string) (*domain.Refund, error) {
	refund, err := s.refunds.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionRefund(refund.Status, domain.RefundApproved) {
		return nil, domain.ErrRefundInvalidState
	}
	if approvedAmount <= 0 || approvedAmount > refund.Amount {
		return nil, domain.ErrRefundApprovedExceeds
	}
	refund.Status = domain.RefundApproved
	refund.ApprovedAmount = approvedAmount
	refund.UpdatedAt = time.Now()
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund.Approve: %w", err)
	}
	s.publish(ctx, events.NewRefundEvent(events.EventRefundApproved, refund.ID, map[string]any{"actorId": actorID, "approvedAmount": int64(approvedAmount)}))
	return refund, nil
}

// Reject transitions a requested refund to rejected.
func (s *RefundService) Reject(ctx context.Context, refundID, actorID, reason string) (*domain.Refund, error) {
	refund, err := s.refunds.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionRefund(refund.Status, domain.RefundRejected) {
		return nil, domain.ErrRefundInvalidState
	}
	refund.Status = domain.RefundRejected
	refund.FailureReason = reason
	refund.UpdatedAt = time.Now()
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund.Reject: %w", err)
	}
	s.publish(ctx, events.NewRefundEvent(events.EventRefundRejected, refund.ID, map[string]any{"reason": reason}))
	return refund, nil
}

func (s *RefundService) transition(ctx context.Context, refundID string, to domain.RefundStatus, actorID, eventType string) (*domain.Refund, error) {
	refund, err := s.refunds.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionRefund(refund.Status, to) {
		return nil, domain.ErrRefundInvalidState
	}
	refund.Status = to
	refund.UpdatedAt = time.Now()
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund.transition: %w", err)
	}
	s.publish(ctx, events.NewRefundEvent(eventType, refund.ID, map[string]any{"actorId": actorID}))
	return refund, nil
}

// Process dispatches an approved refund to its settlement method: the
// original payment source via the gateway, or a store-credit/bank-transfer
// path recorded for manual/ledger settlement.
func (s *RefundService) Process(ctx context.Context, refundID string) (*domain.Refund, error) {
	refund, err := s.refunds.Get(ctx, refundID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionRefund(refund.Status, domain.RefundProcessing) {
		return nil, domain.ErrRefundInvalidState
	}
	refund.Status = domain.RefundProcessing
	refund.UpdatedAt = time.Now()
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund.Process: %w", err)
	}

	switch refund.Method {
	case domain.RefundToSource:
		return s.processGateway(ctx, refund)
	case domain.RefundStoreCredit:
		return s.processStoreCredit(ctx, refund)
	default:
		// bank_transfer settles outside the gateway; the refund sits
		// in processing until an operator confirms the transfer
		// externally.
		return refund, nil
	}
}

// processStoreCredit settles a refund by writing one ledger entry to the
// customer's store-credit balance. Unlike a gateway refund there's no
// external round trip, so the refund completes immediately.
func (s *RefundService) processStoreCredit(ctx context.Context, refund *domain.Refund) (*domain.Refund, error) {
	order, err := s.orders.orders.Get(ctx, refund.OrderID)
	if err != nil {
		return nil, fmt.Errorf("refund.processStoreCredit: %w", err)
	}

	now := time.Now()
	entry := &domain.StoreCreditEntry{
		ID: domain.NewID(), UserID: order.UserID, RefundID: refund.ID,
		Amount: refund.ApprovedAmount, Reason: refund.Reason,
		Timestamps: domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.storeCredits.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("refund.processStoreCredit: %w", err)
	}

	refund.Status = domain.RefundCompleted
	refund.ProcessedAt = now
	refund.UpdatedAt = now
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund.processStoreCredit: %w", err)
	}

	s.publish(ctx, events.NewRefundEvent(events.EventRefundCompleted, refund.ID, map[string]any{"method": "store_credit", "amount": int64(refund.ApprovedAmount)}))
	return refund, nil
}

func (s *RefundService) processGateway(ctx context.Context, refund *domain.Refund) (*domain.Refund, error) {
	payment, err := s.payments.Get(ctx, refund.PaymentID)
	if err != nil {
		return nil, err
	}

	var gwRefund *provider.GatewayRefund
	err = s.breakers.Do(breaker.Gateway, func() error {
		var doErr error
		gwRefund, doErr = s.gateway.Refund(ctx, provider.RefundParams{
			GatewayPaymentID: payment.GatewayPaymentID, Amount: refund.ApprovedAmount,
			Reason: refund.Reason, IdempotencyKey: fmt.Sprintf("refund-%s", refund.ID),
		})
		return doErr
	})

	now := time.Now()
	if err != nil {
		refund.Status = domain.RefundFailed
		refund.FailureReason = err.Error()
		refund.UpdatedAt = now
		_ = s.refunds.Update(ctx, refund)
		return refund, domain.Unavailable("refund.processGateway", "payment gateway unavailable", err)
	}

	refund.Status = domain.RefundCompleted
	refund.GatewayRefundID = gwRefund.GatewayRefundID
	refund.ProcessedAt = now
	refund.UpdatedAt = now
	if err := s.refunds.Update(ctx, refund); err != nil {
		return nil, fmt.Errorf("refund.processGateway: %w", err)
	}

	payment.RefundedAmount += refund.ApprovedAmount
	if payment.RefundedAmount >= payment.Amount {
		payment.Status = domain.PaymentRefunded
	} else {
		payment.Status = domain.PaymentPartiallyRefunded
	}
	payment.UpdatedAt = now
	if err := s.payments.Update(ctx, payment); err != nil {
		s.log.Error().Err(err).Str("payment_id", payment.ID).Msg("failed to update payment refunded amount")
	}

	if _, err := s.orders.withRetry(ctx, refund.OrderID, func(o *domain.Order) error {
		o.PaymentStatus = payment.Status
		return nil
	}); err != nil {
		s.log.Error().Err(err).Str("order_id", refund.OrderID).Msg("failed to update order payment status after refund")
	}

	s.publish(ctx, events.NewRefundEvent(events.EventRefundCompleted, refund.ID, map[string]any{"gatewayRefundId": gwRefund.GatewayRefundID}))
	return refund, nil
}
