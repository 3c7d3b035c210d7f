package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/events"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/sequence"
)

// istLocation is the timezone the return window boundary is evaluated
// in (§6 configuration default Asia/Kolkata). Falls back to UTC if the
// tzdata database isn't available in the runtime image.
var istLocation = loadISTLocation()

func loadISTLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.UTC
	}
	return loc
}

// ReturnService drives the return lifecycle from request through
// warehouse inspection to the triggering refund (§4.5).
type ReturnService struct {
	returns repository.ReturnRepository
	orders  *OrderService
	refunds *RefundService
	seq     *sequence.Generator

	events events.Publisher
	log    zerolog.Logger

	ReturnNumberPrefix string
	WindowDays         int
}

func NewReturnService(returns repository.ReturnRepository, orders *OrderService, refunds *RefundService, seq *sequence.Generator, windowDays int, pub events.Publisher, log zerolog.Logger) *ReturnService {
	return &ReturnService{
		returns: returns, orders: orders, refunds: refunds, seq: seq,
		events: pub, log: log.With().Str("component", "return_service").Logger(),
		ReturnNumberPrefix: "RET", WindowDays: windowDays,
	}
}

func (s *ReturnService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish return event")
	}
}

// deliveredAt finds when the order last transitioned into delivered, by
// scanning its append-only status history.
func (s *ReturnService) deliveredAt(ctx context.Context, orderID string) (time.Time, error) {
	history, err := s.orders.orders.ListHistory(ctx, orderID)
	if err != nil {
		return time.Time{}, err
	}
	var deliveredAt time.Time
	for _, h := range history {
		if h.Type == domain.HistoryOrder && h.ToStatus == string(domain.OrderDelivered) {
			deliveredAt = h.CreatedAt
		}
	}
	if deliveredAt.IsZero() {
		return time.Time{}, domain.ErrReturnNotEligible
	}
	return deliveredAt, nil
}

// withinReturnWindow reports whether now falls on or before the last
// calendar day of the window, at 23:59:59 IST — delivered exactly
// WindowDays ago at 23:59:59 is still eligible, one second later is not
// (§8 boundary).
func (s *ReturnService) withinReturnWindow(deliveredAt, now time.Time) bool {
	local := deliveredAt.In(istLocation)
	deadlineDate := local.AddDate(0, 0, s.WindowDays)
	deadline := time.Date(deadlineDate.Year(), deadlineDate.Month(), deadlineDate.Day(), 23, 59, 59, 0, istLocation)
	return !now.In(istLocation).After(deadline)
}

// Request opens a return against a delivered order's lines, gated on the
// return window and each line's delivered/returned counters.
func (s *ReturnService) Request(ctx context.Context, orderID, userID string, lines []domain.ReturnLineItem, reason string, pickupAddr domain.Address) (*domain.Return, error) {
	order, err := s.orders.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderDelivered {
		return nil, domain.ErrReturnNotEligible
	}

	deliveredAt, err := s.deliveredAt(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !s.withinReturnWindow(deliveredAt, time.Now()) {
		return nil, domain.ErrReturnWindowExpired
	}

	items, err := s.orders.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	itemsByID := make(map[string]domain.OrderItem, len(items))
	for _, it := range items {
		itemsByID[it.ID] = it
	}

	for _, l := range lines {
		it, ok := itemsByID[l.OrderItemID]
		if !ok {
			return nil, domain.NotFound("return.Request", "order item", l.OrderItemID)
		}
		if l.Quantity <= 0 || l.Quantity > it.QuantityFulfilled-it.QuantityReturned {
			return nil, domain.ErrReturnQtyExceedsOrder
		}
	}

	now := time.Now()
	seq, err := s.seq.Next(ctx, "return", now.Year())
	if err != nil {
		return nil, fmt.Errorf("return.Request: mint return number: %w", err)
	}

	rt := &domain.Return{
		ID: domain.NewID(), ReturnNumber: domain.FormatReturnNumber(s.ReturnNumberPrefix, now.Year(), seq),
		OrderID: orderID, UserID: userID, Lines: lines, Reason: reason,
		Status: domain.ReturnRequested, PickupAddress: pickupAddr,
		Timestamps: domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.returns.Create(ctx, rt); err != nil {
		return nil, fmt.Errorf("return.Request: %w", err)
	}
	s.publish(ctx, events.NewReturnEvent(events.EventReturnRequested, rt.ID, map[string]any{"orderId": orderID}))
	return rt, nil
}

// Approve transitions a requested return to approved and schedules a
// pickup window.
func (s *ReturnService) Approve(ctx context.Context, returnID string, pickupScheduledFor time.Time) (*domain.Return, error) {
	rt, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionReturn(rt.Status, domain.ReturnApproved) {
		return nil, domain.ErrReturnInvalidState
	}
	rt.Status = domain.ReturnApproved
	rt.PickupScheduledFor = pickupScheduledFor
	rt.UpdatedAt = time.Now()
	if err := s.returns.Update(ctx, rt); err != nil {
		return nil, fmt.Errorf("return.Approve: %w", err)
	}
	s.publish(ctx, events.NewReturnEvent(events.EventReturnApproved, rt.ID, nil))
	return rt, nil
}

// Reject transitions a return to rejected, usable either right after
// request or after warehouse inspection.
func (s *ReturnService) Reject(ctx context.Context, returnID, notes string) (*domain.Return, error) {
	rt, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionReturn(rt.Status, domain.ReturnRejected) {
		return nil, domain.ErrReturnInvalidState
	}
	rt.Status = domain.ReturnRejected
	rt.InspectionNotes = notes
	rt.UpdatedAt = time.Now()
	if err := s.returns.Update(ctx, rt); err != nil {
		return nil, fmt.Errorf("return.Reject: %w", err)
	}
	return rt, nil
}

// AdvancePickup moves a return through the courier's pickup/transit
// stages, driven by carrier webhooks or manual ops updates.
func (s *ReturnService) AdvancePickup(ctx context.Context, returnID string, to domain.ReturnStatus, carrierAWB string) (*domain.Return, error) {
	rt, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionReturn(rt.Status, to) {
		return nil, domain.ErrReturnInvalidState
	}
	rt.Status = to
	if carrierAWB != "" {
		rt.CarrierAWB = carrierAWB
	}
	rt.UpdatedAt = time.Now()
	if err := s.returns.Update(ctx, rt); err != nil {
		return nil, fmt.Errorf("return.AdvancePickup: %w", err)
	}
	return rt, nil
}

// Inspect records the warehouse's verdict on a received return. An
// accepted (full or partial) verdict opens a refund for the accepted
// lines; a rejected verdict ends the return without one.
func (s *ReturnService) Inspect(ctx context.Context, returnID string, verdict domain.InspectionVerdict, notes string, acceptedLines []LineRequest, refundMethod domain.RefundMethod) (*domain.Return, error) {
	rt, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if rt.Status != domain.ReturnReceived {
		return nil, domain.ErrReturnInvalidState
	}

	rt.InspectionVerdict = verdict
	rt.InspectionNotes = notes
	rt.InspectedAt = time.Now()

	switch verdict {
	case domain.InspectionAccepted, domain.InspectionAcceptedPartial:
		rt.Status = domain.ReturnInspected
		rt.UpdatedAt = time.Now()
		if err := s.returns.Update(ctx, rt); err != nil {
			return nil, fmt.Errorf("return.Inspect: %w", err)
		}

		if err := s.markReturned(ctx, rt.OrderID, rt.Lines); err != nil {
			s.log.Error().Err(err).Str("return_id", rt.ID).Msg("failed to record returned quantities")
		}

		refund, err := s.refunds.Request(ctx, rt.OrderID, acceptedLines, "return inspection accepted", refundMethod, domain.ActorSystem, "")
		if err != nil {
			return nil, fmt.Errorf("return.Inspect: open refund: %w", err)
		}
		rt.Status = domain.ReturnRefundInitiated
		rt.RefundID = refund.ID
		rt.UpdatedAt = time.Now()
		if err := s.returns.Update(ctx, rt); err != nil {
			return nil, fmt.Errorf("return.Inspect: link refund: %w", err)
		}
	default:
		// Rejected-on-inspection lands on inspected before moving to
		// cancelled with the inspection notes as the reason, per the
		// return state machine — ReturnReceived has no direct edge to
		// a terminal rejection status.
		if !domain.CanTransitionReturn(rt.Status, domain.ReturnInspected) {
			return nil, domain.ErrReturnInvalidState
		}
		rt.Status = domain.ReturnInspected
		rt.UpdatedAt = time.Now()
		if err := s.returns.Update(ctx, rt); err != nil {
			return nil, fmt.Errorf("return.Inspect: %w", err)
		}

		if !domain.CanTransitionReturn(rt.Status, domain.ReturnCancelled) {
			return nil, domain.ErrReturnInvalidState
		}
		rt.Status = domain.ReturnCancelled
		rt.UpdatedAt = time.Now()
		if err := s.returns.Update(ctx, rt); err != nil {
			return nil, fmt.Errorf("return.Inspect: %w", err)
		}
	}

	return rt, nil
}

// markReturned increments QuantityReturned on each order line an
// accepted return covers.
func (s *ReturnService) markReturned(ctx context.Context, orderID string, lines []domain.ReturnLineItem) error {
	items, err := s.orders.orders.ListItems(ctx, orderID)
	if err != nil {
		return err
	}
	byID := make(map[string]domain.OrderItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for _, l := range lines {
		it, ok := byID[l.OrderItemID]
		if !ok {
			continue
		}
		it.QuantityReturned += l.Quantity
		if err := s.orders.orders.UpdateItem(ctx, &it); err != nil {
			return err
		}
	}
	return nil
}

// Complete finalizes a return once its refund has settled.
func (s *ReturnService) Complete(ctx context.Context, returnID string) (*domain.Return, error) {
	rt, err := s.returns.Get(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransitionReturn(rt.Status, domain.ReturnCompleted) {
		return nil, domain.ErrReturnInvalidState
	}
	rt.Status = domain.ReturnCompleted
	rt.UpdatedAt = time.Now()
	if err := s.returns.Update(ctx, rt); err != nil {
		return nil, fmt.Errorf("return.Complete: %w", err)
	}
	s.publish(ctx, events.NewReturnEvent(events.EventReturnCompleted, rt.ID, nil))
	return rt, nil
}
