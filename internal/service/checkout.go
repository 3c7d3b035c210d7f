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
	"github.com/dukerupert/freyja/internal/shipping"
	"github.com/dukerupert/freyja/internal/tax"
)

// CheckoutService drives the time-bounded checkout session from
// initiation through the gateway payment-order handoff (§4.3).
type CheckoutService struct {
	checkouts   repository.CheckoutSessionRepository
	carts       repository.CartRepository
	orders      *OrderService
	payments    *PaymentService
	revalidator *Revalidator

	shippingProvider shipping.Provider
	inventory        provider.Inventory
	gateway          provider.Gateway
	taxCalc          tax.Calculator

	breakers *breaker.Manager
	events   events.Publisher
	log      zerolog.Logger

	// Origin is the warehouse/seller address used as the shipping-rate
	// origin and GST seller-state lookup.
	Origin     shipping.ShippingAddress
	SellerGSTState string
	DefaultGSTRatePct float64
}

func NewCheckoutService(
	checkouts repository.CheckoutSessionRepository,
	carts repository.CartRepository,
	orders *OrderService,
	payments *PaymentService,
	revalidator *Revalidator,
	shippingProvider shipping.Provider,
	inventory provider.Inventory,
	gateway provider.Gateway,
	taxCalc tax.Calculator,
	breakers *breaker.Manager,
	pub events.Publisher,
	log zerolog.Logger,
) *CheckoutService {
	return &CheckoutService{
		checkouts: checkouts, carts: carts, orders: orders, payments: payments, revalidator: revalidator,
		shippingProvider: shippingProvider, inventory: inventory, gateway: gateway, taxCalc: taxCalc,
		breakers: breakers, events: pub, log: log.With().Str("component", "checkout_service").Logger(),
		DefaultGSTRatePct: 18,
	}
}

func (s *CheckoutService) publish(ctx context.Context, e events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.Warn().Err(err).Str("event_type", e.Type).Msg("failed to publish checkout event")
	}
}

// InitiateCheckout revalidates the cart, prices shipping and tax, reserves
// inventory, and freezes a checkout session snapshot (§4.3 steps 1-5).
func (s *CheckoutService) InitiateCheckout(ctx context.Context, userID, cartID string, shippingAddr, billingAddr domain.Address, paymentMethodTag string) (*domain.CheckoutSession, error) {
	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status != domain.CartActive {
		return nil, domain.ErrCartNotActive
	}

	items, err := s.carts.ListItems(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("checkout.InitiateCheckout: list items: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.Invalid("checkout.InitiateCheckout", "cart is empty")
	}

	revalidation, items, err := s.revalidator.Revalidate(ctx, items)
	if err != nil {
		return nil, err
	}
	if len(revalidation.Unavailable) > 0 {
		return nil, domain.ErrCartInvalid
	}

	rate, err := s.quoteShipping(ctx, shippingAddr)
	if err != nil {
		return nil, err
	}

	itemSnapshots := make([]domain.CheckoutItemSnapshot, len(items))
	var subtotal, discount money.Amount
	for i, it := range items {
		itemSnapshots[i] = domain.CheckoutItemSnapshot{
			ProductID: it.ProductID, VariantID: it.VariantID, BundleID: it.BundleID,
			Quantity: it.Quantity, UnitPrice: it.UnitPrice, UnitMRP: it.UnitMRP,
			LineDiscount: it.LineDiscount, LineTotal: it.LineTotal, IsFreeGift: it.IsFreeGift,
		}
		subtotal += it.LineTotal
	}
	for _, c := range cart.AppliedCoupons {
		discount += c.DiscountAmount
	}

	shippingTotal := money.Amount(rate.CostCents)
	taxTotal, err := s.quoteTax(ctx, subtotal, shippingTotal, shippingAddr)
	if err != nil {
		return nil, err
	}
	grandTotal := (subtotal - discount + shippingTotal + taxTotal).NonNegative()

	token := domain.NewID()
	lines := make([]provider.StockLookup, len(items))
	for i, it := range items {
		lines[i] = provider.StockLookup{VariantID: it.VariantID, Quantity: it.Quantity}
	}
	if err := s.breakers.Do(breaker.Inventory, func() error {
		return s.inventory.Reserve(ctx, token, lines, domain.ReservationTTL)
	}); err != nil {
		return nil, domain.Conflict("checkout.InitiateCheckout", "insufficient stock to reserve one or more items")
	}

	now := time.Now()
	session := &domain.CheckoutSession{
		ID: domain.NewID(), UserID: userID, CartID: cartID,
		Items:           itemSnapshots,
		ShippingAddress: shippingAddr,
		BillingAddress:  billingAddr,
		ShippingMethod: domain.ShippingMethodSnapshot{
			MethodCode: rate.ServiceCode, MethodName: rate.ServiceName, RateCents: rate.CostCents,
			EstDaysMin: rate.EstimatedDaysMin, EstDaysMax: rate.EstimatedDaysMax,
		},
		PaymentMethod: paymentMethodTag,
		Totals: domain.TotalsSnapshot{
			SubtotalCents: int64(subtotal), DiscountCents: int64(discount),
			ShippingCents: int64(shippingTotal), TaxCents: int64(taxTotal), GrandTotal: int64(grandTotal),
		},
		ReservationToken: token,
		Status:           domain.CheckoutInitiated,
		ExpiresAt:        now.Add(domain.CheckoutDefaultTTL),
		Timestamps:       domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}

	if err := s.checkouts.Create(ctx, session); err != nil {
		_ = s.breakers.Do(breaker.Inventory, func() error { return s.inventory.Release(ctx, token) })
		return nil, fmt.Errorf("checkout.InitiateCheckout: create session: %w", err)
	}

	s.publish(ctx, events.NewCheckoutEvent(events.EventCheckoutInitiated, session.ID, map[string]any{"cartId": cartID}))
	return session, nil
}

func (s *CheckoutService) quoteShipping(ctx context.Context, dest domain.Address) (shipping.Rate, error) {
	var rates []shipping.Rate
	err := s.breakers.Do(breaker.Shipping, func() error {
		var doErr error
		rates, doErr = s.shippingProvider.GetRates(ctx, shipping.RateParams{
			OriginAddress:      s.Origin,
			DestinationAddress: toShippingAddress(dest),
		})
		return doErr
	})
	if err != nil {
		return shipping.Rate{}, domain.Unavailable("checkout.quoteShipping", "shipping service unavailable", err)
	}
	if len(rates) == 0 {
		return shipping.Rate{}, domain.Conflict("checkout.quoteShipping", "no shipping method serviceable for this address")
	}
	return rates[0], nil
}

func toShippingAddress(a domain.Address) shipping.ShippingAddress {
	return shipping.ShippingAddress{Name: a.FullName, Line1: a.Line1, Line2: a.Line2, City: a.City, State: a.State, Pincode: a.Pincode, Country: a.Country, Phone: a.Phone}
}

func (s *CheckoutService) quoteTax(ctx context.Context, subtotal, shippingTotal money.Amount, shipTo domain.Address) (money.Amount, error) {
	result, err := s.taxCalc.CalculateTax(ctx, tax.TaxParams{
		Seller:          tax.SellerParams{State: s.SellerGSTState},
		ShippingAddress: tax.Address{Line1: shipTo.Line1, Line2: shipTo.Line2, City: shipTo.City, State: shipTo.State, Pincode: shipTo.Pincode, Country: shipTo.Country},
		LineItems:       []tax.LineItem{{TotalCents: int64(subtotal), TaxRatePct: s.DefaultGSTRatePct}},
		ShippingCents:   int64(shippingTotal),
	})
	if err != nil {
		return 0, fmt.Errorf("checkout.quoteTax: %w", err)
	}
	return money.Amount(result.TotalTaxCents), nil
}

// Complete re-validates the frozen snapshot against live totals, opens the
// gateway payment order, and materializes the Order (§4.3 steps 1-5 of
// `complete`). customerEmail is passed through to the gateway receipt and
// the order's customer contact snapshot.
func (s *CheckoutService) Complete(ctx context.Context, sessionID, customerEmail string) (*domain.CheckoutSession, *domain.Order, *provider.PaymentOrder, error) {
	session, err := s.checkouts.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, nil, err
	}
	switch session.Status {
	case domain.CheckoutInitiated, domain.CheckoutAddressEntered, domain.CheckoutPaymentPending:
	default:
		return nil, nil, nil, domain.ErrCheckoutInvalidState
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, nil, nil, domain.ErrCheckoutExpired
	}

	items, err := s.carts.ListItems(ctx, session.CartID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("checkout.Complete: list items: %w", err)
	}
	_, items, err = s.revalidator.Revalidate(ctx, items)
	if err != nil {
		return nil, nil, nil, err
	}

	var liveSubtotal money.Amount
	for _, it := range items {
		liveSubtotal += it.LineTotal
	}
	frozenSubtotal := money.Amount(session.Totals.SubtotalCents)
	if liveSubtotal.Exceeds(frozenSubtotal, money.Tolerance) {
		return nil, nil, nil, domain.ErrTotalsDrifted
	}

	idemKey := fmt.Sprintf("payment-%s-%s-%d", session.UserID, session.ID, session.CreatedAt.Unix())
	var paymentOrder *provider.PaymentOrder
	if err := s.breakers.Do(breaker.Gateway, func() error {
		var doErr error
		paymentOrder, doErr = s.gateway.CreatePaymentOrder(ctx, provider.CreatePaymentOrderParams{
			Amount: money.Amount(session.Totals.GrandTotal), Currency: "INR",
			CheckoutID: session.ID, CustomerEmail: customerEmail, IdempotencyKey: idemKey,
		})
		return doErr
	}); err != nil {
		return nil, nil, nil, domain.Unavailable("checkout.Complete", "payment gateway unavailable", err)
	}

	order, err := s.orders.CreateFromCheckout(ctx, session, customerEmail)
	if err != nil {
		return nil, nil, nil, err
	}

	method := domain.PaymentMethodSnapshot{Tag: session.PaymentMethod}
	if _, err := s.payments.CreatePending(ctx, order.ID, session.ID, paymentOrder, money.Amount(session.Totals.GrandTotal), method); err != nil {
		s.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to record pending payment for created order")
	}

	session.Status = domain.CheckoutPaymentPending
	session.OrderID = order.ID
	session.UpdatedAt = time.Now()
	if err := s.checkouts.Update(ctx, session); err != nil {
		return nil, nil, nil, fmt.Errorf("checkout.Complete: update session: %w", err)
	}

	if cart, err := s.carts.Get(ctx, session.CartID); err == nil {
		cart.Status = domain.CartConverted
		cart.UpdatedAt = time.Now()
		if err := s.carts.Update(ctx, cart); err != nil {
			s.log.Error().Err(err).Str("cart_id", cart.ID).Msg("failed to mark cart converted after checkout completion")
		}
	}

	s.publish(ctx, events.NewCheckoutEvent(events.EventCheckoutCompleted, session.ID, map[string]any{"orderId": order.ID}))
	return session, order, paymentOrder, nil
}

// Expire flips a stale session to expired and releases its reservation,
// called by the checkout-expiry worker (§4.3/§4.6).
func (s *CheckoutService) Expire(ctx context.Context, session *domain.CheckoutSession) error {
	if err := s.breakers.Do(breaker.Inventory, func() error {
		return s.inventory.Release(ctx, session.ReservationToken)
	}); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID).Msg("failed to release reservation on checkout expiry")
	}
	session.Status = domain.CheckoutExpired
	session.UpdatedAt = time.Now()
	if err := s.checkouts.Update(ctx, session); err != nil {
		return fmt.Errorf("checkout.Expire: %w", err)
	}
	s.publish(ctx, events.NewCheckoutEvent(events.EventCheckoutExpired, session.ID, nil))
	return nil
}
