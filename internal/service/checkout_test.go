package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/breaker"
	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/shipping"
)

type fakeCheckoutRepo struct {
	repository.CheckoutSessionRepository
	session *domain.CheckoutSession
	updated *domain.CheckoutSession
}

func (f *fakeCheckoutRepo) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return f.session, nil
}

func (f *fakeCheckoutRepo) Update(ctx context.Context, s *domain.CheckoutSession) error {
	f.updated = s
	return nil
}

type fakeCartRepoForCheckout struct {
	repository.CartRepository
	items []domain.CartItem
}

func (f *fakeCartRepoForCheckout) ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	return f.items, nil
}

func (f *fakeCartRepoForCheckout) Get(ctx context.Context, id string) (*domain.Cart, error) {
	return &domain.Cart{ID: id, Status: domain.CartActive}, nil
}

type fakePricing struct {
	quotes map[string]provider.PriceQuote
}

func (f *fakePricing) GetPrices(ctx context.Context, lines []provider.PriceLookup) (map[string]provider.PriceQuote, error) {
	return f.quotes, nil
}

type fakeCatalog struct {
	statuses map[string]provider.ProductStatus
}

func (f *fakeCatalog) GetStatus(ctx context.Context, variantIDs []string) (map[string]provider.ProductStatus, error) {
	return f.statuses, nil
}

func newTestBreakers() *breaker.Manager {
	return breaker.NewManager(breaker.DefaultConfig(),
		breaker.Pricing, breaker.Catalog, breaker.Inventory, breaker.Shipping, breaker.Notification, breaker.Gateway)
}

// TestCheckoutService_Complete_BlocksOnPriceDrift verifies §8's
// checkout price-drift property: if live repricing moves the subtotal
// beyond tolerance of the frozen checkout snapshot, Complete refuses to
// open a payment order rather than charging a stale amount.
func TestCheckoutService_Complete_BlocksOnPriceDrift(t *testing.T) {
	breakers := newTestBreakers()

	session := &domain.CheckoutSession{
		ID: "sess-1", UserID: "user-1", CartID: "cart-1",
		Status:    domain.CheckoutInitiated,
		ExpiresAt: time.Now().Add(30 * time.Minute),
		Totals:    domain.TotalsSnapshot{SubtotalCents: 10000, GrandTotal: 10000},
	}
	items := []domain.CartItem{
		{ID: "item-1", CartID: "cart-1", ProductID: "p1", VariantID: "v1", Quantity: 1, UnitPrice: money.FromRupees(100), LineTotal: money.FromRupees(100)},
	}

	checkoutRepo := &fakeCheckoutRepo{session: session}
	cartRepo := &fakeCartRepoForCheckout{items: items}
	pricing := &fakePricing{quotes: map[string]provider.PriceQuote{
		"v1": {UnitPrice: money.FromRupees(500), UnitMRP: money.FromRupees(500)},
	}}
	catalog := &fakeCatalog{statuses: map[string]provider.ProductStatus{
		"v1": {ProductExists: true, VariantExists: true, Active: true},
	}}
	revalidator := NewRevalidator(pricing, catalog, breakers, zerolog.Nop())

	svc := &CheckoutService{
		checkouts: checkoutRepo, carts: cartRepo, revalidator: revalidator,
		breakers: breakers, log: zerolog.Nop(),
	}

	_, _, _, err := svc.Complete(context.Background(), session.ID, "buyer@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTotalsDrifted)
	assert.Nil(t, checkoutRepo.updated, "a drifted checkout must not be advanced to payment_pending")
}

// TestCheckoutService_InitiateCheckout_NoServiceableRate verifies that
// an empty shipping quote (no configured rate for the destination)
// surfaces as a conflict rather than silently proceeding with
// a zero shipping cost.
func TestCheckoutService_InitiateCheckout_NoServiceableRate(t *testing.T) {
	breakers := newTestBreakers()

	cartRepo := &fakeCartRepoForCheckout{items: []domain.CartItem{
		{ID: "item-1", CartID: "cart-1", ProductID: "p1", VariantID: "v1", Quantity: 1, UnitPrice: money.FromRupees(100), LineTotal: money.FromRupees(100)},
	}}
	pricing := &fakePricing{quotes: map[string]provider.PriceQuote{}}
	catalog := &fakeCatalog{statuses: map[string]provider.ProductStatus{
		"v1": {ProductExists: true, VariantExists: true, Active: true},
	}}
	revalidator := NewRevalidator(pricing, catalog, breakers, zerolog.Nop())

	shippingProvider := shipping.NewMockProvider()
	shippingProvider.GetRatesFunc = func(ctx context.Context, params shipping.RateParams) ([]shipping.Rate, error) {
		return nil, nil // no serviceable rate for this destination
	}

	svc := &CheckoutService{
		carts: cartRepo, revalidator: revalidator, shippingProvider: shippingProvider,
		breakers: breakers, log: zerolog.Nop(),
	}

	_, err := svc.InitiateCheckout(context.Background(), "user-1", "cart-1",
		domain.Address{FullName: "Test", Pincode: "000000"}, domain.Address{}, "upi")
	require.Error(t, err)
	assert.True(t, domain.IsCode(err, domain.ECONFLICT))
}
