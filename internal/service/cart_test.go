package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/repository"
)

// fakeCartRepoForAddItem models the (cartId, variantId, bundleId)-keyed
// upsert semantics of PostgresCartRepository.UpsertItem: a write to an
// existing key replaces that row's quantity rather than adding to it, so
// AddItem's coalescing correctness lives entirely in the service's
// read-then-write arithmetic, not in the repository.
type fakeCartRepoForAddItem struct {
	repository.CartRepository
	mu    sync.Mutex
	cart  domain.Cart
	items []domain.CartItem
}

func (f *fakeCartRepoForAddItem) Get(ctx context.Context, id string) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := f.cart
	return &cp, nil
}

func (f *fakeCartRepoForAddItem) ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.CartItem, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeCartRepoForAddItem) UpsertItem(ctx context.Context, item *domain.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].Key() == item.Key() {
			f.items[i] = *item
			return nil
		}
	}
	f.items = append(f.items, *item)
	return nil
}

func (f *fakeCartRepoForAddItem) Update(ctx context.Context, c *domain.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cart = *c
	return nil
}

type fakePricingForCart struct {
	quote provider.PriceQuote
}

func (f *fakePricingForCart) GetPrices(ctx context.Context, lines []provider.PriceLookup) (map[string]provider.PriceQuote, error) {
	out := make(map[string]provider.PriceQuote, len(lines))
	for _, l := range lines {
		out[l.VariantID] = f.quote
	}
	return out, nil
}

func newTestCartService(repo repository.CartRepository, pricing provider.Pricing) *CartService {
	return NewCartService(repo, pricing, nil, newTestBreakers(), nil, zerolog.Nop())
}

// TestCartService_AddItem_CoalescesRepeatedCallsIntoOneLine verifies
// §8(b): repeated addItem calls for the same (variantId, bundleId) on a
// cart combine into a single line with the summed quantity rather than
// duplicate rows.
func TestCartService_AddItem_CoalescesRepeatedCallsIntoOneLine(t *testing.T) {
	repo := &fakeCartRepoForAddItem{cart: domain.Cart{ID: "cart-1", Status: domain.CartActive}}
	pricing := &fakePricingForCart{quote: provider.PriceQuote{UnitPrice: 10000, UnitMRP: 10000, Available: true}}
	svc := newTestCartService(repo, pricing)

	// Five separate requests for the same line, each handled to
	// completion before the next arrives. The repo's internal mutex
	// still guards every individual Get/ListItems/UpsertItem call the
	// way concurrent requests against the real connection pool would.
	for i := 0; i < 5; i++ {
		_, err := svc.AddItem(context.Background(), "cart-1", "prod-1", "v1", "", 1)
		require.NoError(t, err)
	}

	items, err := repo.ListItems(context.Background(), "cart-1")
	require.NoError(t, err)
	require.Len(t, items, 1, "five adds of the same line must coalesce into exactly one row")
	assert.Equal(t, 5, items[0].Quantity)
}

// TestCartService_AddItem_DistinctVariantsProduceSeparateLines is the
// negative case: different variantIds never coalesce.
func TestCartService_AddItem_DistinctVariantsProduceSeparateLines(t *testing.T) {
	repo := &fakeCartRepoForAddItem{cart: domain.Cart{ID: "cart-2", Status: domain.CartActive}}
	pricing := &fakePricingForCart{quote: provider.PriceQuote{UnitPrice: 10000, UnitMRP: 10000, Available: true}}
	svc := newTestCartService(repo, pricing)

	_, err := svc.AddItem(context.Background(), "cart-2", "prod-1", "v1", "", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), "cart-2", "prod-2", "v2", "", 1)
	require.NoError(t, err)

	items, err := repo.ListItems(context.Background(), "cart-2")
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

// TestCartService_AddItem_RejectsCartNotActive verifies AddItem refuses
// to mutate a cart that has already converted or expired.
func TestCartService_AddItem_RejectsCartNotActive(t *testing.T) {
	repo := &fakeCartRepoForAddItem{cart: domain.Cart{ID: "cart-3", Status: domain.CartConverted}}
	pricing := &fakePricingForCart{}
	svc := newTestCartService(repo, pricing)

	_, err := svc.AddItem(context.Background(), "cart-3", "prod-1", "v1", "", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCartNotActive)
}
