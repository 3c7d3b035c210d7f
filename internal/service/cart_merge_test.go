package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/repository"
)

// fakeCartRepoForMerge models just enough of CartRepository to exercise
// MergeGuestIntoUser: two named carts, their item sets, and a MergeItems
// that applies every upsert and removes the guest cart in one step,
// mirroring the transactional repository method it stands in for.
type fakeCartRepoForMerge struct {
	repository.CartRepository
	guestCart  *domain.Cart
	userCart   *domain.Cart
	items      map[string][]domain.CartItem
	mergeCalls int
}

func (f *fakeCartRepoForMerge) GetActiveBySession(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if f.guestCart == nil {
		return nil, domain.NotFound("cart.GetActiveBySession", "cart", sessionID)
	}
	return f.guestCart, nil
}

func (f *fakeCartRepoForMerge) GetActiveByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	if f.userCart == nil {
		return nil, domain.NotFound("cart.GetActiveByUser", "cart", userID)
	}
	return f.userCart, nil
}

func (f *fakeCartRepoForMerge) ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	return f.items[cartID], nil
}

func (f *fakeCartRepoForMerge) MergeItems(ctx context.Context, upserts []domain.CartItem, guestCartID string) error {
	f.mergeCalls++
	for _, item := range upserts {
		replaced := false
		lines := f.items[item.CartID]
		for i := range lines {
			if lines[i].Key() == item.Key() {
				lines[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			lines = append(lines, item)
		}
		f.items[item.CartID] = lines
	}
	delete(f.items, guestCartID)
	f.guestCart = nil
	return nil
}

func (f *fakeCartRepoForMerge) Update(ctx context.Context, c *domain.Cart) error {
	f.userCart = c
	return nil
}

// TestCartService_MergeGuestIntoUser_CombinesQuantityAndKeepsFresherPrice
// matches §8 example 2: guest cart {V1 qty 1 @ 300, captured T1}, user
// cart {V1 qty 2 @ 280, captured T0 < T1}. The merge produces one line
// at qty 3 using the guest line's fresher price snapshot, and the guest
// cart is removed.
func TestCartService_MergeGuestIntoUser_CombinesQuantityAndKeepsFresherPrice(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	userItem := domain.CartItem{ID: "item-user", CartID: "user-cart", VariantID: "v1", Quantity: 2, UnitPrice: money.FromRupees(280), PriceSnapshot: domain.PriceSnapshot{UnitPrice: money.FromRupees(280), CapturedAt: t0}}
	userItem.RecomputeLineTotal()
	guestItem := domain.CartItem{ID: "item-guest", CartID: "guest-cart", VariantID: "v1", Quantity: 1, UnitPrice: money.FromRupees(300), PriceSnapshot: domain.PriceSnapshot{UnitPrice: money.FromRupees(300), CapturedAt: t1}}
	guestItem.RecomputeLineTotal()

	repo := &fakeCartRepoForMerge{
		guestCart: &domain.Cart{ID: "guest-cart", SessionID: "sess-1", Status: domain.CartActive},
		userCart:  &domain.Cart{ID: "user-cart", UserID: "user-1", Status: domain.CartActive},
		items: map[string][]domain.CartItem{
			"user-cart":  {userItem},
			"guest-cart": {guestItem},
		},
	}
	svc := newTestCartService(repo, &fakePricingForCart{})

	merged, err := svc.MergeGuestIntoUser(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, merged)

	lines := repo.items["user-cart"]
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, money.FromRupees(300), lines[0].UnitPrice)
	assert.Equal(t, money.FromRupees(900), lines[0].LineTotal)
	assert.Nil(t, repo.guestCart, "guest cart must be removed after a successful merge")

	// A second merge call for the same (guest, user) pair is a no-op:
	// the guest cart is already gone, so there is nothing left to fold in.
	again, err := svc.MergeGuestIntoUser(context.Background(), "sess-1", "user-1")
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Equal(t, 1, repo.mergeCalls, "the idempotent replay must not invoke MergeItems again")
}
