package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/repository"
)

type fakeOrderRepoForCancel struct {
	repository.OrderRepository
	order   *domain.Order
	items   []domain.OrderItem
	updated *domain.Order
}

func (f *fakeOrderRepoForCancel) Get(ctx context.Context, id string) (*domain.Order, error) {
	cp := *f.order
	return &cp, nil
}

func (f *fakeOrderRepoForCancel) Update(ctx context.Context, o *domain.Order) error {
	f.updated = o
	f.order = o
	return nil
}

func (f *fakeOrderRepoForCancel) ListItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	return f.items, nil
}

func (f *fakeOrderRepoForCancel) AppendHistory(ctx context.Context, h *domain.StatusHistory) error {
	return nil
}

type fakeInventoryForCancel struct {
	provider.Inventory
	released []string
}

func (f *fakeInventoryForCancel) Release(ctx context.Context, reservationToken string) error {
	f.released = append(f.released, reservationToken)
	return nil
}

// TestOrderService_Cancel_UnpaidReleasesWithoutRefund verifies that
// cancelling an order before payment capture releases the held
// inventory reservation but never attempts a refund (there's nothing to
// refund yet).
func TestOrderService_Cancel_UnpaidReleasesWithoutRefund(t *testing.T) {
	orderRepo := &fakeOrderRepoForCancel{
		order: &domain.Order{
			ID: "order-1", Status: domain.OrderPending,
			PaymentStatus: domain.PaymentInitiated, ReservationToken: "resv-1",
		},
	}
	inv := &fakeInventoryForCancel{}
	svc := NewOrderService(orderRepo, inv, nil, newTestBreakers(), nil, zerolog.Nop())
	// s.refunds intentionally left nil: an unpaid cancel must never reach it.

	order, err := svc.Cancel(context.Background(), "order-1", domain.CancelCustomerRequest, domain.ActorCustomer, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, order.Status)
	assert.Equal(t, domain.PaymentCancelled, order.PaymentStatus)
	assert.Equal(t, []string{"resv-1"}, inv.released)
}

// TestOrderService_Cancel_PaidOrderAttemptsRefundWithoutPanicking
// verifies that cancelling an already-captured order still releases
// inventory and safely no-ops (rather than panicking) when no refund
// service has been wired, per refundOnCancel's nil guard. Once a refund
// service is wired in production (cmd/server/main.go), this same path
// opens a full refund across every remaining-refundable line.
func TestOrderService_Cancel_PaidOrderAttemptsRefundWithoutPanicking(t *testing.T) {
	orderRepo := &fakeOrderRepoForCancel{
		order: &domain.Order{
			ID: "order-2", Status: domain.OrderConfirmed,
			PaymentStatus: domain.PaymentCaptured, ReservationToken: "resv-2",
		},
		items: []domain.OrderItem{
			{ID: "item-1", OrderID: "order-2", Quantity: 2, UnitPrice: money.FromRupees(100), LineTotal: money.FromRupees(200)},
		},
	}
	inv := &fakeInventoryForCancel{}
	svc := NewOrderService(orderRepo, inv, nil, newTestBreakers(), nil, zerolog.Nop())

	order, err := svc.Cancel(context.Background(), "order-2", domain.CancelCustomerRequest, domain.ActorCustomer, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderCancelled, order.Status)
	assert.Equal(t, []string{"resv-2"}, inv.released, "inventory must be released even when no refund service is wired")
}

// TestOrderService_Cancel_InvalidTransitionRejected verifies the state
// machine still blocks a customer from cancelling a shipped order.
func TestOrderService_Cancel_InvalidTransitionRejected(t *testing.T) {
	orderRepo := &fakeOrderRepoForCancel{
		order: &domain.Order{ID: "order-3", Status: domain.OrderShipped, PaymentStatus: domain.PaymentCaptured},
	}
	inv := &fakeInventoryForCancel{}
	svc := NewOrderService(orderRepo, inv, nil, newTestBreakers(), nil, zerolog.Nop())

	_, err := svc.Cancel(context.Background(), "order-3", domain.CancelCustomerRequest, domain.ActorCustomer, "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Empty(t, inv.released, "a rejected cancel must never release inventory")
}
