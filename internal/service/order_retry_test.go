package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/repository"
)

// fakeOrderRepoWithConflicts simulates a CAS miss on Update for the
// first N calls, as a concurrent writer would by returning
// ErrConcurrentUpdate from the version-guarded UPDATE statement.
type fakeOrderRepoWithConflicts struct {
	repository.OrderRepository
	order       *domain.Order
	conflicts   int
	getCalls    int
	updateCalls int
}

func (f *fakeOrderRepoWithConflicts) Get(ctx context.Context, id string) (*domain.Order, error) {
	f.getCalls++
	cp := *f.order
	return &cp, nil
}

func (f *fakeOrderRepoWithConflicts) Update(ctx context.Context, o *domain.Order) error {
	f.updateCalls++
	if f.updateCalls <= f.conflicts {
		return domain.ErrConcurrentUpdate
	}
	f.order = o
	return nil
}

func (f *fakeOrderRepoWithConflicts) AppendHistory(ctx context.Context, h *domain.StatusHistory) error {
	return nil
}

// TestOrderService_Transition_RetriesOnConcurrentUpdate verifies §4.4's
// CAS retry: a transition that loses the optimistic-concurrency race
// re-reads and reapplies against the fresh version rather than failing
// the caller, as long as it succeeds within maxCASRetries attempts.
func TestOrderService_Transition_RetriesOnConcurrentUpdate(t *testing.T) {
	orderRepo := &fakeOrderRepoWithConflicts{
		order:     &domain.Order{ID: "order-1", Status: domain.OrderPending, Version: 1},
		conflicts: 2,
	}
	svc := NewOrderService(orderRepo, &fakeInventoryForCancel{}, nil, newTestBreakers(), nil, zerolog.Nop())

	order, err := svc.Transition(context.Background(), "order-1", domain.OrderConfirmed, domain.ActorSystem, "")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderConfirmed, order.Status)
	assert.Equal(t, 3, orderRepo.updateCalls, "two conflicts plus the final successful write")
	assert.Equal(t, 3, orderRepo.getCalls, "each retry re-reads the current row before reapplying")
}

// TestOrderService_Transition_GivesUpAfterMaxRetries verifies the retry
// loop is bounded: if every attempt loses the CAS race, Transition
// surfaces ErrConcurrentUpdate instead of retrying forever.
func TestOrderService_Transition_GivesUpAfterMaxRetries(t *testing.T) {
	orderRepo := &fakeOrderRepoWithConflicts{
		order:     &domain.Order{ID: "order-2", Status: domain.OrderPending, Version: 1},
		conflicts: maxCASRetries,
	}
	svc := NewOrderService(orderRepo, &fakeInventoryForCancel{}, nil, newTestBreakers(), nil, zerolog.Nop())

	_, err := svc.Transition(context.Background(), "order-2", domain.OrderConfirmed, domain.ActorSystem, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConcurrentUpdate)
	assert.Equal(t, maxCASRetries, orderRepo.updateCalls)
}
