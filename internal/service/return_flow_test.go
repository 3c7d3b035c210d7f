package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/repository"
)

type fakeReturnRepo struct {
	repository.ReturnRepository
	rt      *domain.Return
	updates []domain.ReturnStatus
}

func (f *fakeReturnRepo) Get(ctx context.Context, id string) (*domain.Return, error) {
	return f.rt, nil
}

func (f *fakeReturnRepo) Update(ctx context.Context, rt *domain.Return) error {
	f.rt = rt
	f.updates = append(f.updates, rt.Status)
	return nil
}

// TestReturnService_WithinReturnWindow_BoundaryIsInclusive verifies §8's
// return-window boundary: a delivery exactly WindowDays ago is still
// eligible up to 23:59:59 IST on the deadline date, and ineligible one
// second past it.
func TestReturnService_WithinReturnWindow_BoundaryIsInclusive(t *testing.T) {
	svc := &ReturnService{WindowDays: 30}

	deliveredAt := time.Date(2026, 1, 1, 10, 0, 0, 0, istLocation)
	deadline := time.Date(2026, 1, 31, 23, 59, 59, 0, istLocation)

	assert.True(t, svc.withinReturnWindow(deliveredAt, deadline), "exactly on the deadline second must still be eligible")
	assert.False(t, svc.withinReturnWindow(deliveredAt, deadline.Add(time.Second)), "one second past the deadline must be ineligible")
	assert.True(t, svc.withinReturnWindow(deliveredAt, deadline.Add(-24*time.Hour)), "well within the window must be eligible")
}

// TestReturnService_Inspect_RejectLandsOnInspectedBeforeCancelled
// verifies a rejected inspection verdict advances ReturnReceived ->
// ReturnInspected -> ReturnCancelled rather than attempting an illegal
// direct ReturnReceived -> ReturnRejected/ReturnCancelled edge.
func TestReturnService_Inspect_RejectLandsOnInspectedBeforeCancelled(t *testing.T) {
	returnRepo := &fakeReturnRepo{rt: &domain.Return{
		ID: "ret-1", OrderID: "order-1", Status: domain.ReturnReceived,
	}}

	svc := &ReturnService{returns: returnRepo, log: zerolog.Nop()}

	rt, err := svc.Inspect(context.Background(), "ret-1", domain.InspectionRejectedDamaged, "box was crushed", nil, domain.RefundToSource)
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnCancelled, rt.Status)
	assert.Equal(t, []domain.ReturnStatus{domain.ReturnInspected, domain.ReturnCancelled}, returnRepo.updates,
		"a rejected return must be persisted through ReturnInspected before reaching ReturnCancelled")
}

// TestReturnService_Inspect_AlreadyInspectedRejectsReplay verifies
// Inspect refuses to run twice against a return that has already left
// ReturnReceived.
func TestReturnService_Inspect_AlreadyInspectedRejectsReplay(t *testing.T) {
	returnRepo := &fakeReturnRepo{rt: &domain.Return{
		ID: "ret-2", OrderID: "order-2", Status: domain.ReturnCancelled,
	}}
	svc := &ReturnService{returns: returnRepo, log: zerolog.Nop()}

	_, err := svc.Inspect(context.Background(), "ret-2", domain.InspectionRejectedDamaged, "retry", nil, domain.RefundToSource)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReturnInvalidState)
}
