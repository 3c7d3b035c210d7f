package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/repository"
)

type fakeOrderRepoForRefund struct {
	repository.OrderRepository
	order *domain.Order
}

func (f *fakeOrderRepoForRefund) Get(ctx context.Context, id string) (*domain.Order, error) {
	return f.order, nil
}

type fakeRefundRepo struct {
	repository.RefundRepository
	refund *domain.Refund
}

func (f *fakeRefundRepo) Get(ctx context.Context, id string) (*domain.Refund, error) {
	return f.refund, nil
}

func (f *fakeRefundRepo) Update(ctx context.Context, r *domain.Refund) error {
	f.refund = r
	return nil
}

type fakeStoreCreditRepo struct {
	repository.StoreCreditRepository
	entries []domain.StoreCreditEntry
}

func (f *fakeStoreCreditRepo) Create(ctx context.Context, e *domain.StoreCreditEntry) error {
	f.entries = append(f.entries, *e)
	return nil
}

func TestRefundService_Process_StoreCredit_WritesLedgerAndCompletes(t *testing.T) {
	order := &domain.Order{ID: "order-1", UserID: "user-1"}
	refund := &domain.Refund{
		ID: "refund-1", OrderID: order.ID, Amount: money.FromRupees(250), ApprovedAmount: money.FromRupees(250), Reason: "damaged on arrival",
		Method: domain.RefundStoreCredit, Status: domain.RefundApproved,
	}

	refundRepo := &fakeRefundRepo{refund: refund}
	storeCredits := &fakeStoreCreditRepo{}

	svc := &RefundService{
		refunds:      refundRepo,
		storeCredits: storeCredits,
		orders:       &OrderService{orders: &fakeOrderRepoForRefund{order: order}},
		log:          zerolog.Nop(),
	}

	got, err := svc.Process(context.Background(), refund.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.RefundCompleted, got.Status)
	assert.False(t, got.ProcessedAt.IsZero())

	require.Len(t, storeCredits.entries, 1)
	assert.Equal(t, order.UserID, storeCredits.entries[0].UserID)
	assert.Equal(t, refund.ID, storeCredits.entries[0].RefundID)
	assert.Equal(t, refund.ApprovedAmount, storeCredits.entries[0].Amount)
}

func TestRefundService_Process_BankTransfer_StaysProcessing(t *testing.T) {
	order := &domain.Order{ID: "order-2", UserID: "user-2"}
	refund := &domain.Refund{
		ID: "refund-2", OrderID: order.ID, Amount: money.FromRupees(100),
		Method: domain.RefundBankTransfer, Status: domain.RefundApproved,
	}

	refundRepo := &fakeRefundRepo{refund: refund}

	svc := &RefundService{
		refunds: refundRepo,
		orders:  &OrderService{orders: &fakeOrderRepoForRefund{order: order}},
		log:     zerolog.Nop(),
	}

	got, err := svc.Process(context.Background(), refund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundProcessing, got.Status)
}
