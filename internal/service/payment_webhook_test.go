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

type fakePaymentRepo struct {
	repository.PaymentRepository
	payment *domain.Payment
	updates int
}

func (f *fakePaymentRepo) GetByGatewayPaymentID(ctx context.Context, gateway, gatewayPaymentID string) (*domain.Payment, error) {
	return f.payment, nil
}

func (f *fakePaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	f.updates++
	f.payment = p
	return nil
}

type fakeGatewayForWebhook struct {
	provider.Gateway
	event *provider.WebhookEvent
}

func (f *fakeGatewayForWebhook) VerifyWebhookSignature(payload []byte, signatureHeader string) (*provider.WebhookEvent, error) {
	return f.event, nil
}

type fakeCheckoutRepoForPayment struct {
	repository.CheckoutSessionRepository
	session *domain.CheckoutSession
}

func (f *fakeCheckoutRepoForPayment) Get(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	return f.session, nil
}

func (f *fakeCheckoutRepoForPayment) Update(ctx context.Context, s *domain.CheckoutSession) error {
	f.session = s
	return nil
}

// TestPaymentService_IngestWebhook_ReplayIsNoop verifies §4.5's
// at-least-once webhook idempotence: redelivering an event for a
// payment that has already settled into a terminal status must not
// re-apply the capture (no second order mutation, no second checkout
// completion).
func TestPaymentService_IngestWebhook_ReplayIsNoop(t *testing.T) {
	payment := &domain.Payment{
		ID: "pay-1", OrderID: "order-1", CheckoutID: "checkout-1",
		GatewayPaymentID: "pi_123", Amount: money.FromRupees(500),
		Status: domain.PaymentCaptured, GatewayStatus: domain.GatewayCaptured,
	}
	paymentRepo := &fakePaymentRepo{payment: payment}
	gateway := &fakeGatewayForWebhook{event: &provider.WebhookEvent{
		Type: "payment_intent.succeeded", GatewayPaymentID: "pi_123", AmountReceived: money.FromRupees(500),
	}}
	checkoutRepo := &fakeCheckoutRepoForPayment{session: &domain.CheckoutSession{ID: "checkout-1", Status: domain.CheckoutCompleted}}
	orderRepo := &fakeOrderRepoForCancel{order: &domain.Order{ID: "order-1", Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentCaptured}}

	svc := &PaymentService{
		payments:  paymentRepo,
		checkouts: checkoutRepo,
		orders:    NewOrderService(orderRepo, &fakeInventoryForCancel{}, nil, newTestBreakers(), nil, zerolog.Nop()),
		gateway:   gateway,
		breakers:  newTestBreakers(),
		log:       zerolog.Nop(),
	}

	err := svc.IngestWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Zero(t, paymentRepo.updates, "a replayed event against an already-terminal payment must not update it again")
}

// TestPaymentService_IngestWebhook_CapturesAndCompletesCheckout verifies
// the first delivery of a capture event advances the payment, the
// order's payment status, and the checkout session in one pass.
func TestPaymentService_IngestWebhook_CapturesAndCompletesCheckout(t *testing.T) {
	payment := &domain.Payment{
		ID: "pay-2", OrderID: "order-2", CheckoutID: "checkout-2",
		GatewayPaymentID: "pi_456", Amount: money.FromRupees(500),
		Status: domain.PaymentInitiated, GatewayStatus: domain.GatewayCreated,
	}
	paymentRepo := &fakePaymentRepo{payment: payment}
	gateway := &fakeGatewayForWebhook{event: &provider.WebhookEvent{
		Type: "payment_intent.succeeded", GatewayPaymentID: "pi_456", AmountReceived: money.FromRupees(500),
	}}
	checkoutRepo := &fakeCheckoutRepoForPayment{session: &domain.CheckoutSession{ID: "checkout-2", Status: domain.CheckoutPaymentPending}}
	orderRepo := &fakeOrderRepoForCancel{order: &domain.Order{ID: "order-2", Status: domain.OrderPending, PaymentStatus: domain.PaymentInitiated}}

	svc := &PaymentService{
		payments:  paymentRepo,
		checkouts: checkoutRepo,
		orders:    NewOrderService(orderRepo, &fakeInventoryForCancel{}, nil, newTestBreakers(), nil, zerolog.Nop()),
		gateway:   gateway,
		breakers:  newTestBreakers(),
		log:       zerolog.Nop(),
	}

	err := svc.IngestWebhook(context.Background(), []byte(`{}`), "sig")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCaptured, paymentRepo.payment.Status)
	assert.Equal(t, domain.PaymentCaptured, orderRepo.order.PaymentStatus)
	assert.Equal(t, domain.CheckoutCompleted, checkoutRepo.session.Status)
}
