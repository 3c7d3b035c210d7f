package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/freyja/internal/service"
)

// PaymentStaleWindow is how long a payment may sit uncaptured before the
// reconciliation sweep gives up on gateway confirmation (§6).
const PaymentStaleWindow = 30 * time.Minute

// ReconcilePaymentsJob fails and cancels orders whose payment never
// confirmed within the stale window.
func ReconcilePaymentsJob(payments *service.PaymentService, interval time.Duration) Job {
	return Job{
		Name:     "payment.reconcile",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := payments.ReconcileStale(ctx, PaymentStaleWindow)
			return err
		},
	}
}
