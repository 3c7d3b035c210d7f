package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/freyja/internal/service"
)

// OrderAutoConfirmCutoffHours is how long a pending order with a
// captured/paid payment waits before the sweep auto-advances it to
// confirmed (§6).
const OrderAutoConfirmCutoffHours = 6

// AutoConfirmOrdersJob advances stale paid pending orders into confirmed.
func AutoConfirmOrdersJob(orders *service.OrderService, interval time.Duration) Job {
	return Job{
		Name:     "order.auto_confirm",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := orders.AutoConfirmStale(ctx, OrderAutoConfirmCutoffHours)
			return err
		},
	}
}
