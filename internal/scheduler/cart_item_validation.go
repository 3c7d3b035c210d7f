package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/freyja/internal/service"
)

// CartValidationInterval is how often the sweep re-runs §4.1's
// revalidation pass over every active cart (§6 default).
const CartValidationInterval = 6 * time.Hour

// CartItemValidationJob re-prices and re-checks availability for every
// active cart's lines, stamping productStatus.lastCheckedAt so stale
// price/availability data never sits unrefreshed past the interval.
func CartItemValidationJob(carts *service.CartService, interval time.Duration) Job {
	return Job{
		Name:     "cart.item_validation",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := carts.RevalidateActiveCarts(ctx)
			return err
		},
	}
}
