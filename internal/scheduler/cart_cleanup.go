package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/freyja/internal/provider"
	"github.com/dukerupert/freyja/internal/service"
)

// CartAbandonWindow is how long an active, untouched cart sits before
// the sweep marks it abandoned (§6 default).
const CartAbandonWindow = 24 * time.Hour

// CartReminderWindow is how long an active, non-empty cart sits before
// it becomes a reminder candidate.
const CartReminderWindow = 6 * time.Hour

// CartPurgeWindow is how long a cart stays abandoned before it is
// hard-deleted.
const CartPurgeWindow = 30 * 24 * time.Hour

// MarkAbandonedJob flips stale active carts to abandoned.
func MarkAbandonedJob(carts *service.CartService, interval time.Duration) Job {
	return Job{
		Name:     "cart.mark_abandoned",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := carts.MarkStaleAbandoned(ctx, time.Now().Add(-CartAbandonWindow))
			return err
		},
	}
}

// RemindAbandonedJob sends the abandoned-cart nudge to carts that have
// gone quiet but aren't stale enough to drop yet.
func RemindAbandonedJob(carts *service.CartService, notify provider.Notification, interval time.Duration) Job {
	return Job{
		Name:     "cart.remind_abandoned",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := carts.NotifyAbandonedCandidates(ctx, time.Now().Add(-CartReminderWindow), notify)
			return err
		},
	}
}

// PurgeAbandonedJob hard-deletes carts that have sat abandoned past the
// retention window.
func PurgeAbandonedJob(carts *service.CartService, interval time.Duration) Job {
	return Job{
		Name:     "cart.purge_abandoned",
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := carts.PurgeAbandoned(ctx, time.Now().Add(-CartPurgeWindow))
			return err
		},
	}
}
