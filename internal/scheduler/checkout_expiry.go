package scheduler

import (
	"context"
	"time"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/service"
)

// ExpireCheckoutsJob sweeps sessions still sitting in a non-terminal
// status past their ExpiresAt and releases their inventory holds (§4.3).
func ExpireCheckoutsJob(checkouts repository.CheckoutSessionRepository, svc *service.CheckoutService, interval time.Duration) Job {
	statuses := []domain.CheckoutStatus{domain.CheckoutInitiated, domain.CheckoutAddressEntered, domain.CheckoutPaymentPending}

	return Job{
		Name:     "checkout.expire",
		Interval: interval,
		Run: func(ctx context.Context) error {
			for _, status := range statuses {
				sessions, err := checkouts.ListExpiring(ctx, status)
				if err != nil {
					return err
				}
				for i := range sessions {
					if err := svc.Expire(ctx, &sessions[i]); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}
