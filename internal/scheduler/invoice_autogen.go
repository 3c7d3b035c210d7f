package scheduler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dukerupert/freyja/internal/events"
	"github.com/dukerupert/freyja/internal/service"
)

// subscriber is the slice of events.NATSPublisher this worker needs —
// kept narrow so it can be faked in tests without a live broker.
type subscriber interface {
	Subscribe(ctx context.Context, eventType string, handler events.Handler) error
}

// SubscribeAutoInvoice registers a durable consumer on order.delivered
// and generates the order's invoice as each delivery event lands,
// rather than polling for eligible orders (§4.6).
func SubscribeAutoInvoice(ctx context.Context, sub subscriber, invoices *service.InvoiceService, log zerolog.Logger) error {
	return sub.Subscribe(ctx, events.EventOrderDelivered, func(ctx context.Context, e events.Event) error {
		orderID := strings.TrimPrefix(e.AggregateID, "order:")
		if orderID == "" {
			return fmt.Errorf("scheduler.SubscribeAutoInvoice: event %s has no order aggregate ID", e.ID)
		}
		if _, err := invoices.Generate(ctx, orderID); err != nil {
			log.Error().Err(err).Str("order_id", orderID).Msg("failed to auto-generate invoice on delivery")
			return err
		}
		return nil
	})
}
