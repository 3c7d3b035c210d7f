package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher ships events to a NATS JetStream cluster, one durable
// stream per aggregate family so retention policy can differ (order
// events are kept a year for audit purposes, cart events thirty days).
type NATSPublisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	log    zerolog.Logger
	prefix string // NATS_NAMESPACE, prepended to every subject
}

// NewNATSPublisher connects to natsURL and provisions the JetStream
// streams used by the order lifecycle core. namespace isolates subjects
// when multiple environments share a NATS cluster.
func NewNATSPublisher(natsURL, namespace string, log zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("events: jetstream context: %w", err)
	}

	p := &NATSPublisher{nc: nc, js: js, log: log, prefix: namespace}
	if err := p.ensureStreams(); err != nil {
		nc.Close()
		return nil, err
	}
	return p, nil
}

func (p *NATSPublisher) subject(eventType string) string {
	if p.prefix == "" {
		return eventType
	}
	return p.prefix + "." + eventType
}

type streamDef struct {
	name     string
	subjects []string
	maxAge   time.Duration
}

func (p *NATSPublisher) ensureStreams() error {
	streams := []streamDef{
		{name: "ORDERS", subjects: p.subjects("order.*", "payment.*", "checkout.*", "refund.*", "return.*", "invoice.*"), maxAge: 365 * 24 * time.Hour},
		{name: "CARTS", subjects: p.subjects("cart.*"), maxAge: 30 * 24 * time.Hour},
	}

	for _, s := range streams {
		cfg := &nats.StreamConfig{
			Name:     s.name,
			Subjects: s.subjects,
			MaxAge:   s.maxAge,
			Storage:  nats.FileStorage,
			Replicas: 1,
		}
		if _, err := p.js.StreamInfo(s.name); err != nil {
			if _, err := p.js.AddStream(cfg); err != nil {
				return fmt.Errorf("events: create stream %s: %w", s.name, err)
			}
			p.log.Info().Str("stream", s.name).Msg("created nats stream")
			continue
		}
		if _, err := p.js.UpdateStream(cfg); err != nil {
			p.log.Warn().Err(err).Str("stream", s.name).Msg("failed to update nats stream config")
		}
	}
	return nil
}

func (p *NATSPublisher) subjects(subjects ...string) []string {
	out := make([]string, len(subjects))
	for i, s := range subjects {
		out[i] = p.subject(s)
	}
	return out
}

// Publish ships a single event, deduplicated by event ID within
// JetStream's dedup window.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := Validate(event); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("events: marshal event %s: %w", event.ID, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	ack, err := p.js.PublishAsync(p.subject(event.Type), payload, nats.MsgId(event.ID))
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", event.ID, err)
	}

	select {
	case <-ack.Ok():
		return nil
	case err := <-ack.Err():
		return fmt.Errorf("events: publish %s not acked: %w", event.ID, err)
	case <-publishCtx.Done():
		return fmt.Errorf("events: publish %s timed out: %w", event.ID, publishCtx.Err())
	}
}

// PublishBatch ships events sequentially, stopping at the first failure.
func (p *NATSPublisher) PublishBatch(ctx context.Context, evts []Event) error {
	for _, e := range evts {
		if err := p.Publish(ctx, e); err != nil {
			return fmt.Errorf("events: batch publish: %w", err)
		}
	}
	return nil
}

// Subscribe registers a durable consumer for eventType, invoking handler
// for each delivery. The subscription is torn down when ctx is cancelled.
func (p *NATSPublisher) Subscribe(ctx context.Context, eventType string, handler Handler) error {
	consumerName := sanitizeConsumerName(eventType)

	sub, err := p.js.Subscribe(p.subject(eventType), func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			p.log.Error().Err(err).Msg("events: failed to unmarshal message")
			msg.Nak()
			return
		}
		if err := handler(ctx, event); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID).Msg("events: handler failed, will redeliver")
			msg.Nak()
			return
		}
		msg.Ack()
	}, nats.Durable(consumerName), nats.ManualAck())
	if err != nil {
		return fmt.Errorf("events: subscribe to %s: %w", eventType, err)
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

// Close closes the underlying NATS connection.
func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

func sanitizeConsumerName(eventType string) string {
	name := strings.ReplaceAll(eventType, ".", "_")
	return strings.ReplaceAll(name, "-", "_")
}
