// Package breaker wraps the order lifecycle core's outbound collaborator
// calls (pricing, catalog, inventory, shipping, notification, the payment
// gateway) in per-collaborator circuit breakers, so a degraded downstream
// service fails fast instead of piling up blocked goroutines against it.
package breaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// Collaborator identifies one outbound dependency for breaker isolation.
// Each gets its own breaker so a pricing-service outage can't trip the
// notification breaker too.
type Collaborator string

const (
	Pricing      Collaborator = "pricing"
	Catalog      Collaborator = "catalog"
	Inventory    Collaborator = "inventory"
	Shipping     Collaborator = "shipping"
	Notification Collaborator = "notification"
	Gateway      Collaborator = "gateway"
)

// Config tunes the trip/reset behavior for one collaborator.
type Config struct {
	MaxRequestsHalfOpen uint32
	Interval            time.Duration
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
}

// DefaultConfig trips after 5 consecutive failures, stays open 30s, and
// lets one probe request through in the half-open state.
func DefaultConfig() Config {
	return Config{
		MaxRequestsHalfOpen: 1,
		Interval:            60 * time.Second,
		OpenTimeout:         30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Manager owns one gobreaker.CircuitBreaker per Collaborator.
type Manager struct {
	breakers map[Collaborator]*gobreaker.CircuitBreaker
}

// NewManager builds breakers for the given collaborators, all sharing cfg.
// Callers that need per-collaborator tuning construct the map directly.
func NewManager(cfg Config, collaborators ...Collaborator) *Manager {
	m := &Manager{breakers: make(map[Collaborator]*gobreaker.CircuitBreaker, len(collaborators))}
	for _, c := range collaborators {
		m.breakers[c] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        string(c),
			MaxRequests: cfg.MaxRequestsHalfOpen,
			Interval:    cfg.Interval,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
			},
		})
	}
	return m
}

// Do runs fn through c's breaker. When the breaker is open, fn is never
// invoked and gobreaker.ErrOpenState is returned; callers map that to
// domain.Unavailable so it surfaces as a 503, never a 500. Collaborators
// with no registered breaker pass through unguarded.
func (m *Manager) Do(c Collaborator, fn func() error) error {
	cb, ok := m.breakers[c]
	if !ok {
		return fn()
	}
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// State reports a collaborator's breaker state for health/metrics
// endpoints. Returns gobreaker.StateClosed for an unregistered collaborator.
func (m *Manager) State(c Collaborator) gobreaker.State {
	cb, ok := m.breakers[c]
	if !ok {
		return gobreaker.StateClosed
	}
	return cb.State()
}
