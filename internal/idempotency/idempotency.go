// Package idempotency caches the outcome of client-supplied idempotency
// keys (checkout initiation, payment webhook delivery, refund requests)
// so a retried request replays the original result instead of re-running
// the side-effecting operation a second time.
package idempotency

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Result is whatever a cached operation produced; callers type-assert the
// stored value back to their own response shape.
type Result struct {
	StatusCode int
	Body       any
}

// Store is a process-local, TTL-expiring cache of idempotency keys to
// their recorded result. It does not replace durable dedup at the
// database layer (e.g. the unique index on payments.gateway_payment_id)
// — it exists to short-circuit a retry before it reaches the database at
// all, which matters most for the checkout-initiation and webhook paths
// where a client or gateway may resend within seconds.
type Store struct {
	cache *lru.LRU[string, Result]
	mu    sync.Mutex
}

// DefaultSize bounds memory use; keys are short-lived so the TTL does
// most of the eviction work in practice.
const DefaultSize = 10_000

// DefaultTTL matches the window a client is expected to retry within.
const DefaultTTL = 24 * time.Hour

// NewStore builds a Store with the given capacity and TTL.
func NewStore(size int, ttl time.Duration) *Store {
	return &Store{cache: lru.NewLRU[string, Result](size, nil, ttl)}
}

// Lookup returns the cached result for key, if any.
func (s *Store) Lookup(key string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Get(key)
}

// Record stores result under key, to be replayed on a subsequent retry.
func (s *Store) Record(key string, result Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key, result)
}

// Reserve atomically checks for an existing result and, if absent, marks
// key as in-flight by recording a zero-value Result with StatusCode 0 —
// a caller getting inFlight with StatusCode 0 back from Reserve knows a
// concurrent request is still processing the same key and should reject
// with a conflict rather than proceed. The caller overwrites the
// placeholder via Record once the operation completes.
func (s *Store) Reserve(key string) (existing Result, inFlight bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get(key); ok {
		return v, true
	}
	s.cache.Add(key, Result{})
	return Result{}, false
}
