// Package ratelimit implements fixed-window request admission per client
// identity. The window is approximate: bursts straddling a window boundary
// may momentarily pass up to twice the nominal rate, which is accepted.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mardaloop/bakery-backend/pkg/logger"
)

// ErrRateLimited indicates the identity exhausted its window allowance.
var ErrRateLimited = errors.New("rate limit exceeded")

const (
	// DefaultLimit is the number of requests admitted per window.
	DefaultLimit = 30
	// DefaultWindow is the fixed window length.
	DefaultWindow = 60 * time.Second
)

// CounterStore records request hits per client identity. Hit returns the
// number of requests observed in the identity's current window, including
// the one being recorded. Implementations must be safe for concurrent use
// and atomic per identity.
type CounterStore interface {
	Hit(ctx context.Context, identity string) (int, error)
}

// Gate admits or rejects requests against a counter store.
type Gate struct {
	store CounterStore
	limit int
	log   *logger.Logger

	storeErrors atomic.Uint64
}

// NewGate creates a gate allowing limit requests per window on the given
// store. A non-positive limit falls back to DefaultLimit; a nil logger gets
// a default.
func NewGate(store CounterStore, limit int, log *logger.Logger) *Gate {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = logger.NewDefault("ratelimit")
	}
	return &Gate{store: store, limit: limit, log: log}
}

// Allow records a hit for identity and returns ErrRateLimited once the
// window allowance is exhausted. Store failures admit the request; dropping
// traffic because the counter backend is down would turn an availability
// problem into an outage. Each failure is logged and counted so the
// degradation is visible.
func (g *Gate) Allow(ctx context.Context, identity string) error {
	n, err := g.store.Hit(ctx, identity)
	if err != nil {
		g.storeErrors.Add(1)
		g.log.WithContext(ctx).WithError(err).Warn("counter store failed, admitting request")
		return nil
	}
	if n > g.limit {
		return ErrRateLimited
	}
	return nil
}

// StoreErrors reports how many times the counter store failed and the gate
// admitted without counting.
func (g *Gate) StoreErrors() uint64 {
	return g.storeErrors.Load()
}

type windowCounter struct {
	count int
	reset time.Time
}

// MemoryStore is the in-process CounterStore. Counters are evicted lazily
// during hits once their window has been over for a full window length; no
// background timer runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowCounter
	window  time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store. now may be nil,
// defaulting to time.Now.
func NewMemoryStore(window time.Duration, now func() time.Time) *MemoryStore {
	if window <= 0 {
		window = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries: make(map[string]*windowCounter),
		window:  window,
		now:     now,
	}
}

// Hit implements CounterStore.
func (s *MemoryStore) Hit(_ context.Context, identity string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictLocked(now)

	c, ok := s.entries[identity]
	if !ok || !now.Before(c.reset) {
		s.entries[identity] = &windowCounter{count: 1, reset: now.Add(s.window)}
		return 1, nil
	}
	c.count++
	return c.count, nil
}

// evictLocked drops counters whose window has been closed for at least a
// full window length. Live windows are never touched.
func (s *MemoryStore) evictLocked(now time.Time) {
	for id, c := range s.entries {
		if now.Sub(c.reset) > s.window {
			delete(s.entries, id)
		}
	}
}

// Len reports the number of tracked identities.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
