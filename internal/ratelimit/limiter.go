// Package ratelimit implements a fixed-window request budget keyed by
// (purpose, client key). The window deliberately resets rather than slides:
// a burst straddling the boundary can admit up to twice the nominal rate,
// and callers depend on that exact boundary behaviour. Storage is pluggable
// behind the Store interface so the in-process map can be swapped for a
// shared Redis backend without changing call sites.
package ratelimit

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/facility-reservation/internal/apperr"
)

// Config holds the budget for one purpose.
type Config struct {
	MaxRequests int           // requests admitted per window
	Window      time.Duration // fixed window length
}

// Snapshot is the observable state of one counter entry.
type Snapshot struct {
	Count           int       // consumptions recorded in the current window
	WindowStartedAt time.Time // when the current window opened
}

// Store is the capability set the limiter consumes. Check applies window
// rollover and returns the current snapshot; Increment records one
// consumption; Reset discards an entry; Cleanup drops entries whose own
// window has fully elapsed — a store is shared between limiters with
// different windows, so each entry is judged by its own deadline. Check and
// Increment need not be atomic with respect to each other: the limiter is a
// defensive throttle, not a correctness boundary, and slight over-admission
// under contention is acceptable.
type Store interface {
	Check(ctx context.Context, key string, window time.Duration, now time.Time) (Snapshot, error)
	Increment(ctx context.Context, key string, window time.Duration, now time.Time) (Snapshot, error)
	Reset(ctx context.Context, key string) error
	Cleanup(ctx context.Context, now time.Time) error
}

// Limiter enforces a fixed-window budget for a single purpose. Create one
// limiter per purpose (e.g. "reservation:create") and key calls by the
// client network address.
type Limiter struct {
	purpose string
	cfg     Config
	store   Store
	now     func() time.Time
}

// New constructs a Limiter. The purpose becomes part of every storage key so
// distinct purposes never share a budget.
func New(purpose string, cfg Config, store Store) *Limiter {
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &Limiter{purpose: purpose, cfg: cfg, store: store, now: time.Now}
}

// WithClock overrides the limiter's time source. Tests use it to step across
// window boundaries deterministically.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Purpose returns the purpose this limiter guards.
func (l *Limiter) Purpose() string { return l.purpose }

// Allow consumes one unit of budget for clientKey. When the budget is
// exhausted it fails with a rate-limit error and mutates nothing; the caller
// surfaces the failure to the end user, no retry happens here. Storage
// failures are logged and treated as allow so a broken counter backend never
// blocks traffic.
func (l *Limiter) Allow(ctx context.Context, clientKey string) error {
	key := l.purpose + ":" + clientKey
	now := l.now().UTC()

	snap, err := l.store.Check(ctx, key, l.cfg.Window, now)
	if err != nil {
		log.Printf("ratelimit: check failed purpose=%s key=%s: %v", l.purpose, clientKey, err)
		return nil
	}
	if snap.Count >= l.cfg.MaxRequests {
		log.Printf("ratelimit: rejected purpose=%s key=%s count=%d window_started=%s",
			l.purpose, clientKey, snap.Count, snap.WindowStartedAt.Format(time.RFC3339))
		return apperr.New(apperr.KindRateLimited, "too many requests, try again later")
	}
	if _, err := l.store.Increment(ctx, key, l.cfg.Window, now); err != nil {
		log.Printf("ratelimit: increment failed purpose=%s key=%s: %v", l.purpose, clientKey, err)
	}
	return nil
}

// StartJanitor launches a goroutine that sweeps expired entries on the given
// interval until ctx is cancelled. Rollover on access already bounds staleness
// per key; the janitor bounds total memory for keys never seen again.
func (l *Limiter) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := l.store.Cleanup(ctx, l.now().UTC()); err != nil {
					log.Printf("ratelimit: cleanup failed purpose=%s: %v", l.purpose, err)
				}
			}
		}
	}()
}
