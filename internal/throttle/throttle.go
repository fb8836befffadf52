// Package throttle implements the fixed-window request guards placed in
// front of the function endpoints. State lives in an injected Store so a
// single instance can keep it in memory while a scaled deployment shares it
// through Redis.
package throttle

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// Store keeps per-key hit counters.
// Implementations must be safe for concurrent use.
type Store interface {
	// Hit counts one request for key and returns the number of hits in the
	// current window together with the time that window resets. The first
	// hit after a reset opens a new window of the given length.
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (count int64, resetAt time.Time, err error)
	// Release forgets key so the next Hit opens a fresh window.
	Release(ctx context.Context, key string) error
}

// Config is the request budget per key
type Config struct {
	MaxRequests int
	Window      time.Duration
}

// Result is the outcome of a single Allow call
type Result struct {
	Allowed bool
	// RetryAfter is the number of seconds until the window resets. Zero when allowed.
	RetryAfter int
}

// Options holds optional collaborators
type Options struct {
	TimeProvider func() time.Time
}

// Throttle applies one Config to keys under a named scope
type Throttle struct {
	scope        string
	store        Store
	config       Config
	logger       *slog.Logger
	timeProvider func() time.Time
}

// New creates a Throttle. Keys are namespaced by scope so several throttles can share a Store.
func New(scope string, store Store, config Config, logger *slog.Logger, opts *Options) *Throttle {
	timeProvider := time.Now
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}

	return &Throttle{
		scope:        scope,
		store:        store,
		config:       config,
		logger:       logger,
		timeProvider: timeProvider,
	}
}

// Scope returns the namespace this throttle counts under
func (t *Throttle) Scope() string {
	return t.scope
}

// Allow counts a request for key. Store failures fail open.
func (t *Throttle) Allow(ctx context.Context, key string) Result {
	now := t.timeProvider()

	count, resetAt, err := t.store.Hit(ctx, t.scope+":"+key, t.config.Window, now)
	if err != nil {
		t.logger.Warn("throttle store unavailable, allowing request",
			slog.String("scope", t.scope),
			slog.Any("error", err))
		return Result{Allowed: true}
	}

	if count <= int64(t.config.MaxRequests) {
		return Result{Allowed: true}
	}

	return Result{Allowed: false, RetryAfter: retryAfterSeconds(resetAt.Sub(now))}
}

// retryAfterSeconds rounds up to whole seconds with a floor of one
func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
