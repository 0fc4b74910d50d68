package handlers

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/zatekoja/localservices/internal/domain/providers"
)

// RateLimiter counts actions per key in fixed windows. Counts live in the
// shared cache when one is configured so every API instance sees them; the
// in-process limiter covers the rest.
type RateLimiter struct {
	cache  providers.CacheProvider
	local  *localRateLimiter
	limit  int
	window time.Duration
	prefix string
}

// NewRateLimiter creates a limiter allowing limit actions per window. cache may be nil.
func NewRateLimiter(cache providers.CacheProvider, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		cache:  cache,
		local:  newLocalRateLimiter(time.Now),
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// Allow records one action for key and reports whether it is within the
// limit. When it is not, the second value is how long until the window resets.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}
	key = l.prefix + ":" + key
	if l.cache == nil {
		return l.local.allow(key, l.limit, l.window)
	}

	// The window starts with the first action; later increments keep its expiry.
	count, remaining, err := l.cache.Increment(ctx, key, windowSeconds(l.window))
	if err != nil {
		// Cache unavailable: fall back to counting locally.
		return l.local.allow(key, l.limit, l.window)
	}
	if count > int64(l.limit) {
		if remaining <= 0 {
			remaining = l.window
		}
		return false, remaining
	}
	return true, 0
}

func windowSeconds(window time.Duration) int {
	return int(math.Max(1, math.Ceil(window.Seconds())))
}

type localRateLimiter struct {
	mu        sync.Mutex
	states    map[string]*localRateState
	now       func() time.Time
	lastSweep time.Time
}

type localRateState struct {
	count   int
	resetAt time.Time
}

func newLocalRateLimiter(now func() time.Time) *localRateLimiter {
	return &localRateLimiter{
		states:    make(map[string]*localRateState),
		now:       now,
		lastSweep: now(),
	}
}

func (l *localRateLimiter) allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= window {
		l.sweepLocked(now)
	}

	state, ok := l.states[key]
	if !ok || !now.Before(state.resetAt) {
		state = &localRateState{resetAt: now.Add(window)}
		l.states[key] = state
	}

	if state.count >= limit {
		return false, state.resetAt.Sub(now)
	}

	state.count++
	return true, 0
}

// sweepLocked drops every window that has already ended
func (l *localRateLimiter) sweepLocked(now time.Time) {
	for key, state := range l.states {
		if !now.Before(state.resetAt) {
			delete(l.states, key)
		}
	}
	l.lastSweep = now
}

// retryAfterSeconds rounds up so a client never retries before the reset
func retryAfterSeconds(d time.Duration) int {
	return windowSeconds(d)
}
