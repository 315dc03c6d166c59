package tools

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimitError reports retry exhaustion against a rate-limited backend.
type RateLimitError struct {
	Backend  string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded after %d attempts", e.Backend, e.Attempts)
}

// RateLimiter serializes requests to one backend and enforces a minimum
// spacing between them. Each backend owns its own limiter; there is no
// process-wide singleton, so tests can inject a fake clock without leaking
// state across cases.
type RateLimiter struct {
	mu    sync.Mutex
	last  time.Time
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{now: time.Now, sleep: sleepCtx}
}

// NewRateLimiterWithClock builds a limiter with injected time functions.
func NewRateLimiterWithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) *RateLimiter {
	return &RateLimiter{now: now, sleep: sleep}
}

// Acquire takes the backend lock and waits out the remaining spacing since
// the previous request. The lock stays held until Release so concurrent
// callers are fully serialized.
func (l *RateLimiter) Acquire(ctx context.Context, interval time.Duration) error {
	l.mu.Lock()
	if !l.last.IsZero() {
		if wait := interval - l.now().Sub(l.last); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				l.mu.Unlock()
				return err
			}
		}
	}
	return nil
}

// Release stamps the request time and releases the backend lock. It must be
// called exactly once after a successful Acquire.
func (l *RateLimiter) Release() {
	l.last = l.now()
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
