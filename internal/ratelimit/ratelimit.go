// Package ratelimit tracks per-subject request budgets. The subject key is
// typically a client IP, optionally prefixed by an endpoint class.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sentinel-systems/secmon/internal/metrics"
)

// RateLimiter decides whether a request from the given subject is allowed.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Close() error
}

// counter is the mutable per-subject state: the window start and the number
// of requests seen inside it.
type counter struct {
	windowStart time.Time
	count       int
}

// MemoryLimiter is a fixed-window in-process rate limiter. A single mutex
// guards the whole table; this serializes checks but is sufficiently fast
// for modest request volumes.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*counter
	limit    int
	window   time.Duration
	now      func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewMemoryLimiter creates a limiter allowing limit requests per window
// for each subject key. Counters are created lazily on first request and
// stale entries are swept in the background.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := &MemoryLimiter{
		counters: make(map[string]*counter),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.sweep()
	return l
}

// SetClock overrides the time source. Used by tests to roll windows.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Allow records one request for key and reports whether it is within the
// limit. The read-modify-write is done under the lock so two concurrent
// requests from the same subject cannot both observe the same count.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowStart) > l.window {
		l.counters[key] = &counter{windowStart: now, count: 1}
		return true, nil
	}

	c.count++
	if c.count > l.limit {
		metrics.RateLimitHits.WithLabelValues(key).Inc()
		return false, nil
	}
	return true, nil
}

// sweep drops counters whose window expired long ago so the table does not
// grow without bound under churning client IPs.
func (l *MemoryLimiter) sweep() {
	interval := l.window
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			now := l.now()
			for key, c := range l.counters {
				if now.Sub(c.windowStart) > 2*l.window {
					delete(l.counters, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Close stops the background sweeper.
func (l *MemoryLimiter) Close() error {
	l.once.Do(func() { close(l.stop) })
	return nil
}

// NoOpLimiter always allows requests (for testing or disabled rate limiting).
type NoOpLimiter struct{}

func (NoOpLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

func (NoOpLimiter) Close() error { return nil }
