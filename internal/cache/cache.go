// Package cache provides a bounded in-memory window of recent security
// events for low-latency querying. It is an approximate, volatile view:
// a process restart loses it entirely. The durable log store remains the
// source of truth for audits.
package cache

import (
	"sync"
	"time"

	"github.com/sentinel-systems/secmon/internal/models"
)

// DefaultCapacity is the default number of events kept in memory.
const DefaultCapacity = 1000

// EventCache is a FIFO ring buffer of the most recent security events.
// Safe for concurrent use.
type EventCache struct {
	mu    sync.Mutex
	buf   []models.SecurityEvent
	head  int // index of the oldest entry
	count int
	now   func() time.Time
}

// New creates an EventCache with the given capacity.
// Non-positive capacities fall back to DefaultCapacity.
func New(capacity int) *EventCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &EventCache{
		buf: make([]models.SecurityEvent, capacity),
		now: time.Now,
	}
}

// SetClock overrides the time source. Used by tests to simulate windows.
func (c *EventCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Push appends an event, evicting the oldest entry once capacity is reached.
func (c *EventCache) Push(ev models.SecurityEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.count < len(c.buf) {
		c.buf[(c.head+c.count)%len(c.buf)] = ev
		c.count++
		return
	}
	// Full: overwrite the oldest slot and advance the head.
	c.buf[c.head] = ev
	c.head = (c.head + 1) % len(c.buf)
}

// Len returns the number of cached events.
func (c *EventCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Capacity returns the configured maximum number of cached events.
func (c *EventCache) Capacity() int {
	return len(c.buf)
}

// Filter restricts the events returned by Query.
type Filter struct {
	Kind        string
	UserID      string
	MinSeverity models.Severity
}

// Query returns up to limit cached events matching the filter,
// most recent first. A non-positive limit returns all matches.
func (c *EventCache) Query(limit int, f Filter) []models.SecurityEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.SecurityEvent, 0, c.count)
	for i := c.count - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		ev := c.buf[(c.head+i)%len(c.buf)]
		if f.Kind != "" && ev.Kind != f.Kind {
			continue
		}
		if f.UserID != "" && ev.UserID != f.UserID {
			continue
		}
		if !ev.Severity.AtLeast(f.MinSeverity) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// HasCriticalEventsSince reports whether any cached event has critical
// severity, a timestamp within now-window, and (when userID is non-empty)
// a matching user.
func (c *EventCache) HasCriticalEventsSince(window time.Duration, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window)
	for i := 0; i < c.count; i++ {
		ev := c.buf[(c.head+i)%len(c.buf)]
		if ev.Severity != models.SeverityCritical {
			continue
		}
		if userID != "" && ev.UserID != userID {
			continue
		}
		if !ev.Timestamp.Before(cutoff) {
			return true
		}
	}
	return false
}
