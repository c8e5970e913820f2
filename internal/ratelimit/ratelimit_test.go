package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_AllowsUpToLimit(t *testing.T) {
	l := NewMemoryLimiter(60, time.Minute)
	defer l.Close()
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		allowed, err := l.Allow(ctx, "global:10.0.0.1")
		if err != nil {
			t.Fatalf("Allow() error = %v", err)
		}
		if !allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
	}

	allowed, err := l.Allow(ctx, "global:10.0.0.1")
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if allowed {
		t.Error("request beyond the limit should be rejected")
	}
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	defer l.Close()
	ctx := context.Background()

	if allowed, _ := l.Allow(ctx, "a"); !allowed {
		t.Fatal("first request for key a should pass")
	}
	if allowed, _ := l.Allow(ctx, "a"); allowed {
		t.Fatal("second request for key a should be rejected")
	}
	if allowed, _ := l.Allow(ctx, "b"); !allowed {
		t.Error("key b should have its own budget")
	}
}

func TestMemoryLimiter_WindowRollover(t *testing.T) {
	l := NewMemoryLimiter(2, time.Minute)
	defer l.Close()
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	for i := 0; i < 2; i++ {
		if allowed, _ := l.Allow(ctx, "k"); !allowed {
			t.Fatalf("request %d inside budget rejected", i+1)
		}
	}
	if allowed, _ := l.Allow(ctx, "k"); allowed {
		t.Fatal("over-budget request should be rejected")
	}

	// Advance past the window; the budget resets.
	now = now.Add(time.Minute + time.Second)
	if allowed, _ := l.Allow(ctx, "k"); !allowed {
		t.Error("request after window rollover should pass")
	}
}

func TestNoOpLimiter(t *testing.T) {
	l := NoOpLimiter{}
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		allowed, err := l.Allow(ctx, "any")
		if err != nil || !allowed {
			t.Fatalf("NoOpLimiter.Allow() = (%v, %v), want (true, nil)", allowed, err)
		}
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMemoryLimiter_CloseIsIdempotent(t *testing.T) {
	l := NewMemoryLimiter(1, time.Minute)
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}
