package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNew_NonPositiveRateDisablesLimiting(t *testing.T) {
	l := New(0, 5)
	if l != nil {
		t.Fatal("expected nil limiter for zero rate")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatal("nil limiter must always allow")
		}
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	l := New(2, 3)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.lastRefill = now

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("expected burst token %d", i)
		}
	}
	if l.Allow() {
		t.Fatal("expected bucket to be empty")
	}

	now = now.Add(500 * time.Millisecond)
	if !l.Allow() {
		t.Error("expected one token after half a second at 2/s")
	}
	if l.Allow() {
		t.Error("expected bucket to be empty again")
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := New(0.001, 1)
	if !l.Allow() {
		t.Fatal("expected initial token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx); err != context.DeadlineExceeded {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestLimiter_WaitAcquires(t *testing.T) {
	l := New(1000, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}
