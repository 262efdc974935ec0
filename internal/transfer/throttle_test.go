package transfer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestThrottleReservesSpacedSlots(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	throttle := NewThrottle(2 * time.Second)
	throttle.now = func() time.Time { return base }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := throttle.Wait(context.Background()); err != nil {
		t.Fatalf("first wait should not block: %v", err)
	}
	if !throttle.next.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("next = %s", throttle.next)
	}
	if err := throttle.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	if !throttle.next.Equal(base.Add(4 * time.Second)) {
		t.Fatalf("cancelled wait should still consume its slot, next = %s", throttle.next)
	}
}

func TestThrottleWaitsForInterval(t *testing.T) {
	throttle := NewThrottle(30 * time.Millisecond)
	start := time.Now()
	for range 3 {
		if err := throttle.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("three waits took %s, want at least 60ms", elapsed)
	}
}

func TestThrottleBackoffOnlyExtends(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	throttle := NewThrottle(time.Second)
	throttle.now = func() time.Time { return base }

	throttle.Backoff(10 * time.Second)
	if !throttle.next.Equal(base.Add(10 * time.Second)) {
		t.Fatalf("next = %s", throttle.next)
	}
	throttle.Backoff(time.Second)
	if !throttle.next.Equal(base.Add(10 * time.Second)) {
		t.Fatalf("shorter backoff moved next to %s", throttle.next)
	}
	throttle.Backoff(0)
	if !throttle.next.Equal(base.Add(10 * time.Second)) {
		t.Fatal("zero backoff must be ignored")
	}
}

func TestNilThrottleIsNoop(t *testing.T) {
	var throttle *Throttle
	if err := throttle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	throttle.Backoff(time.Minute)
}
