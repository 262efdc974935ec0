package transfer

import (
	"context"
	"sync"
	"time"
)

// Throttle spaces uploads to the sink by a minimum interval. It is shared by
// every worker of a run, so the spacing holds across items and parts.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

// NewThrottle returns a throttle enforcing interval between uploads. A zero
// interval never waits.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Wait blocks until the caller may start an upload, reserving its slot. It
// returns ctx.Err() if the context ends first; the reserved slot is still
// consumed.
func (t *Throttle) Wait(ctx context.Context) error {
	if t == nil {
		return ctx.Err()
	}
	t.mu.Lock()
	now := t.now()
	slot := now
	if t.next.After(slot) {
		slot = t.next
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff pushes the next slot at least d into the future, used when the
// sink asks callers to slow down.
func (t *Throttle) Backoff(d time.Duration) {
	if t == nil || d <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if until := t.now().Add(d); until.After(t.next) {
		t.next = until
	}
}
