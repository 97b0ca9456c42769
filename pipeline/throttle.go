package pipeline

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a fixed inter-call delay derived from a
// requests-per-minute ceiling. Callers Wait before each rate-limited call;
// concurrent callers are serialized into evenly spaced slots and never
// exceed the ceiling, even under burst.
type Throttle struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewThrottle creates a throttle for the given ceiling. A non-positive
// ceiling disables throttling.
func NewThrottle(requestsPerMinute int) *Throttle {
	var interval time.Duration
	if requestsPerMinute > 0 {
		interval = time.Minute / time.Duration(requestsPerMinute)
	}
	return &Throttle{interval: interval}
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if t.interval <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	now := time.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	delay := time.Until(slot)
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

// Interval returns the enforced delay between calls.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}
