package ports

import (
	"context"
	"time"
)

// Delayer abstracts waiting so the post-timeout grace period is injectable
// in tests.
type Delayer interface {
	Delay(ctx context.Context, d time.Duration)
}

// SleepDelayer waits with a real timer, honoring context cancellation.
type SleepDelayer struct{}

// Delay blocks for d or until the context is done.
func (SleepDelayer) Delay(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// NopDelayer returns immediately; tests use it to skip grace periods.
type NopDelayer struct{}

// Delay is a no-op.
func (NopDelayer) Delay(context.Context, time.Duration) {}
