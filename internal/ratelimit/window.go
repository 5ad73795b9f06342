// Package ratelimit provides the fixed-window limiter every provider call
// goes through. One Window instance guards one provider.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window admits up to limit calls per fixed window. The window opens at the
// first admission after a reset and rolls over as a whole: once the budget is
// spent, Acquire sleeps out the remainder of the window and retries. Counting
// this way can admit up to twice the limit across a single boundary, which is
// the accepted trade for never tracking per-request timestamps.
type Window struct {
	mu    sync.Mutex
	limit int
	size  time.Duration
	start time.Time
	count int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// New returns a limiter admitting limit calls per window. Non-positive
// limits or windows mean unlimited: New returns nil, and the nil *Window is
// safe to call.
func New(limit int, window time.Duration) *Window {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &Window{
		limit: limit,
		size:  window,
		now:   time.Now,
		sleep: sleepCtx,
	}
}

// PerMinute returns a limiter admitting rpm calls per one-minute window, or
// nil (unlimited) when rpm <= 0.
func PerMinute(rpm int) *Window {
	return New(rpm, time.Minute)
}

// Acquire blocks until the call is admitted or ctx ends. On a spent window it
// sleeps until the rollover and re-checks, so all waiters contend again for
// the fresh budget.
func (w *Window) Acquire(ctx context.Context) error {
	if w == nil {
		return nil
	}
	for {
		w.mu.Lock()
		now := w.now()
		if now.Sub(w.start) >= w.size {
			w.start = now
			w.count = 0
		}
		if w.count < w.limit {
			w.count++
			w.mu.Unlock()
			return nil
		}
		wait := w.size - now.Sub(w.start)
		w.mu.Unlock()
		if !w.sleep(ctx, wait) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
