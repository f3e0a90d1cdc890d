// Package ratelimit admits at most a fixed number of calls in any rolling
// window. Callers over the limit wait for capacity instead of failing.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is a sliding-window limiter. Waiters are admitted strictly in
// arrival order: the head of the line holds the turn while it sleeps.
type Window struct {
	limit  int
	period time.Duration

	turn chan struct{}

	mu     sync.Mutex
	stamps []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type Option func(*Window)

// WithClock replaces the time source and the sleep function. Tests use it to
// drive the window without real waits.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(w *Window) {
		w.now = now
		w.sleep = sleep
	}
}

func New(limit int, period time.Duration, opts ...Option) *Window {
	if limit < 1 {
		limit = 1
	}
	w := &Window{
		limit:  limit,
		period: period,
		turn:   make(chan struct{}, 1),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait blocks until the call can be admitted and records it. It returns how
// long the caller was held back.
func (w *Window) Wait(ctx context.Context) (time.Duration, error) {
	start := w.now()

	select {
	case w.turn <- struct{}{}:
	case <-ctx.Done():
		return w.now().Sub(start), ctx.Err()
	}
	defer func() { <-w.turn }()

	for {
		delay := w.tryAdmit()
		if delay <= 0 {
			return w.now().Sub(start), nil
		}
		if err := w.sleep(ctx, delay); err != nil {
			return w.now().Sub(start), err
		}
	}
}

// tryAdmit records a call if there is capacity, otherwise it returns how long
// until the oldest recorded call leaves the window.
func (w *Window) tryAdmit() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.period)
	drop := 0
	for drop < len(w.stamps) && !w.stamps[drop].After(cutoff) {
		drop++
	}
	w.stamps = w.stamps[drop:]

	if len(w.stamps) < w.limit {
		w.stamps = append(w.stamps, now)
		return 0
	}
	return w.stamps[0].Add(w.period).Sub(now)
}

// InFlight reports how many calls are currently counted in the window.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.now().Add(-w.period)
	n := 0
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}

func (w *Window) Limit() int            { return w.limit }
func (w *Window) Period() time.Duration { return w.period }

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
