package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newFake() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
}

func TestWindow_AdmitsUpToLimitWithoutWaiting(t *testing.T) {
	clk := newFake()
	w := New(50, time.Minute, WithClock(clk.Now, clk.Sleep))

	for i := 0; i < 50; i++ {
		waited, err := w.Wait(context.Background())
		require.NoError(t, err)
		assert.Zero(t, waited)
	}
	assert.Equal(t, 50, w.InFlight())
}

func TestWindow_DelaysInsteadOfRejecting(t *testing.T) {
	clk := newFake()
	w := New(3, time.Minute, WithClock(clk.Now, clk.Sleep))

	for i := 0; i < 3; i++ {
		_, err := w.Wait(context.Background())
		require.NoError(t, err)
		clk.Advance(10 * time.Second)
	}

	// Oldest call was 30s ago, so the fourth must wait the remaining 30s.
	waited, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, waited)
}

func TestWindow_NeverExceedsLimitInAnyWindow(t *testing.T) {
	clk := newFake()
	const limit = 5
	period := time.Minute
	w := New(limit, period, WithClock(clk.Now, clk.Sleep))

	var admitted []time.Time
	for i := 0; i < 40; i++ {
		_, err := w.Wait(context.Background())
		require.NoError(t, err)
		admitted = append(admitted, clk.Now())
		clk.Advance(time.Duration(i%4) * 3 * time.Second)
	}

	for i, start := range admitted {
		end := start.Add(period)
		n := 0
		for _, ts := range admitted[i:] {
			if ts.Before(end) {
				n++
			}
		}
		assert.LessOrEqual(t, n, limit, "window starting at call %d", i)
	}
}

func TestWindow_ContextCancelledWhileQueued(t *testing.T) {
	w := New(1, time.Hour)

	_, err := w.Wait(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = w.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, w.InFlight())
}

func TestWindow_ConcurrentCallersRealClock(t *testing.T) {
	const limit = 4
	period := 150 * time.Millisecond
	w := New(limit, period)

	var (
		mu    sync.Mutex
		times []time.Time
		wg    sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Wait(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, times, 10)
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	// Ten calls at four per window need at least two full periods.
	assert.GreaterOrEqual(t, last.Sub(first), 2*period-10*time.Millisecond)
}
