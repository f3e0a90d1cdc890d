package workpool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_BoundsConcurrency(t *testing.T) {
	p := New(2)

	var running, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Do(context.Background(), func(ctx context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					old := atomic.LoadInt32(&peak)
					if n <= old || atomic.CompareAndSwapInt32(&peak, old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPool_GoReportsErrors(t *testing.T) {
	p := New(1)
	boom := errors.New("smtp down")

	var got error
	var mu sync.Mutex
	p.Go(context.Background(), func(ctx context.Context) error { return boom }, func(err error) {
		mu.Lock()
		got = err
		mu.Unlock()
	})
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.ErrorIs(t, got, boom)
}

func TestPool_DoRespectsCancelledContext(t *testing.T) {
	p := New(1)
	block := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func(ctx context.Context) error {
			<-block
			return nil
		})
	}()
	time.Sleep(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	close(block)
}
