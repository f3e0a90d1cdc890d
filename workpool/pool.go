// Package workpool bounds how many remote calls run at once so one slow
// backend cannot starve unrelated sessions.
package workpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do runs fn once a worker slot is free and returns its error.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Go runs fn in the background on a worker slot. Errors are handed to
// onErr, which may be nil.
func (p *Pool) Go(ctx context.Context, fn func(ctx context.Context) error, onErr func(error)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Do(ctx, fn); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}

// Wait blocks until every job started with Go has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}
