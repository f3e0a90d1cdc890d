package db

import (
	"context"
	"errors"

	"milda_bot/models"
	"milda_bot/monitoring"
	"milda_bot/ratelimit"
	"milda_bot/workpool"
)

// Limited routes every call through the shared rate limiter and then runs it
// on the remote-call worker pool. All store callers must share one Limited.
type Limited struct {
	next    RowStore
	limiter *ratelimit.Window
	pool    *workpool.Pool
}

func NewLimited(next RowStore, limiter *ratelimit.Window, pool *workpool.Pool) *Limited {
	return &Limited{next: next, limiter: limiter, pool: pool}
}

func (l *Limited) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	waited, err := l.limiter.Wait(ctx)
	monitoring.TrackRateLimitWait(waited)
	if err != nil {
		monitoring.TrackStoreOperation(op, err)
		return err
	}
	err = l.pool.Do(ctx, fn)
	if errors.Is(err, ErrNotFound) {
		monitoring.TrackStoreOperation(op, nil)
	} else {
		monitoring.TrackStoreOperation(op, err)
	}
	return err
}

func (l *Limited) Append(ctx context.Context, t models.Ticket) error {
	return l.do(ctx, "append", func(ctx context.Context) error {
		return l.next.Append(ctx, t)
	})
}

func (l *Limited) FindByID(ctx context.Context, id string) (models.Row, error) {
	var row models.Row
	err := l.do(ctx, "find", func(ctx context.Context) error {
		var err error
		row, err = l.next.FindByID(ctx, id)
		return err
	})
	return row, err
}

func (l *Limited) ReadAll(ctx context.Context) ([]models.Row, error) {
	var rows []models.Row
	err := l.do(ctx, "read_all", func(ctx context.Context) error {
		var err error
		rows, err = l.next.ReadAll(ctx)
		return err
	})
	return rows, err
}

func (l *Limited) UpdateStatus(ctx context.Context, location int, status models.Status) error {
	return l.do(ctx, "update_status", func(ctx context.Context) error {
		return l.next.UpdateStatus(ctx, location, status)
	})
}
