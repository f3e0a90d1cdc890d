package db

import (
	"context"
	"sync"
	"testing"
	"time"

	"milda_bot/models"
	"milda_bot/ratelimit"
	"milda_bot/workpool"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, models.Ticket{ID: "T001AB", ChatID: "1", Status: models.StatusOpen}))
	require.NoError(t, store.Append(ctx, models.Ticket{ID: "T002CD", ChatID: "2", Status: models.StatusOpen}))

	row, err := store.FindByID(ctx, "T002CD")
	require.NoError(t, err)
	assert.Equal(t, 3, row.Location)

	require.NoError(t, store.UpdateStatus(ctx, row.Location, models.StatusConfirmedResolved))
	assert.Equal(t, models.StatusConfirmedResolved, store.Tickets()[1].Status)

	assert.Error(t, store.UpdateStatus(ctx, 9, models.StatusOpen))
	assert.True(t, store.SetStatus("T001AB", models.StatusResolved))
	assert.False(t, store.SetStatus("nope", models.StatusResolved))
}

func TestLimited_SharesOneWindowAcrossCallers(t *testing.T) {
	ctx := context.Background()
	limiter := ratelimit.New(3, 80*time.Millisecond)
	store := NewLimited(NewMemoryStore(), limiter, workpool.New(4))

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.ReadAll(ctx)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond, "second batch waits for the window")
}

func TestLimited_PassesThroughNotFound(t *testing.T) {
	store := NewLimited(NewMemoryStore(), ratelimit.New(10, time.Minute), workpool.New(1))

	_, err := store.FindByID(context.Background(), "T404")
	assert.ErrorIs(t, err, ErrNotFound)
}
