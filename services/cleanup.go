package services

import (
	"context"
	"log/slog"
	"time"
)

// CleanupAbandonedDrafts drops drafts that saw no input for ttl. It checks
// every ttl/2 until ctx is done.
func CleanupAbandonedDrafts(ctx context.Context, drafts *DraftStore, ttl time.Duration, now func() time.Time, logger *slog.Logger) {
	every := ttl / 2
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := drafts.Expire(now().Add(-ttl)); n > 0 {
				logger.Info("dropped abandoned drafts", "count", n)
			}
		}
	}
}
