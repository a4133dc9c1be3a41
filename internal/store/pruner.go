package store

import (
	"context"
	"log/slog"
	"time"
)

// StartPruner runs a background goroutine that periodically deletes journal
// rows older than retention.
func StartPruner(ctx context.Context, repo Repository, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Journal pruner started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				deleted, err := repo.PruneJournal(ctx, retention)
				if err != nil {
					slog.Error("Journal pruner failed", "error", err)
					continue
				}
				if deleted > 0 {
					slog.Info("Journal pruner removed old rows", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("Journal pruner shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
