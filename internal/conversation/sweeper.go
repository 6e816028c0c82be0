package conversation

import (
	"context"
	"log/slog"
	"time"

	"github.com/luminova-studio/siteline/internal/store"
)

const sweepInterval = 15 * time.Minute

// IdleDropper evicts in-memory session handles idle beyond ttl and
// reports how many were dropped. The game manager satisfies it.
type IdleDropper interface {
	DropIdle(ttl time.Duration) int
}

// StartSweeper runs a background goroutine that periodically discards
// sessions idle beyond ttl: persisted conversation rows, in-memory
// conversation handles, and any extra session registries such as the
// game manager. It stops when ctx is cancelled.
func StartSweeper(ctx context.Context, repo store.Repository, mgr *Manager, ttl time.Duration, extras ...IdleDropper) {
	ticker := time.NewTicker(sweepInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", sweepInterval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepOnce(ctx, repo, mgr, ttl, extras...)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepOnce(ctx context.Context, repo store.Repository, mgr *Manager, ttl time.Duration, extras ...IdleDropper) {
	deleted, err := repo.CleanupExpiredChatSessions(ctx, ttl)
	if err != nil {
		slog.Error("Sweeper failed to cleanup chat sessions", "error", err)
		return
	}

	dropped := mgr.DropIdle(ttl)
	for _, extra := range extras {
		dropped += extra.DropIdle(ttl)
	}
	if deleted > 0 || dropped > 0 {
		slog.Info("Sweeper cleaned up idle sessions", "rows_deleted", deleted, "handles_dropped", dropped)
	}
}
