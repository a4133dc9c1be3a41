package session

import (
	"context"
	"log/slog"
	"time"
)

// EvictCallback is called for each session closed by the reaper.
type EvictCallback func(visitorID, sessionID string)

// StartReaper runs a background goroutine that periodically closes sessions
// idle for longer than ttl. Sessions with an outstanding exchange are kept.
func StartReaper(ctx context.Context, mgr *Manager, ttl, interval time.Duration, onEvict EvictCallback) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session reaper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				reapIdleSessions(mgr, time.Now().Add(-ttl), onEvict)
			case <-ctx.Done():
				slog.Info("Session reaper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func reapIdleSessions(mgr *Manager, cutoff time.Time, onEvict EvictCallback) int {
	idle := mgr.idleSince(cutoff)
	if len(idle) == 0 {
		return 0
	}

	slog.Info("Session reaper found idle sessions", "count", len(idle))

	evicted := 0
	for _, key := range idle {
		if !mgr.removeIfIdle(key.visitorID, key.sessionID, cutoff) {
			continue
		}
		evicted++
		if onEvict != nil {
			onEvict(key.visitorID, key.sessionID)
		}
	}

	slog.Info("Session reaper cleanup completed", "evicted", evicted)
	return evicted
}
