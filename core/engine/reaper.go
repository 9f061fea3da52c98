package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/rocketbot/core/logger"
)

func (e *Engine) reapLoop(ctx context.Context, stop <-chan struct{}) {
	defer e.wg.Done()
	ticker := time.NewTicker(e.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !e.running.Load() {
				return
			}
			e.Sweep(ctx)
		}
	}
}

// Sweep deletes expired sessions and returns how many were removed.
// Abandoned senders are not notified.
func (e *Engine) Sweep(ctx context.Context) int {
	expired := e.opts.Sessions.Sweep(e.opts.Now(), e.opts.TTL, e.opts.SlidingTTL)
	if len(expired) == 0 {
		return 0
	}
	e.stats.expired.Add(uint64(len(expired)))
	for _, s := range expired {
		logger.LogEvent(logger.WithMessageMeta(ctx, "", s.Sender, s.Room), logger.Reaper, slog.LevelInfo, "session.expired",
			slog.String("dialog", string(s.Kind)),
			slog.String("state", string(s.State)),
			slog.Duration("age", logger.RoundMS(s.Age(e.opts.Now(), e.opts.SlidingTTL))),
		)
	}
	logger.LogEvent(ctx, logger.Reaper, slog.LevelInfo, "reaper.sweep",
		slog.String("status", "ok"),
		slog.Int("expired", len(expired)),
		slog.Int("sessions", e.opts.Sessions.Len()),
	)
	return len(expired)
}
