package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/logger"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Now overrides the clock; nil uses time.Now.
	Now func() time.Time
	// OnLimited is called for every dropped request.
	OnLimited func(ctx context.Context, req *commands.Request)
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between messages from the same sender. Dropped messages get no reply.
func RateLimitMiddleware(opts RateLimitOptions) commands.MiddlewareFunc {
	var (
		lastSeen   = make(map[string]time.Time)
		lastSeenMu sync.Mutex
	)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next commands.HandlerFunc) commands.HandlerFunc {
		return func(ctx context.Context, req *commands.Request) (string, error) {
			if opts.Interval <= 0 || req == nil || req.Sender == "" {
				return next(ctx, req)
			}

			ts := now()
			lastSeenMu.Lock()
			if last, ok := lastSeen[req.Sender]; ok && ts.Sub(last) < opts.Interval {
				lastSeenMu.Unlock()
				logger.LogEvent(ctx, logger.Router, slog.LevelWarn, "rate_limit",
					slog.String("status", "rate_limited"),
					slog.String("outcome", "rate_limited"),
				)
				if opts.OnLimited != nil {
					opts.OnLimited(ctx, req)
				}
				return "", nil
			}
			lastSeen[req.Sender] = ts
			lastSeenMu.Unlock()
			return next(ctx, req)
		}
	}
}
