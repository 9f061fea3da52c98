package middleware

import (
	"context"
	"log/slog"

	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/logger"
)

// LoggerMiddleware attaches correlation fields to ctx and logs a sampled receipt line per message.
func LoggerMiddleware(next commands.HandlerFunc) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) (string, error) {
		if req == nil {
			return next(ctx, req)
		}
		if logger.RIDFrom(ctx) == "" {
			ctx = logger.WithRID(ctx, logger.BuildRID(req.Room, req.MessageID))
		}
		ctx = logger.WithMessageMeta(ctx, req.MessageID, req.Sender, req.Room)
		ctx = logger.WithLogger(ctx, logger.Router)

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if req.SenderName != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(req.SenderName, 64)))
			}
			if req.Text != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(req.Text, 256)))
			}
			logger.LogEvent(ctx, logger.Router, slog.LevelDebug, "message.received", attrs...)
		}
		return next(ctx, req)
	}
}
