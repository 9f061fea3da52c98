package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/logger"
)

// ErrPanic wraps a value recovered from a panicking handler.
var ErrPanic = errors.New("handler panic")

// RecoverMiddleware turns handler panics into ErrPanic so the dispatcher can answer with an apology.
func RecoverMiddleware(next commands.HandlerFunc) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) (reply string, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.LogEvent(ctx, logger.Router, slog.LevelError, "handler.panic",
					slog.String("status", "fail"),
					slog.Any("err", r),
					slog.String("stack", string(debug.Stack())),
				)
				reply, err = "", fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		return next(ctx, req)
	}
}
