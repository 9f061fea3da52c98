package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/rocketbot/core/logger"
)

// summary emits one handler.handled line per routed message.
type summary struct {
	handler string
	start   time.Time
	// outcome overrides the derived ok/skip/fail value when set.
	outcome string
	extras  []slog.Attr
}

func newSummary(handler string, start time.Time, extras ...slog.Attr) summary {
	return summary{handler: handler, start: start, extras: extras}
}

// run calls fn with the handler name attached to ctx and logs the result.
func (s summary) run(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	ctx = logger.WithHandler(ctx, s.handler)
	reply, err := fn(ctx)
	s.log(ctx, reply, err)
	return reply, err
}

func (s summary) log(ctx context.Context, reply string, err error) {
	ctx = logger.WithHandler(ctx, s.handler)

	status, outcome, level := "ok", s.outcome, slog.LevelInfo
	switch {
	case err != nil:
		status, outcome, level = "fail", "fail", slog.LevelError
	case outcome != "":
		status = outcome
	case reply == "":
		outcome = "skip"
	default:
		outcome = "ok"
	}

	attrs := make([]slog.Attr, 0, 8+len(s.extras))
	attrs = append(attrs,
		slog.String("status", status),
		slog.String("handler", s.handler),
		slog.String("outcome", outcome),
		slog.Bool("replied", reply != ""),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(s.start)).Milliseconds()),
	)
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("cause", s.handler),
		)
	}
	attrs = append(attrs, s.extras...)
	logger.LogEvent(ctx, logger.Router, level, "handler.handled", attrs...)
}

// errorCode turns an error into an UPPER_SNAKE code for log filtering. Errors
// exposing Code() win; otherwise the concrete type name is used.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return upperSnake(code)
		}
	}
	name := fmt.Sprintf("%T", err)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "UNKNOWN_ERROR"
	}
	return upperSnake(name)
}

func upperSnake(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), "_"))
}
