package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/dialog"
	"github.com/m3rciful/rocketbot/core/logger"
	"github.com/m3rciful/rocketbot/core/router/middleware"
)

// DefaultApology is sent when a handler or dialog step fails.
const DefaultApology = "Извините, что-то пошло не так. Попробуйте ещё раз позже."

// FSM defines the minimal interface of the dialog engine used by the dispatcher.
type FSM interface {
	Active(sender string) bool
	Advance(ctx context.Context, sender, input string) (dialog.Reply, error)
	Abort(ctx context.Context, sender string) bool
}

// Options configures a Dispatcher.
type Options struct {
	// Middlewares wrap routing inside the panic recovery; the first entry is the outermost.
	Middlewares []commands.MiddlewareFunc
	// Apology overrides DefaultApology.
	Apology string
}

// Dispatcher routes messages either to the sender's active dialog or to a registered command.
type Dispatcher struct {
	reg     *Registry
	fsm     FSM
	handler commands.HandlerFunc
	apology string
}

// NewDispatcher builds a Dispatcher over reg and fsm.
func NewDispatcher(reg *Registry, fsm FSM, opts Options) *Dispatcher {
	d := &Dispatcher{reg: reg, fsm: fsm, apology: opts.Apology}
	if d.apology == "" {
		d.apology = DefaultApology
	}
	mws := append([]commands.MiddlewareFunc{middleware.RecoverMiddleware}, opts.Middlewares...)
	d.handler = commands.Chain(d.route, mws...)
	return d
}

// Dispatch handles one message and returns the reply text; an empty string means no reply.
// Failures never escape: the sender's session is dropped and an apology is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, req commands.Request) string {
	if ctx == nil {
		ctx = context.Background()
	}
	reply, err := d.handler(ctx, &req)
	if err == nil {
		return reply
	}
	if d.fsm != nil {
		d.fsm.Abort(ctx, req.Sender)
	}
	logger.LogEvent(ctx, logger.Router, slog.LevelError, "dispatch.failed",
		slog.String("status", "fail"),
		slog.String("command", req.Command),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.String("err_code", errorCode(err)),
	)
	return d.apology
}

func (d *Dispatcher) route(ctx context.Context, req *commands.Request) (string, error) {
	start := time.Now()

	if d.fsm != nil && d.fsm.Active(req.Sender) {
		req.Command = "dialog"
		return newSummary("dialog", start).run(ctx, func(ctx context.Context) (string, error) {
			reply, err := d.fsm.Advance(ctx, req.Sender, req.Text)
			if err != nil {
				return "", err
			}
			return reply.Text, nil
		})
	}

	fields := strings.Fields(req.Text)
	if len(fields) == 0 || d.reg == nil {
		return "", nil
	}
	key, cmd, ok := d.reg.LookupCommand(fields[0])
	if !ok || cmd.Handler == nil {
		skipped := newSummary("unknown", start, slog.String("command", logger.SanitizeLimit(fields[0], 64)))
		skipped.outcome = "skip"
		skipped.log(ctx, "", nil)
		return "", nil
	}

	req.Command = key
	req.Args = fields[1:]
	return newSummary(key, start, slog.String("command", key)).run(ctx, func(ctx context.Context) (string, error) {
		return cmd.Handler(ctx, req)
	})
}
