// Package engine runs the poll scheduler and the session reaper.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/rocketbot/core/chat"
	"github.com/m3rciful/rocketbot/core/chat/sender"
	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/dedup"
	"github.com/m3rciful/rocketbot/core/logger"
	"github.com/m3rciful/rocketbot/core/session"
)

// ErrAlreadyRunning is returned by Start on a running engine.
var ErrAlreadyRunning = errors.New("engine: already running")

// Dispatcher turns one inbound message into reply text.
type Dispatcher interface {
	Dispatch(ctx context.Context, req commands.Request) string
}

// Enqueuer schedules outbound work keyed by room.
type Enqueuer interface {
	Enqueue(ctx context.Context, key, action string, run sender.RunFunc) error
}

// Options wires the engine.
type Options struct {
	Transport  chat.Transport
	Dispatcher Dispatcher
	Sessions   *session.Store
	Dedup      *dedup.Tracker
	// Sender delivers replies; nil sends inline from the room goroutine.
	Sender Enqueuer

	Interval       time.Duration
	FetchCount     int
	Pacing         time.Duration
	MaxConcurrency int
	SkipBacklog    bool

	TTL           time.Duration
	SweepInterval time.Duration
	SlidingTTL    bool

	ShutdownTimeout time.Duration
	Now             func() time.Time
}

// Engine polls the transport for direct messages and feeds them to the dispatcher.
type Engine struct {
	opts Options

	running  atomic.Bool
	mu       sync.Mutex
	stop     chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  time.Time
	identity chat.Identity

	stats counters
}

// New validates options and fills defaults.
func New(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, errors.New("engine: transport is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("engine: dispatcher is required")
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewStore()
	}
	if opts.Dedup == nil {
		opts.Dedup = dedup.NewTracker(0)
	}
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Second
	}
	if opts.FetchCount <= 0 {
		opts.FetchCount = 10
	}
	if opts.Pacing < 0 {
		opts.Pacing = 0
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{opts: opts}, nil
}

// Start authenticates against the transport and launches the poll and reaper loops.
// A Connect failure is returned and the engine stays stopped.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.Load() {
		return ErrAlreadyRunning
	}

	id, err := e.opts.Transport.Connect(ctx)
	if err != nil {
		logger.LogEvent(ctx, logger.Poll, slog.LevelError, "engine.start",
			slog.String("status", "fail"),
			slog.String("transport", e.opts.Transport.Name()),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("engine start: %w", err)
	}

	// Loops outlive the caller's context; only Shutdown cancels them.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.identity = id
	e.started = e.opts.Now()
	e.stop = make(chan struct{})
	e.cancel = cancel
	e.running.Store(true)

	e.wg.Add(2)
	go e.pollLoop(loopCtx, e.stop)
	go e.reapLoop(loopCtx, e.stop)

	logger.LogEvent(ctx, logger.Poll, slog.LevelInfo, "engine.start",
		slog.String("status", "ok"),
		slog.String("transport", e.opts.Transport.Name()),
		slog.String("username", id.Username),
		slog.Duration("interval", e.opts.Interval),
		slog.Int("max_concurrency", e.opts.MaxConcurrency),
		slog.Duration("ttl", e.opts.TTL),
		slog.Bool("sliding_ttl", e.opts.SlidingTTL),
	)
	return nil
}

// Stop flips the running flag. Loops exit after their current iteration.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running.CompareAndSwap(true, false) {
		close(e.stop)
	}
}

// Running reports whether the loops are active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Identity returns the account the transport authenticated as.
func (e *Engine) Identity() chat.Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

// Shutdown stops the engine and waits for the loops. When ctx expires first,
// in-flight fetches are cancelled and ctx.Err is returned. The transport is closed.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.Stop()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		logger.LogEvent(ctx, logger.Poll, slog.LevelWarn, "engine.shutdown.forced",
			slog.String("status", "cancelled"),
		)
		e.mu.Lock()
		if e.cancel != nil {
			e.cancel()
		}
		e.mu.Unlock()
		<-done
	}

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	if cerr := e.opts.Transport.Close(); cerr != nil {
		logger.LogEvent(ctx, logger.Chat, slog.LevelWarn, "chat.close",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(cerr.Error(), 256)),
		)
	}
	logger.LogEvent(ctx, logger.Poll, slog.LevelInfo, "engine.stopped",
		slog.String("status", "ok"),
		slog.Uint64("cycles", e.stats.cycles.Load()),
	)
	return err
}

// Run starts the engine and blocks until ctx is done, then shuts down within ShutdownTimeout.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
