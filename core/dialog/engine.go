package dialog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/rocketbot/core/logger"
	"github.com/m3rciful/rocketbot/core/session"
)

// ErrNoSession is returned by Advance when the sender has no active session.
var ErrNoSession = errors.New("dialog: no active session")

// ErrUnknownKind is returned when a kind has no transition table.
var ErrUnknownKind = errors.New("dialog: unknown kind")

const cancelReply = "Диалог отменён."

// Reply is the outcome of one turn.
type Reply struct {
	State session.State
	Text  string
}

// Done reports whether the session was closed by this turn.
func (r Reply) Done() bool { return r.State == session.StateComplete }

// Completion carries the data of a wizard that finished normally.
type Completion struct {
	Kind        session.Kind
	Sender      string
	Room        string
	Data        map[string]string
	StartedAt   time.Time
	CompletedAt time.Time
}

// CompletionFunc is invoked after a wizard reaches the terminal state.
// Cancelled and expired sessions do not trigger it.
type CompletionFunc func(ctx context.Context, c Completion)

// Engine advances sessions stored in a session.Store.
type Engine struct {
	store      *session.Store
	now        func() time.Time
	cancel     map[string]struct{}
	onComplete CompletionFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCancelKeywords replaces the cancel keywords. Matching ignores case.
func WithCancelKeywords(words ...string) Option {
	return func(e *Engine) {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				set[w] = struct{}{}
			}
		}
		if len(set) > 0 {
			e.cancel = set
		}
	}
}

// WithCompletionHook registers fn for normal completions.
func WithCompletionHook(fn CompletionFunc) Option {
	return func(e *Engine) { e.onComplete = fn }
}

// NewEngine constructs an Engine over store.
func NewEngine(store *session.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		cancel: map[string]struct{}{"cancel": {}},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Active reports whether the sender is in the middle of a dialog.
func (e *Engine) Active(sender string) bool {
	return e.store.Has(sender)
}

// IsCancel reports whether text is a cancel keyword.
func (e *Engine) IsCancel(text string) bool {
	_, ok := e.cancel[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// Start opens a session of the given kind and returns the opening prompt.
func (e *Engine) Start(ctx context.Context, sender, room string, kind session.Kind) (Reply, error) {
	def, ok := definitionFor(kind)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	err := e.store.Create(session.Session{
		Sender:    sender,
		Kind:      kind,
		State:     def.Initial,
		Data:      map[string]string{},
		Room:      room,
		CreatedAt: e.now(),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("start %s: %w", kind, err)
	}
	logger.LogEvent(ctx, logger.Dialog, slog.LevelInfo, "dialog.start",
		slog.String("dialog", string(kind)),
		slog.String("state", string(def.Initial)),
	)
	return Reply{State: def.Initial, Text: def.Intro + "\n" + e.cancelHint()}, nil
}

// Advance feeds one user input into the sender's session.
func (e *Engine) Advance(ctx context.Context, sender, input string) (Reply, error) {
	sess, ok := e.store.Get(sender)
	if !ok {
		return Reply{}, ErrNoSession
	}

	if e.IsCancel(input) {
		e.store.Delete(sender)
		logger.LogEvent(ctx, logger.Dialog, slog.LevelInfo, "dialog.cancel",
			slog.String("dialog", string(sess.Kind)),
			slog.String("state", string(sess.State)),
			slog.String("outcome", "cancelled"),
		)
		return Reply{State: session.StateComplete, Text: cancelReply}, nil
	}

	def, ok := definitionFor(sess.Kind)
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", ErrUnknownKind, sess.Kind)
	}
	step, ok := def.Steps[sess.State]
	if !ok {
		return Reply{}, fmt.Errorf("dialog %s: no step for state %q", sess.Kind, sess.State)
	}

	turn := &Turn{Text: strings.TrimSpace(input), Data: sess.Data, Now: e.now()}
	next, text := step(turn)

	attrs := []slog.Attr{
		slog.String("dialog", string(sess.Kind)),
		slog.String("state", string(sess.State)),
		slog.String("next_state", string(next)),
	}

	if next == session.StateComplete {
		e.store.Delete(sender)
		logger.LogEvent(ctx, logger.Dialog, slog.LevelInfo, "dialog.complete",
			append(attrs, slog.String("outcome", "completed"))...)
		if e.onComplete != nil {
			e.onComplete(ctx, Completion{
				Kind:        sess.Kind,
				Sender:      sender,
				Room:        sess.Room,
				Data:        turn.Data,
				StartedAt:   sess.CreatedAt,
				CompletedAt: turn.Now,
			})
		}
		return Reply{State: next, Text: text}, nil
	}

	updated := e.store.Update(sender, func(s *session.Session) {
		s.State = next
		s.Data = turn.Data
		s.UpdatedAt = turn.Now
	})
	if !updated {
		// Reaped between Get and Update.
		return Reply{}, ErrNoSession
	}
	if next == sess.State {
		attrs = append(attrs, slog.String("outcome", "skip"))
	}
	logger.LogEvent(ctx, logger.Dialog, slog.LevelDebug, "dialog.advance", attrs...)
	return Reply{State: next, Text: text}, nil
}

// Abort drops the sender's session after an internal failure.
func (e *Engine) Abort(ctx context.Context, sender string) bool {
	removed := e.store.Delete(sender)
	if removed {
		logger.LogEvent(ctx, logger.Dialog, slog.LevelWarn, "dialog.abort",
			slog.String("outcome", "fail"),
		)
	}
	return removed
}

func (e *Engine) cancelHint() string {
	words := make([]string, 0, len(e.cancel))
	for w := range e.cancel {
		words = append(words, w)
	}
	sort.Strings(words)
	return "Для отмены отправьте: " + strings.Join(words, " / ")
}
