// Package journal records the results of completed dialogs.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/rocketbot/core/dialog"
)

// Result is one completed dialog.
type Result struct {
	ID          uuid.UUID
	Kind        string
	Sender      string
	Room        string
	Data        map[string]string
	CompletedAt time.Time
}

// Recorder persists results. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, r Result) error
	// Recent returns up to limit results, newest first.
	Recent(ctx context.Context, limit int) ([]Result, error)
}

// FromCompletion converts a dialog completion into a Result with a fresh id.
func FromCompletion(c dialog.Completion) Result {
	data := make(map[string]string, len(c.Data))
	for k, v := range c.Data {
		data[k] = v
	}
	return Result{
		ID:          uuid.New(),
		Kind:        string(c.Kind),
		Sender:      c.Sender,
		Room:        c.Room,
		Data:        data,
		CompletedAt: c.CompletedAt.UTC(),
	}
}
