package session

import (
	"errors"
	"time"
)

// ErrExists is returned when a sender already owns an active session.
var ErrExists = errors.New("session: sender already has an active session")

// Kind identifies which dialog state machine owns a session.
type Kind string

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateComplete is the reserved terminal state; sessions reaching it are removed.
	StateComplete State = "complete"
)

// Session stores conversation state and accumulated data for a sender.
type Session struct {
	Sender    string
	Kind      Kind
	State     State
	Data      map[string]string
	Room      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy so callers never share the stored map.
func (s Session) Clone() Session {
	out := s
	out.Data = make(map[string]string, len(s.Data))
	for k, v := range s.Data {
		out.Data[k] = v
	}
	return out
}

// Age reports how old the session is at now. With sliding set the age is
// measured from the last turn, otherwise from creation.
func (s Session) Age(now time.Time, sliding bool) time.Duration {
	if sliding && !s.UpdatedAt.IsZero() {
		return now.Sub(s.UpdatedAt)
	}
	return now.Sub(s.CreatedAt)
}
