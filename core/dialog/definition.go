package dialog

import (
	"time"

	"github.com/m3rciful/rocketbot/core/session"
)

// Dialog kinds known to the engine.
const (
	KindRoutePlan session.Kind = "route_plan"
	KindReport    session.Kind = "report"
	KindDBCheck   session.Kind = "db_check"
	KindSchedule  session.Kind = "schedule"
)

// Turn is the input of a single transition.
type Turn struct {
	// Text is the trimmed user input.
	Text string
	// Data is a private copy of the session data; steps may write to it.
	Data map[string]string
	// Now is the engine clock reading for this turn.
	Now time.Time
}

// Set stores a value in the session data.
func (t *Turn) Set(key, value string) {
	if t.Data == nil {
		t.Data = make(map[string]string)
	}
	t.Data[key] = value
}

// StepFunc handles input for one state and returns the next state and reply.
// Returning the current state re-prompts.
type StepFunc func(t *Turn) (session.State, string)

// Definition describes one wizard.
type Definition struct {
	Kind    session.Kind
	Title   string
	Initial session.State
	Intro   string
	Steps   map[session.State]StepFunc
}

// definitionFor resolves the transition table for a kind.
func definitionFor(kind session.Kind) (Definition, bool) {
	switch kind {
	case KindRoutePlan:
		return routePlan, true
	case KindReport:
		return reportRequest, true
	case KindDBCheck:
		return dbCheck, true
	case KindSchedule:
		return scheduleMeeting, true
	default:
		return Definition{}, false
	}
}

// Kinds lists every dialog kind in a stable order.
func Kinds() []session.Kind {
	return []session.Kind{KindRoutePlan, KindReport, KindDBCheck, KindSchedule}
}
