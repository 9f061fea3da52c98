package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m3rciful/rocketbot/core/session"
)

var fixedNow = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine(opts ...Option) (*Engine, *session.Store) {
	store := session.NewStore()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(store, opts...), store
}

func mustStart(t *testing.T, e *Engine, kind session.Kind) {
	t.Helper()
	if _, err := e.Start(context.Background(), "user", "room", kind); err != nil {
		t.Fatalf("start %s: %v", kind, err)
	}
}

func advance(t *testing.T, e *Engine, input string) Reply {
	t.Helper()
	reply, err := e.Advance(context.Background(), "user", input)
	if err != nil {
		t.Fatalf("advance %q: %v", input, err)
	}
	return reply
}

func TestStartRejectsSecondSession(t *testing.T) {
	e, store := newTestEngine()
	mustStart(t, e, KindReport)
	_, err := e.Start(context.Background(), "user", "room", KindRoutePlan)
	if !errors.Is(err, session.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	sess, _ := store.Get("user")
	if sess.Kind != KindReport || sess.State != StateAwaitingReportType {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestStartUnknownKind(t *testing.T) {
	e, _ := newTestEngine()
	if _, err := e.Start(context.Background(), "user", "room", "nope"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestAdvanceWithoutSession(t *testing.T) {
	e, _ := newTestEngine()
	if _, err := e.Advance(context.Background(), "user", "hi"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestCancelFromEveryState(t *testing.T) {
	for _, kind := range Kinds() {
		def, _ := definitionFor(kind)
		for st := range def.Steps {
			for _, word := range []string{"cancel", "CANCEL", "Отмена"} {
				e, store := newTestEngine(WithCancelKeywords("cancel", "отмена"))
				mustStart(t, e, kind)
				store.Update("user", func(s *session.Session) { s.State = st })

				reply := advance(t, e, word)
				if !reply.Done() || reply.Text != cancelReply {
					t.Fatalf("%s/%s/%s: reply = %+v", kind, st, word, reply)
				}
				if store.Has("user") {
					t.Fatalf("%s/%s: session must be deleted after cancel", kind, st)
				}
			}
		}
	}
}

func TestRoutePlan(t *testing.T) {
	var got []Completion
	e, store := newTestEngine(WithCompletionHook(func(_ context.Context, c Completion) {
		got = append(got, c)
	}))
	mustStart(t, e, KindRoutePlan)

	for _, bad := range []string{"15-01-2025 01-01-2025", "tomorrow later", "01-01-2025", "32-01-2025 01-02-2025"} {
		reply := advance(t, e, bad)
		if reply.State != StateAwaitingDates || reply.Text == "" {
			t.Fatalf("%q: expected re-prompt, got %+v", bad, reply)
		}
	}

	reply := advance(t, e, "01-01-2025 15-01-2025")
	if reply.State != StateAwaitingDetails {
		t.Fatalf("expected awaiting_details, got %+v", reply)
	}
	sess, _ := store.Get("user")
	if sess.Data["date_from"] != "01-01-2025" || sess.Data["date_to"] != "15-01-2025" {
		t.Fatalf("dates not stored: %+v", sess.Data)
	}
	if !sess.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("updated at = %v", sess.UpdatedAt)
	}

	reply = advance(t, e, "Москва - Казань поездом")
	if !reply.Done() || !strings.Contains(reply.Text, "Москва - Казань поездом") {
		t.Fatalf("unexpected completion %+v", reply)
	}
	if store.Has("user") {
		t.Fatal("session must be removed on completion")
	}
	if len(got) != 1 || got[0].Kind != KindRoutePlan || got[0].Data["details"] != "Москва - Казань поездом" {
		t.Fatalf("completion hook = %+v", got)
	}
}

func TestRoutePlanSameDayAndSeparators(t *testing.T) {
	e, _ := newTestEngine()
	mustStart(t, e, KindRoutePlan)
	if reply := advance(t, e, "01.02.2025 01/02/2025"); reply.State != StateAwaitingDetails {
		t.Fatalf("equal dates with mixed separators should pass, got %+v", reply)
	}
}

func TestReportRequest(t *testing.T) {
	cases := []struct {
		input string
		want  session.State
	}{
		{"1", session.StateComplete},
		{"2", session.StateComplete},
		{"3", StateAwaitingCustomParams},
		{"9", StateAwaitingReportType},
		{"daily", StateAwaitingReportType},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			e, store := newTestEngine()
			mustStart(t, e, KindReport)
			reply := advance(t, e, tc.input)
			if reply.State != tc.want {
				t.Fatalf("state = %s, want %s", reply.State, tc.want)
			}
			if store.Has("user") == (tc.want == session.StateComplete) {
				t.Fatalf("session presence mismatch for %s", tc.want)
			}
		})
	}

	e, _ := newTestEngine()
	mustStart(t, e, KindReport)
	advance(t, e, "3")
	if reply := advance(t, e, "за март, в xlsx"); !reply.Done() {
		t.Fatalf("custom params should complete, got %+v", reply)
	}
}

func TestDBCheck(t *testing.T) {
	e, store := newTestEngine()
	mustStart(t, e, KindDBCheck)

	if reply := advance(t, e, "4"); reply.State != StateAwaitingSearchType {
		t.Fatalf("invalid type should re-prompt, got %+v", reply)
	}
	if reply := advance(t, e, "2"); reply.State != StateAwaitingSearchValue {
		t.Fatalf("got %+v", reply)
	}
	if reply := advance(t, e, "Отдел логистики"); reply.State != StateAwaitingFile {
		t.Fatalf("got %+v", reply)
	}
	if reply := advance(t, e, "export.xlsx"); reply.State != StateAwaitingFile {
		t.Fatalf("wrong extension should re-prompt, got %+v", reply)
	}
	reply := advance(t, e, "export.CSV")
	if !reply.Done() || !strings.Contains(reply.Text, "department") {
		t.Fatalf("got %+v", reply)
	}
	if store.Len() != 0 {
		t.Fatal("session should be gone")
	}
}

func TestScheduleMeeting(t *testing.T) {
	e, _ := newTestEngine()
	mustStart(t, e, KindSchedule)

	if reply := advance(t, e, " , ,"); reply.State != StateAwaitingParticipants {
		t.Fatalf("empty participants should re-prompt, got %+v", reply)
	}
	if reply := advance(t, e, "Анна, Борис"); reply.State != StateAwaitingDate {
		t.Fatalf("got %+v", reply)
	}
	if reply := advance(t, e, "09-01-2025 10:00"); reply.State != StateAwaitingDate {
		t.Fatalf("past date should re-prompt, got %+v", reply)
	}
	if reply := advance(t, e, "10-01-2025 12:00"); reply.State != StateAwaitingDate {
		t.Fatalf("current instant is not in the future, got %+v", reply)
	}
	if reply := advance(t, e, "not a date"); reply.State != StateAwaitingDate {
		t.Fatalf("garbage should re-prompt, got %+v", reply)
	}
	if reply := advance(t, e, "11-01-2025 09:30"); reply.State != StateAwaitingTopic {
		t.Fatalf("future date should advance, got %+v", reply)
	}
	reply := advance(t, e, "Планирование")
	if !reply.Done() || !strings.Contains(reply.Text, "11-01-2025 09:30") || !strings.Contains(reply.Text, "Анна, Борис") {
		t.Fatalf("got %+v", reply)
	}
}

func TestAbort(t *testing.T) {
	e, _ := newTestEngine()
	mustStart(t, e, KindSchedule)
	if !e.Abort(context.Background(), "user") {
		t.Fatal("abort should remove the session")
	}
	if e.Active("user") {
		t.Fatal("session still active")
	}
}

func TestDefinitionsAreClosed(t *testing.T) {
	for _, kind := range Kinds() {
		def, ok := definitionFor(kind)
		if !ok || def.Kind != kind {
			t.Fatalf("missing definition for %s", kind)
		}
		if _, ok := def.Steps[def.Initial]; !ok {
			t.Fatalf("%s: initial state has no step", kind)
		}
		if _, ok := def.Steps[session.StateComplete]; ok {
			t.Fatalf("%s: terminal state must not have a step", kind)
		}
	}
}
