package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/m3rciful/rocketbot/core/chat"
	"github.com/m3rciful/rocketbot/core/chat/sender"
	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/session"
)

type fakeTransport struct {
	mu         sync.Mutex
	rooms      []chat.Room
	messages   map[string][]chat.Message
	connectErr error
	listErr    error
	fetchErr   map[string]error
	panicRoom  string
	fetchDelay time.Duration
	sent       []string
	closed     bool

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{messages: map[string][]chat.Message{}, fetchErr: map[string]error{}}
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Connect(context.Context) (chat.Identity, error) {
	if f.connectErr != nil {
		return chat.Identity{}, f.connectErr
	}
	return chat.Identity{UserID: "bot", Username: "rocketbot"}, nil
}

func (f *fakeTransport) ListDirectRooms(context.Context) ([]chat.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]chat.Room(nil), f.rooms...), nil
}

func (f *fakeTransport) FetchRecentMessages(ctx context.Context, roomID string, count int) ([]chat.Message, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		cur := f.maxInFlight.Load()
		if n <= cur || f.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.fetchDelay > 0 {
		time.Sleep(f.fetchDelay)
	}
	if roomID == f.panicRoom {
		panic("fetch exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[roomID]; err != nil {
		return nil, err
	}
	msgs := f.messages[roomID]
	if len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}
	return append([]chat.Message(nil), msgs...), nil
}

func (f *fakeTransport) SendMessage(_ context.Context, roomID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, roomID+"|"+text)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) addRoom(id string, msgs ...chat.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, chat.Room{ID: id})
	f.messages[id] = msgs
}

func (f *fakeTransport) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type echoDispatcher struct {
	mu   sync.Mutex
	reqs []commands.Request
}

func (d *echoDispatcher) Dispatch(_ context.Context, req commands.Request) string {
	d.mu.Lock()
	d.reqs = append(d.reqs, req)
	d.mu.Unlock()
	if req.Text == "unknown" {
		return ""
	}
	return "echo:" + req.Text
}

func (d *echoDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reqs)
}

type recordingSender struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSender) Enqueue(ctx context.Context, key, _ string, run sender.RunFunc) error {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return run(ctx)
}

func msg(id, room, text string) chat.Message {
	return chat.Message{ID: id, Sender: "user-" + room, Room: room, Text: text, Timestamp: time.Now()}
}

func newTestEngine(t *testing.T, tr *fakeTransport, d Dispatcher, mutate func(*Options)) *Engine {
	t.Helper()
	opts := Options{Transport: tr, Dispatcher: d}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(opts)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestCycleDispatchesEachMessageOnce(t *testing.T) {
	tr := newFakeTransport()
	tr.addRoom("r1", msg("m1", "r1", "hello"), msg("m2", "r1", "calc 2+2"))
	d := &echoDispatcher{}
	e := newTestEngine(t, tr, d, nil)

	e.cycle(context.Background())
	e.cycle(context.Background())

	if d.count() != 2 {
		t.Fatalf("dispatched %d, want 2", d.count())
	}
	sent := tr.sentMessages()
	if len(sent) != 2 || sent[0] != "r1|echo:hello" || sent[1] != "r1|echo:calc 2+2" {
		t.Fatalf("sent = %v", sent)
	}
	if st := e.Stats(); st.Duplicates != 2 || st.Cycles != 2 || st.Tracked != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestCycleStaysSilentOnEmptyReply(t *testing.T) {
	tr := newFakeTransport()
	tr.addRoom("r1", msg("m1", "r1", "unknown"), msg("m2", "r1", "   "))
	d := &echoDispatcher{}
	e := newTestEngine(t, tr, d, nil)

	e.cycle(context.Background())

	if d.count() != 1 {
		t.Fatalf("blank text must not be dispatched, got %d", d.count())
	}
	if sent := tr.sentMessages(); len(sent) != 0 {
		t.Fatalf("expected no replies, got %v", sent)
	}
}

func TestCycleRoutesRepliesThroughSender(t *testing.T) {
	tr := newFakeTransport()
	tr.addRoom("r1", msg("m1", "r1", "a"))
	tr.addRoom("r2", msg("m2", "r2", "b"))
	rs := &recordingSender{}
	e := newTestEngine(t, tr, &echoDispatcher{}, func(o *Options) { o.Sender = rs })

	e.cycle(context.Background())

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.keys) != 2 {
		t.Fatalf("enqueued %v", rs.keys)
	}
	seen := map[string]bool{}
	for _, k := range rs.keys {
		seen[k] = true
	}
	if !seen["r1"] || !seen["r2"] {
		t.Fatalf("replies must be keyed by room, got %v", rs.keys)
	}
}

func TestCycleSkipsBacklog(t *testing.T) {
	tr := newFakeTransport()
	old := msg("m0", "r1", "old")
	old.Timestamp = time.Now().Add(-time.Hour)
	tr.addRoom("r1", old, msg("m1", "r1", "new"))
	d := &echoDispatcher{}
	e := newTestEngine(t, tr, d, func(o *Options) { o.SkipBacklog = true })
	e.started = time.Now().Add(-time.Minute)

	e.cycle(context.Background())

	if d.count() != 1 || d.reqs[0].Text != "new" {
		t.Fatalf("expected only the new message, got %+v", d.reqs)
	}
	if st := e.Stats(); st.Backlog != 1 || st.Tracked != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestCycleSkipsOnListError(t *testing.T) {
	tr := newFakeTransport()
	tr.addRoom("r1", msg("m1", "r1", "hi"))
	tr.listErr = errors.New("list down")
	d := &echoDispatcher{}
	e := newTestEngine(t, tr, d, nil)

	e.cycle(context.Background())
	if d.count() != 0 || e.Stats().ListErrors != 1 {
		t.Fatalf("list failure must skip the cycle, dispatched=%d", d.count())
	}

	tr.mu.Lock()
	tr.listErr = nil
	tr.mu.Unlock()
	e.cycle(context.Background())
	if d.count() != 1 {
		t.Fatalf("next cycle should recover, dispatched=%d", d.count())
	}
}

func TestCycleIsolatesRoomFailures(t *testing.T) {
	tr := newFakeTransport()
	tr.addRoom("boom", msg("m1", "boom", "x"))
	tr.addRoom("bad", msg("m2", "bad", "y"))
	tr.addRoom("ok", msg("m3", "ok", "z"))
	tr.panicRoom = "boom"
	tr.fetchErr["bad"] = errors.New("history failed")
	d := &echoDispatcher{}
	e := newTestEngine(t, tr, d, nil)

	e.cycle(context.Background())

	if d.count() != 1 || d.reqs[0].Room != "ok" {
		t.Fatalf("healthy room must still be served, got %+v", d.reqs)
	}
	st := e.Stats()
	if st.Panics != 1 || st.FetchErrors != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestCycleBoundsConcurrency(t *testing.T) {
	tr := newFakeTransport()
	tr.fetchDelay = 20 * time.Millisecond
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("r%d", i)
		tr.addRoom(id, msg("m"+id, id, "hi"))
	}
	d := &echoDispatcher{}
	e := newTestEngine(t, tr, d, func(o *Options) { o.MaxConcurrency = 2 })

	e.cycle(context.Background())

	if got := tr.maxInFlight.Load(); got > 2 || got < 1 {
		t.Fatalf("max in flight = %d, want 1..2", got)
	}
	if d.count() != 8 {
		t.Fatalf("dispatched %d, want 8", d.count())
	}
}

func TestSweepExpiresSessions(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	store := session.NewStore()
	_ = store.Create(session.Session{Sender: "old", Room: "r1", Kind: "report", CreatedAt: now.Add(-10 * time.Minute)})
	_ = store.Create(session.Session{Sender: "new", Room: "r2", Kind: "report", CreatedAt: now.Add(-time.Minute)})

	e := newTestEngine(t, newFakeTransport(), &echoDispatcher{}, func(o *Options) {
		o.Sessions = store
		o.TTL = 5 * time.Minute
		o.Now = func() time.Time { return now }
	})

	if n := e.Sweep(context.Background()); n != 1 {
		t.Fatalf("expired %d, want 1", n)
	}
	if store.Has("old") || !store.Has("new") {
		t.Fatal("only the stale session should be removed")
	}
	if e.Stats().Expired != 1 {
		t.Fatalf("stats = %+v", e.Stats())
	}
}

func TestStartFailsOnUnauthorized(t *testing.T) {
	tr := newFakeTransport()
	tr.connectErr = chat.ErrUnauthorized
	e := newTestEngine(t, tr, &echoDispatcher{}, nil)

	err := e.Start(context.Background())
	if !errors.Is(err, chat.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if e.Running() {
		t.Fatal("engine must not run after a failed connect")
	}
}

func TestStartAndShutdown(t *testing.T) {
	tr := newFakeTransport()
	tr.addRoom("r1", msg("m1", "r1", "hi"))
	d := &echoDispatcher{}
	e := newTestEngine(t, tr, d, func(o *Options) { o.Interval = 10 * time.Millisecond })

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second start = %v", err)
	}
	if e.Identity().Username != "rocketbot" {
		t.Fatalf("identity = %+v", e.Identity())
	}

	deadline := time.Now().Add(2 * time.Second)
	for d.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.count() != 1 {
		t.Fatalf("dispatched %d, want 1", d.count())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if e.Running() {
		t.Fatal("engine still running")
	}
	tr.mu.Lock()
	closed := tr.closed
	tr.mu.Unlock()
	if !closed {
		t.Fatal("transport should be closed on shutdown")
	}
	if d.count() != 1 {
		t.Fatalf("message re-dispatched across cycles: %d", d.count())
	}
}
