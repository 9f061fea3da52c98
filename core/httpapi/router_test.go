package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/engine"
	"github.com/m3rciful/rocketbot/core/journal"
	cmdmiddleware "github.com/m3rciful/rocketbot/core/router/middleware"
)

type fixedStats struct{ s engine.Stats }

func (f fixedStats) Stats() engine.Stats { return f.s }

type staticCommands []commands.Info

func (c staticCommands) ListCommands(bool) []commands.Info { return c }

type brokenJournal struct{}

func (brokenJournal) Record(context.Context, journal.Result) error { return errors.New("down") }

func (brokenJournal) Recent(context.Context, int) ([]journal.Result, error) {
	return nil, errors.New("down")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthReflectsEngineState(t *testing.T) {
	h := NewRouter(Deps{Stats: fixedStats{engine.Stats{Running: true}}})
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("running engine: code %d", rec.Code)
	}

	h = NewRouter(Deps{Stats: fixedStats{engine.Stats{Running: false}}})
	rec := get(t, h, "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("stopped engine: code %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "stopped" {
		t.Fatalf("body = %v", body)
	}
}

func TestStatsAndCommands(t *testing.T) {
	h := NewRouter(Deps{
		Stats:    fixedStats{engine.Stats{Running: true, Cycles: 7, Sessions: 2}},
		Commands: staticCommands{{Name: "help", Description: "Список команд"}},
	})

	rec := get(t, h, "/stats")
	var st engine.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if st.Cycles != 7 || st.Sessions != 2 {
		t.Fatalf("stats = %+v", st)
	}

	rec = get(t, h, "/commands")
	var infos []commands.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &infos); err != nil {
		t.Fatalf("decode commands: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "help" {
		t.Fatalf("commands = %+v", infos)
	}
}

func TestJournalRoute(t *testing.T) {
	mem := journal.NewMemory(10)
	for i := 0; i < 3; i++ {
		_ = mem.Record(context.Background(), journal.Result{
			ID:          uuid.New(),
			Kind:        "report",
			Sender:      "alice",
			Data:        map[string]string{"report_type": "daily"},
			CompletedAt: time.Now(),
		})
	}
	h := NewRouter(Deps{Journal: mem})

	rec := get(t, h, "/journal?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("code %d", rec.Code)
	}
	var views []resultView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 || views[0].Data["report_type"] != "daily" {
		t.Fatalf("views = %+v", views)
	}

	if rec := get(t, h, "/journal?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: code %d", rec.Code)
	}
	if rec := get(t, NewRouter(Deps{Journal: brokenJournal{}}), "/journal"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("broken journal: code %d", rec.Code)
	}
}

func TestDisabledRoutes(t *testing.T) {
	h := NewRouter(Deps{})
	if rec := get(t, h, "/stats"); rec.Code != http.StatusNotFound {
		t.Fatalf("stats without source: code %d", rec.Code)
	}
	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz must always be served: code %d", rec.Code)
	}
}

func TestServerLifecycle(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", NewRouter(Deps{}))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("code %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("serve: %v", err)
	}
}

type fixedUsage []cmdmiddleware.CommandCounts

func (u fixedUsage) Snapshot() []cmdmiddleware.CommandCounts { return u }

func TestCommandUsageRoute(t *testing.T) {
	h := NewRouter(Deps{Usage: fixedUsage{{Command: "calc", Calls: 3, Replies: 3}}})
	rec := get(t, h, "/stats/commands")
	var counts []cmdmiddleware.CommandCounts
	if err := json.Unmarshal(rec.Body.Bytes(), &counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(counts) != 1 || counts[0].Command != "calc" || counts[0].Calls != 3 {
		t.Fatalf("counts = %+v", counts)
	}
}
