package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/rocketbot/core/chat"
	"github.com/m3rciful/rocketbot/core/commands"
	coreconfig "github.com/m3rciful/rocketbot/core/config"
	coredatabase "github.com/m3rciful/rocketbot/core/database"
	"github.com/m3rciful/rocketbot/core/dialog"
	"github.com/m3rciful/rocketbot/core/journal"
	"github.com/m3rciful/rocketbot/core/router"
)

type nopTransport struct{}

func (nopTransport) Name() string                                         { return "nop" }
func (nopTransport) Connect(context.Context) (chat.Identity, error)       { return chat.Identity{}, nil }
func (nopTransport) ListDirectRooms(context.Context) ([]chat.Room, error) { return nil, nil }
func (nopTransport) FetchRecentMessages(context.Context, string, int) ([]chat.Message, error) {
	return nil, nil
}
func (nopTransport) SendMessage(context.Context, string, string) error { return nil }
func (nopTransport) Close() error                                      { return nil }

func testConfig(t *testing.T) *coreconfig.Config {
	t.Helper()
	cfg := &coreconfig.Config{Chat: coreconfig.ChatConfig{ServerURL: "http://chat.local", UserID: "u", AuthToken: "t"}}
	if err := coreconfig.Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

func baseOptions(cfg *coreconfig.Config) Options {
	return Options{
		Config:     cfg,
		LoggerInit: func(*coreconfig.Config) error { return nil },
		Transport:  func(*coreconfig.Config) (chat.Transport, error) { return nopTransport{}, nil },
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if _, err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRunStopsOnLoggerFailure(t *testing.T) {
	opts := baseOptions(testConfig(t))
	opts.LoggerInit = func(*coreconfig.Config) error { return errors.New("no disk") }
	if _, err := Run(context.Background(), opts); err == nil || !strings.Contains(err.Error(), "logger init") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunPropagatesDatabaseFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Host = "db.local"
	opts := baseOptions(cfg)
	opts.Connect = func(context.Context, coredatabase.Config) (*sqlx.DB, error) { return nil, errors.New("refused") }
	if _, err := Run(context.Background(), opts); err == nil || !strings.Contains(err.Error(), "database initialization") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunWiresInMemoryApp(t *testing.T) {
	app, err := Run(context.Background(), baseOptions(testConfig(t)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer app.Close()

	if app.DB != nil {
		t.Fatal("database must stay closed without a host")
	}
	if _, ok := app.Journal.(*journal.Memory); !ok {
		t.Fatalf("journal = %T, want in-memory", app.Journal)
	}
	for _, name := range []string{"help", "hello", "calc", "route", "report", "dbcheck", "meeting"} {
		if _, _, ok := app.Registry.LookupCommand(name); !ok {
			t.Fatalf("command %q not registered", name)
		}
	}
	if app.HTTP != nil {
		t.Fatal("http must be disabled without a listen address")
	}
}

func TestCompletedDialogIsJournaled(t *testing.T) {
	app, err := Run(context.Background(), baseOptions(testConfig(t)))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer app.Close()

	ctx := context.Background()
	req := commands.Request{MessageID: "m1", Sender: "alice", Room: "r1", Text: "report"}
	if reply := app.Dispatcher.Dispatch(ctx, req); reply == "" {
		t.Fatal("report should start a dialog")
	}
	req.MessageID, req.Text = "m2", "1"
	if reply := app.Dispatcher.Dispatch(ctx, req); reply == "" {
		t.Fatal("report choice should be answered")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		results, err := app.Journal.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(results) == 1 {
			if results[0].Kind != "report" || results[0].Data["report_type"] != "daily" {
				t.Fatalf("result = %+v", results[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("completion was not journaled")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCustomModules(t *testing.T) {
	opts := baseOptions(testConfig(t))
	opts.Modules = []Module{ModuleFunc(func(reg *router.Registry, _ *dialog.Engine) {
		reg.RegisterCommand("ping", commands.Command{
			Handler: func(context.Context, *commands.Request) (string, error) { return "pong", nil },
		})
	})}
	app, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	defer app.Close()

	if app.Registry.Len() != 1 {
		t.Fatalf("registry len = %d", app.Registry.Len())
	}
	if got := app.Dispatcher.Dispatch(context.Background(), commands.Request{MessageID: "m", Sender: "s", Room: "r", Text: "ping"}); got != "pong" {
		t.Fatalf("reply = %q", got)
	}
}
