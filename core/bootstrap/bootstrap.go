package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/rocketbot/core/chat"
	"github.com/m3rciful/rocketbot/core/chat/netutil"
	"github.com/m3rciful/rocketbot/core/chat/rocketchat"
	"github.com/m3rciful/rocketbot/core/chat/sender"
	"github.com/m3rciful/rocketbot/core/chat/telegram"
	"github.com/m3rciful/rocketbot/core/commands"
	coreconfig "github.com/m3rciful/rocketbot/core/config"
	coredatabase "github.com/m3rciful/rocketbot/core/database"
	"github.com/m3rciful/rocketbot/core/dedup"
	"github.com/m3rciful/rocketbot/core/dialog"
	"github.com/m3rciful/rocketbot/core/engine"
	"github.com/m3rciful/rocketbot/core/httpapi"
	"github.com/m3rciful/rocketbot/core/journal"
	"github.com/m3rciful/rocketbot/core/logger"
	"github.com/m3rciful/rocketbot/core/router"
	"github.com/m3rciful/rocketbot/core/router/middleware"
	"github.com/m3rciful/rocketbot/core/session"
)

// journalKey serializes journal writes on a single sender worker.
const journalKey = "journal"

// Options control the bootstrap pipeline. Nil hooks fall back to the real implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
	// Transport overrides the backend selected by chat.transport.
	Transport func(*coreconfig.Config) (chat.Transport, error)
	// Modules register commands; nil installs DefaultModules.
	Modules []Module
}

// App exposes the wired components.
type App struct {
	Config     *coreconfig.Config
	DB         *sqlx.DB
	Journal    journal.Recorder
	Sessions   *session.Store
	Dedup      *dedup.Tracker
	Dialogs    *dialog.Engine
	Registry   *router.Registry
	Dispatcher *router.Dispatcher
	Metrics    *middleware.Metrics
	Sender     *sender.Dispatcher
	Engine     *engine.Engine
	HTTP       *httpapi.Server
}

// Run initializes the logger, the optional journal database, and every runtime component.
func Run(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	app := &App{Config: cfg}
	if err := app.openJournal(ctx, opts); err != nil {
		return nil, err
	}

	buildTransport := opts.Transport
	if buildTransport == nil {
		buildTransport = NewTransport
	}
	transport, err := buildTransport(cfg)
	if err != nil {
		app.closeDB()
		return nil, fmt.Errorf("bootstrap: transport: %w", err)
	}

	app.Sender = sender.NewDispatcher(sender.Options{
		QueueSize:    cfg.Sender.QueueSize,
		Workers:      cfg.Sender.Workers,
		MaxRetries:   cfg.Sender.MaxRetries,
		RetryBackoff: time.Duration(cfg.Sender.RetryBackoffMS) * time.Millisecond,
	})

	app.Sessions = session.NewStore()
	app.Dedup = dedup.NewTracker(cfg.Dedup.MaxEntries)
	app.Dialogs = dialog.NewEngine(app.Sessions,
		dialog.WithCancelKeywords(cfg.Session.CancelKeywords...),
		dialog.WithCompletionHook(app.recordCompletion),
	)

	app.Registry = router.NewRegistry()
	modules := opts.Modules
	if modules == nil {
		modules = DefaultModules()
	}
	for _, m := range modules {
		m.Register(app.Registry, app.Dialogs)
	}

	app.Metrics = middleware.NewMetrics()
	app.Dispatcher = router.NewDispatcher(app.Registry, app.Dialogs, router.Options{
		Middlewares: []commands.MiddlewareFunc{
			middleware.LoggerMiddleware,
			app.Metrics.Middleware,
			middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			}),
		},
	})

	app.Engine, err = engine.New(engine.Options{
		Transport:       transport,
		Dispatcher:      app.Dispatcher,
		Sessions:        app.Sessions,
		Dedup:           app.Dedup,
		Sender:          app.Sender,
		Interval:        cfg.PollInterval(),
		FetchCount:      cfg.Poll.FetchCount,
		Pacing:          cfg.PollPacing(),
		MaxConcurrency:  cfg.Poll.MaxConcurrency,
		SkipBacklog:     cfg.Poll.SkipBacklog == nil || *cfg.Poll.SkipBacklog,
		TTL:             cfg.SessionTTL(),
		SweepInterval:   cfg.SweepInterval(),
		SlidingTTL:      cfg.Session.SlidingTTL,
		ShutdownTimeout: time.Duration(cfg.Poll.ShutdownTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		app.Sender.Close()
		app.closeDB()
		return nil, fmt.Errorf("bootstrap: engine: %w", err)
	}

	if cfg.HTTP.Listen != "" {
		app.HTTP, err = httpapi.Listen(cfg.HTTP.Listen, httpapi.NewRouter(httpapi.Deps{
			Stats:    app.Engine,
			Commands: app.Registry,
			Usage:    app.Metrics,
			Journal:  app.Journal,
		}))
		if err != nil {
			app.Sender.Close()
			app.closeDB()
			return nil, fmt.Errorf("bootstrap: http listen: %w", err)
		}
	}

	logger.LogEvent(ctx, logger.L, slog.LevelInfo, "bootstrap.ready",
		slog.String("status", "ok"),
		slog.String("transport", transport.Name()),
		slog.Int("commands", app.Registry.Len()),
		slog.Bool("journal_db", app.DB != nil),
		slog.Bool("http", app.HTTP != nil),
	)
	return app, nil
}

func (a *App) openJournal(ctx context.Context, opts Options) error {
	if !a.Config.Database.Enabled() {
		a.Journal = journal.NewMemory(0)
		return nil
	}
	dbCfg := coredatabase.FromCore(a.Config.Database)

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, dbCfg); err != nil {
		_ = db.Close()
		return fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	a.DB = db
	a.Journal = journal.NewPostgres(db)
	return nil
}

// recordCompletion hands the result to the sender queue so the dialog reply is not held up by storage.
func (a *App) recordCompletion(ctx context.Context, c dialog.Completion) {
	res := journal.FromCompletion(c)
	err := a.Sender.Enqueue(ctx, journalKey, "journal_record", func(ctx context.Context) error {
		return a.Journal.Record(ctx, res)
	})
	if err != nil {
		logger.LogEvent(ctx, logger.Journal, slog.LevelWarn, "journal.enqueue",
			slog.String("status", "fail"),
			slog.String("dialog", res.Kind),
			slog.String("err", err.Error()),
		)
	}
}

// Close releases the sender queue and the database. The engine must be stopped first.
func (a *App) Close() {
	if a.Sender != nil {
		a.Sender.Close()
	}
	a.closeDB()
}

func (a *App) closeDB() {
	if a.DB != nil {
		_ = a.DB.Close()
		a.DB = nil
	}
}

// NewTransport builds the chat backend selected by chat.transport.
func NewTransport(cfg *coreconfig.Config) (chat.Transport, error) {
	switch cfg.Chat.Transport {
	case coreconfig.TransportRocketChat, "":
		return rocketchat.New(rocketchat.Options{
			ServerURL: cfg.Chat.ServerURL,
			User:      cfg.Chat.User,
			Password:  cfg.Chat.Password,
			UserID:    cfg.Chat.UserID,
			AuthToken: cfg.Chat.AuthToken,
		}), nil
	case coreconfig.TransportTelegram:
		return telegram.New(telegram.Options{
			Token: cfg.Telegram.Token,
			Poller: telegram.PollerOptions{
				RunMode:                cfg.Telegram.RunMode,
				LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
				Webhook: telegram.WebhookOptions{
					Listen: cfg.Webhook.Listen,
					Port:   cfg.Webhook.Port,
					URL:    cfg.Webhook.URL,
				},
			},
			BufferSize: cfg.Telegram.BufferSize,
			HTTPClient: netutil.BuildHTTPClient(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown chat transport %q", cfg.Chat.Transport)
	}
}
