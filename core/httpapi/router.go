// Package httpapi exposes a small read-only admin surface over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/m3rciful/rocketbot/core/buildinfo"
	"github.com/m3rciful/rocketbot/core/commands"
	"github.com/m3rciful/rocketbot/core/engine"
	"github.com/m3rciful/rocketbot/core/journal"
	"github.com/m3rciful/rocketbot/core/logger"
	cmdmiddleware "github.com/m3rciful/rocketbot/core/router/middleware"
)

const maxJournalLimit = 200

// StatsSource reports engine counters.
type StatsSource interface {
	Stats() engine.Stats
}

// CommandLister returns the registered commands.
type CommandLister interface {
	ListCommands(visibleOnly bool) []commands.Info
}

// UsageSource reports per-command counters.
type UsageSource interface {
	Snapshot() []cmdmiddleware.CommandCounts
}

// Deps are the read-only views served over HTTP. Nil fields disable their routes.
type Deps struct {
	Stats    StatsSource
	Commands CommandLister
	Usage    UsageSource
	Journal  journal.Recorder
}

// NewRouter wires the admin routes.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(accessLog)

	r.Get("/healthz", handleHealth(deps.Stats))
	if deps.Stats != nil {
		r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, deps.Stats.Stats())
		})
	}
	if deps.Commands != nil {
		r.Get("/commands", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, deps.Commands.ListCommands(true))
		})
	}
	if deps.Usage != nil {
		r.Get("/stats/commands", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, deps.Usage.Snapshot())
		})
	}
	if deps.Journal != nil {
		r.Get("/journal", handleJournal(deps.Journal))
	}
	return r
}

func handleHealth(stats StatsSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		body := map[string]any{
			"status":  "ok",
			"version": buildinfo.Version,
			"commit":  buildinfo.Commit,
		}
		if stats != nil && !stats.Stats().Running {
			status = http.StatusServiceUnavailable
			body["status"] = "stopped"
		}
		respondJSON(w, status, body)
	}
}

type resultView struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Sender      string            `json:"sender"`
	Room        string            `json:"room"`
	Data        map[string]string `json:"data"`
	CompletedAt time.Time         `json:"completed_at"`
}

func handleJournal(rec journal.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				respondError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxJournalLimit)
		}
		results, err := rec.Recent(r.Context(), limit)
		if err != nil {
			logger.LogEvent(r.Context(), logger.HTTP, slog.LevelError, "http.journal",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
			respondError(w, http.StatusInternalServerError, "journal unavailable")
			return
		}
		views := make([]resultView, 0, len(results))
		for _, res := range results {
			views = append(views, resultView{
				ID:          res.ID.String(),
				Kind:        res.Kind,
				Sender:      res.Sender,
				Room:        res.Room,
				Data:        res.Data,
				CompletedAt: res.CompletedAt,
			})
		}
		respondJSON(w, http.StatusOK, views)
	}
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		ctx := logger.WithRID(r.Context(), middleware.GetReqID(r.Context()))
		logger.LogEvent(ctx, logger.HTTP, level, "http.request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("code", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", logger.Took(start)),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.LogEvent(context.Background(), logger.HTTP, slog.LevelWarn, "http.encode",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
