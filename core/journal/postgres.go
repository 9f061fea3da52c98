package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/rocketbot/core/logger"
)

const (
	insertResultSQL = `INSERT INTO dialog_results (id, kind, sender_id, room_id, data, completed_at)
VALUES (:id, :kind, :sender_id, :room_id, :data, :completed_at)`
	recentResultsSQL = `SELECT id, kind, sender_id, room_id, data, completed_at
FROM dialog_results ORDER BY completed_at DESC LIMIT $1`
)

// Postgres stores results in the dialog_results table.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type resultRow struct {
	ID       uuid.UUID `db:"id"`
	Kind     string    `db:"kind"`
	SenderID string    `db:"sender_id"`
	RoomID   string    `db:"room_id"`
	// Data is JSON text; lib/pq would send []byte as bytea.
	Data        string    `db:"data"`
	CompletedAt time.Time `db:"completed_at"`
}

// Record implements Recorder.
func (p *Postgres) Record(ctx context.Context, r Result) error {
	start := time.Now()
	row, err := toRow(r)
	if err != nil {
		return err
	}
	if _, err := p.db.NamedExecContext(ctx, insertResultSQL, row); err != nil {
		logger.LogEvent(ctx, logger.Journal, slog.LevelError, "journal.record",
			slog.String("status", "fail"),
			slog.String("dialog", r.Kind),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("journal insert: %w", err)
	}
	logger.LogEvent(ctx, logger.Journal, slog.LevelInfo, "journal.record",
		slog.String("status", "ok"),
		slog.String("dialog", r.Kind),
		slog.String("result_id", r.ID.String()),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Recent implements Recorder.
func (p *Postgres) Recent(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []resultRow
	if err := p.db.SelectContext(ctx, &rows, recentResultsSQL, limit); err != nil {
		return nil, fmt.Errorf("journal select: %w", err)
	}
	out := make([]Result, 0, len(rows))
	for _, row := range rows {
		r, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func toRow(r Result) (resultRow, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	data := r.Data
	if data == nil {
		data = map[string]string{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return resultRow{}, fmt.Errorf("journal encode data: %w", err)
	}
	return resultRow{
		ID:          r.ID,
		Kind:        r.Kind,
		SenderID:    r.Sender,
		RoomID:      r.Room,
		Data:        string(raw),
		CompletedAt: r.CompletedAt,
	}, nil
}

func fromRow(row resultRow) (Result, error) {
	var data map[string]string
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &data); err != nil {
			return Result{}, fmt.Errorf("journal decode %s: %w", row.ID, err)
		}
	}
	return Result{
		ID:          row.ID,
		Kind:        row.Kind,
		Sender:      row.SenderID,
		Room:        row.RoomID,
		Data:        data,
		CompletedAt: row.CompletedAt,
	}, nil
}
