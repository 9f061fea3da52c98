package engine

import (
	"sync/atomic"
	"time"
)

type counters struct {
	cycles      atomic.Uint64
	lastRooms   atomic.Int64
	dispatched  atomic.Uint64
	duplicates  atomic.Uint64
	backlog     atomic.Uint64
	replies     atomic.Uint64
	listErrors  atomic.Uint64
	fetchErrors atomic.Uint64
	sendErrors  atomic.Uint64
	panics      atomic.Uint64
	expired     atomic.Uint64
}

// Stats is a point-in-time snapshot of engine counters.
type Stats struct {
	Running     bool      `json:"running"`
	StartedAt   time.Time `json:"started_at"`
	Cycles      uint64    `json:"cycles"`
	LastRooms   int64     `json:"last_rooms"`
	Dispatched  uint64    `json:"dispatched"`
	Duplicates  uint64    `json:"duplicates"`
	Backlog     uint64    `json:"backlog_skipped"`
	Replies     uint64    `json:"replies"`
	ListErrors  uint64    `json:"list_errors"`
	FetchErrors uint64    `json:"fetch_errors"`
	SendErrors  uint64    `json:"send_errors"`
	Panics      uint64    `json:"panics"`
	Expired     uint64    `json:"expired_sessions"`
	Sessions    int       `json:"active_sessions"`
	Tracked     int       `json:"tracked_messages"`
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Running:     e.running.Load(),
		StartedAt:   e.startedAt(),
		Cycles:      e.stats.cycles.Load(),
		LastRooms:   e.stats.lastRooms.Load(),
		Dispatched:  e.stats.dispatched.Load(),
		Duplicates:  e.stats.duplicates.Load(),
		Backlog:     e.stats.backlog.Load(),
		Replies:     e.stats.replies.Load(),
		ListErrors:  e.stats.listErrors.Load(),
		FetchErrors: e.stats.fetchErrors.Load(),
		SendErrors:  e.stats.sendErrors.Load(),
		Panics:      e.stats.panics.Load(),
		Expired:     e.stats.expired.Load(),
		Sessions:    e.opts.Sessions.Len(),
		Tracked:     e.opts.Dedup.Len(),
	}
}
