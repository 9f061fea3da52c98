// Package dedup records chat message identifiers that were already handled.
package dedup

import (
	"container/list"
	"sync"
)

// Tracker is a set of processed message ids.
//
// With a zero limit ids are never evicted, which guarantees at-most-once
// processing for the process lifetime at the cost of unbounded growth.
// A positive limit evicts the oldest ids first.
type Tracker struct {
	mu    sync.Mutex
	limit int
	seen  map[string]*list.Element
	order *list.List
}

// NewTracker creates a Tracker keeping at most limit ids (0 = unbounded).
func NewTracker(limit int) *Tracker {
	if limit < 0 {
		limit = 0
	}
	return &Tracker{
		limit: limit,
		seen:  make(map[string]*list.Element),
		order: list.New(),
	}
}

// Seen reports whether id was already marked.
func (t *Tracker) Seen(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[id]
	return ok
}

// Mark records id as processed.
func (t *Tracker) Mark(id string) {
	t.MarkIfNew(id)
}

// MarkIfNew records id and reports true only for the first caller.
// The check and the insert happen under one lock.
func (t *Tracker) MarkIfNew(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = t.order.PushBack(id)
	if t.limit > 0 {
		for t.order.Len() > t.limit {
			oldest := t.order.Front()
			t.order.Remove(oldest)
			delete(t.seen, oldest.Value.(string))
		}
	}
	return true
}

// Len returns the number of tracked ids.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seen)
}
