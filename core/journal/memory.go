package journal

import (
	"context"
	"sync"
)

// Memory keeps the newest results in process memory.
type Memory struct {
	mu      sync.Mutex
	limit   int
	results []Result
}

// NewMemory constructs a Memory journal holding at most limit results (0 = 1000).
func NewMemory(limit int) *Memory {
	if limit <= 0 {
		limit = 1000
	}
	return &Memory{limit: limit}
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, r Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	if over := len(m.results) - m.limit; over > 0 {
		m.results = append([]Result(nil), m.results[over:]...)
	}
	return nil
}

// Recent implements Recorder.
func (m *Memory) Recent(_ context.Context, limit int) ([]Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.results) {
		limit = len(m.results)
	}
	out := make([]Result, 0, limit)
	for i := len(m.results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.results[i])
	}
	return out, nil
}
