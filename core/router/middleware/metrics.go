package middleware

import (
	"context"
	"sort"
	"sync"

	"github.com/m3rciful/rocketbot/core/commands"
)

// CommandCounts is the tally for one command.
type CommandCounts struct {
	Command string `json:"command"`
	Calls   uint64 `json:"calls"`
	Replies uint64 `json:"replies"`
	Errors  uint64 `json:"errors"`
}

// Metrics counts handled requests per resolved command.
// Requests that matched no command are counted under "unknown".
type Metrics struct {
	mu     sync.Mutex
	counts map[string]*CommandCounts
}

// NewMetrics returns an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{counts: make(map[string]*CommandCounts)}
}

// Middleware records the outcome once the inner handler has resolved req.Command.
func (m *Metrics) Middleware(next commands.HandlerFunc) commands.HandlerFunc {
	return func(ctx context.Context, req *commands.Request) (string, error) {
		reply, err := next(ctx, req)
		if req == nil {
			return reply, err
		}
		name := req.Command
		if name == "" {
			name = "unknown"
		}

		m.mu.Lock()
		c, ok := m.counts[name]
		if !ok {
			c = &CommandCounts{Command: name}
			m.counts[name] = c
		}
		c.Calls++
		if err != nil {
			c.Errors++
		} else if reply != "" {
			c.Replies++
		}
		m.mu.Unlock()
		return reply, err
	}
}

// Snapshot returns the counters sorted by command name.
func (m *Metrics) Snapshot() []CommandCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CommandCounts, 0, len(m.counts))
	for _, c := range m.counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}
