package commands

import "context"

// Request is an inbound chat message routed to a handler.
type Request struct {
	MessageID  string
	Sender     string
	SenderName string
	Room       string
	Text       string
	// Command is the canonical command name; empty for dialog turns.
	Command string
	Args    []string
}

// HandlerFunc answers a request. An empty reply sends nothing.
type HandlerFunc func(ctx context.Context, req *Request) (string, error)

// MiddlewareFunc wraps a HandlerFunc.
type MiddlewareFunc func(HandlerFunc) HandlerFunc

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     HandlerFunc
	Description string
	Hidden      bool
	Aliases     []string
}

// Info is the public description of a command used by help listings.
type Info struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases,omitempty"`
}

// Chain applies middlewares so that the first one is the outermost.
func Chain(h HandlerFunc, mws ...MiddlewareFunc) HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			h = mws[i](h)
		}
	}
	return h
}
