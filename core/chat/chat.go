// Package chat defines the transport contract the polling engine consumes.
package chat

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized reports rejected credentials. Connect failing with it is fatal.
var ErrUnauthorized = errors.New("chat: unauthorized")

// Identity is the authenticated bot account.
type Identity struct {
	UserID   string
	Username string
}

// Room is a direct-message conversation.
type Room struct {
	ID   string
	Name string
}

// Message is one inbound chat message.
type Message struct {
	ID         string
	Sender     string
	SenderName string
	Room       string
	Text       string
	Timestamp  time.Time
}

// Transport is an authenticated chat backend.
// Implementations never return messages authored by the bot itself.
type Transport interface {
	// Name identifies the backend in logs.
	Name() string
	Connect(ctx context.Context) (Identity, error)
	ListDirectRooms(ctx context.Context) ([]Room, error)
	// FetchRecentMessages returns up to count messages of a room in chronological order.
	FetchRecentMessages(ctx context.Context, roomID string, count int) ([]Message, error)
	SendMessage(ctx context.Context, roomID, text string) error
	Close() error
}
