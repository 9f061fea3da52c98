package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// contextKey is a private type to avoid collisions in context.
type contextKey string

const (
	ctxRID       contextKey = "rid"
	ctxMessageID contextKey = "message_id"
	ctxSenderID  contextKey = "sender_id"
	ctxRoomID    contextKey = "room_id"
	ctxLogger    contextKey = "logger"
	ctxHandler   contextKey = "handler"
	ctxCycleID   contextKey = "cycle_id"
)

// WithLogger stores the provided slog.Logger in context for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext extracts slog.Logger from context or returns global default.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if v := ctx.Value(ctxLogger); v != nil {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// WithRID attaches request correlation id into context.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRID, rid)
}

// RIDFrom extracts rid from context if present.
func RIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxRID)
}

// WithMessageMeta attaches message, sender and room identifiers to context.
func WithMessageMeta(ctx context.Context, messageID, senderID, roomID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxMessageID, messageID)
	ctx = context.WithValue(ctx, ctxSenderID, senderID)
	ctx = context.WithValue(ctx, ctxRoomID, roomID)
	return ctx
}

// WithRoom attaches a room identifier to context.
func WithRoom(ctx context.Context, roomID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRoomID, roomID)
}

// WithCycle attaches the poll cycle correlation id.
func WithCycle(ctx context.Context, cycleID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if cycleID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxCycleID, cycleID)
}

// WithHandler stores handler identifier in context for downstream logs.
func WithHandler(ctx context.Context, handler string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

// HandlerFrom returns handler identifier from context if present.
func HandlerFrom(ctx context.Context) string {
	return stringValue(ctx, ctxHandler)
}

// MessageIDFrom extracts the chat message id from context.
func MessageIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxMessageID)
}

// SenderIDFrom extracts the sender identity from context.
func SenderIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxSenderID)
}

// RoomIDFrom extracts the room identifier from context.
func RoomIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxRoomID)
}

// CycleIDFrom extracts the poll cycle id from context.
func CycleIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxCycleID)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Sanitize trims non-printable runes from s to keep logs clean.
// It removes control characters (Unicode categories Cc, Cf) except for tab and newline.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	b := strings.Builder{}
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		if r == 0x7F {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeLimit applies Sanitize and limits the output length in runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	cleaned := Sanitize(s)
	r := []rune(cleaned)
	if len(r) <= max {
		return cleaned
	}
	return string(r[:max])
}

// BuildRID returns a correlation identifier in the format roomID:messageID.
func BuildRID(roomID, messageID string) string {
	return fmt.Sprintf("%s:%s", roomID, messageID)
}

// CompactRID shortens a roomID:messageID correlation id to its last 8 runes per segment.
// When the input does not match the expected format it is returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	if rid == "" {
		return ""
	}
	parts := strings.Split(rid, ":")
	if len(parts) != 2 {
		return rid
	}
	compact := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return rid
		}
		r := []rune(part)
		if len(r) > 8 {
			r = r[len(r)-8:]
		}
		compact = append(compact, string(r))
	}
	return strings.Join(compact, ".")
}
