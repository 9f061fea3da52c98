package logger

import "strings"

type enum map[string]struct{}

func enumOf(values ...string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[v] = struct{}{}
	}
	return e
}

// normalize lowercases v and reports whether it belongs to the set.
func (e enum) normalize(v string) (string, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	_, ok := e[v]
	return v, ok && v != ""
}

var (
	statusValues  = enumOf("ok", "fail", "skip", "retry", "rate_limited", "cancelled", "duplicate")
	outcomeValues = enumOf("ok", "fail", "skip", "cancelled", "completed", "rate_limited")
)

// normalizeLevel renders slog level names the way dashboards expect them.
func normalizeLevel(level string) string {
	switch up := strings.ToUpper(strings.TrimSpace(level)); up {
	case "":
		return "INFO"
	case "WARNING":
		return "WARN"
	default:
		return up
	}
}

// defaultKeyOrder fixes the leading columns of every line. Keys not listed
// follow in alphabetical order.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status",
	"rid", "rid_full", "cycle_id", "ts_unix_nano",
	"message_id", "sender_id", "room_id",
	"handler", "dialog", "state", "next_state", "command", "outcome", "duration_ms",
	"rooms", "messages", "duplicates", "count", "sessions", "expired",
	"transport", "mode", "listen", "server_url", "http_code",
	"db", "host", "port",
	"err", "err_code", "cause", "retryable", "attempts", "backoff_ms", "rate_limited",
}
