package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	coreconfig "github.com/m3rciful/rocketbot/core/config"
)

func TestSelectLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{Level: raw}}
		if got := selectLevel(cfg); got != want {
			t.Fatalf("selectLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestSelectFormat(t *testing.T) {
	if selectFormat(nil) != formatJSON {
		t.Fatal("nil config defaults to JSON")
	}
	if selectFormat(&coreconfig.Config{Logging: coreconfig.LoggingConfig{Format: "text"}}) != formatKV {
		t.Fatal("text maps to kv")
	}
	if selectFormat(&coreconfig.Config{Logging: coreconfig.LoggingConfig{Profile: "dev"}}) != formatKV {
		t.Fatal("dev profile prefers kv")
	}
}

func TestSelectKeyOrder(t *testing.T) {
	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{KeysOrder: " ts, level ,,event"}}
	got := selectKeyOrder(cfg)
	if strings.Join(got, ",") != "ts,level,event" {
		t.Fatalf("order = %v", got)
	}
}

func TestParseDebugSample(t *testing.T) {
	cases := map[string][2]int{
		"":     {1, 50},
		"1/10": {1, 10},
		"off":  {0, 0},
		"0/5":  {1, 50},
	}
	for spec, want := range cases {
		num, den := parseDebugSample(&coreconfig.Config{Logging: coreconfig.LoggingConfig{DebugSample: spec}})
		if num != want[0] || den != want[1] {
			t.Fatalf("parseDebugSample(%q) = %d/%d", spec, num, den)
		}
	}
}

func TestLogEventFallsBackToContextLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	ctxLog := slog.New(newStructuredHandler(handlerConfig{writer: aw, format: formatKV})).With("component", "router")

	ctx := WithLogger(context.Background(), ctxLog)
	ctx = WithHandler(ctx, "calc")
	LogEvent(ctx, nil, slog.LevelInfo, "handler.done", slog.String("status", "ok"))
	drain(t, aw)

	line := buf.String()
	for _, want := range []string{"component=router", "event=handler.done", "handler=calc"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in %s", want, line)
		}
	}
}
