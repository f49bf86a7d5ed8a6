package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFieldsAndEventID(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf}).With(String("component", "test"))

	ctx := ContextWithEventID(context.Background(), "evt-1")
	log.Info(ctx, "classified", String("region", "kitchen"), Int("slot", 2), Err(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"msg":       "classified",
		"component": "test",
		"region":    "kitchen",
		"slot":      float64(2),
		"error":     "boom",
		"event_id":  "evt-1",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Fatalf("log field %s = %v, want %v (line %s)", k, rec[k], v, buf.String())
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info(context.Background(), "hidden")
	log.Warn(context.Background(), "shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("output = %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEventLoggerRoundTrip(t *testing.T) {
	base := Noop()
	ctx, l := WithEventLogger(context.Background(), base)
	id := EventIDFromContext(ctx)
	if len(id) != 16 {
		t.Fatalf("event id = %q, want 16 hex chars", id)
	}
	if LoggerFromContext(ctx, nil) != l {
		t.Fatalf("LoggerFromContext did not return the stored logger")
	}

	again, sameID := EnsureEventID(ctx)
	if sameID != id || EventIDFromContext(again) != id {
		t.Fatalf("EnsureEventID replaced existing id %q with %q", id, sameID)
	}
}

func TestLoggerFromContextFallback(t *testing.T) {
	fallback := New(Config{Output: &bytes.Buffer{}})
	if got := LoggerFromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("LoggerFromContext() did not return fallback")
	}
	if got := LoggerFromContext(context.Background(), nil); got == nil {
		t.Fatalf("LoggerFromContext(ctx, nil) = nil")
	}
}

func TestErrNil(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != "" {
		t.Fatalf("Err(nil) = %+v", f)
	}
}
