package logger

import (
	"bytes"
	"strings"
	"testing"

	"log/slog"
)

func TestStructuredHandlerKVOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   buf,
		format:   formatKV,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(Background(), "rid-123")
	ctx = WithSessionKey(ctx, "sess-1")
	ctx = WithUpdateMeta(ctx, 7, 9)

	log := slog.New(handler).With("component", "flow")
	LogEvent(ctx, log, slog.LevelInfo, "test.event",
		slog.String("status", "ok"),
		slog.String("cause", "unit"),
	)

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatal("expected log line")
	}
	tokens := strings.Split(line, " ")
	expected := []string{"ts=", "level=INFO", "component=flow", "event=test.event", "status=ok", "rid=rid-123", "session_key=sess-1"}
	if len(tokens) < len(expected) {
		t.Fatalf("unexpected token count: %d (%s)", len(tokens), line)
	}
	for i, prefix := range expected {
		if !strings.HasPrefix(tokens[i], prefix) {
			t.Fatalf("token %d = %s, expected prefix %s", i, tokens[i], prefix)
		}
	}
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := newStructuredHandler(handlerConfig{
		level:    slog.LevelInfo,
		writer:   buf,
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
	})
	ctx := WithRID(Background(), "rid-json")

	log := slog.New(handler).With("component", "flow.registry")
	LogEvent(ctx, log, slog.LevelError, "session.failed",
		slog.String("status", "fail"),
		slog.String("err", "boom"),
	)

	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "{") {
		t.Fatalf("expected JSON, got %s", line)
	}
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"flow.registry"`, `"event":"session.failed"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		if idx == -1 || idx < pos {
			t.Fatalf("prefix %s not found in order within %s", pref, line)
		}
		pos = idx
	}
}

func TestStructuredHandlerLevelFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelWarn,
		writer: buf,
		format: formatKV,
	})
	log := slog.New(handler)
	LogEvent(Background(), log, slog.LevelInfo, "dropped.event")
	if buf.Len() != 0 {
		t.Fatalf("info line should be filtered, got %s", buf.String())
	}
	LogEvent(Background(), log, slog.LevelWarn, "kept.event")
	if !strings.Contains(buf.String(), "event=kept.event") {
		t.Fatalf("warn line missing: %s", buf.String())
	}
}

func TestSanitizeLimit(t *testing.T) {
	in := "abc\x00def\nghi"
	out := Sanitize(in)
	if out != "abcdef\nghi" {
		t.Fatalf("unexpected sanitize output: %q", out)
	}
	if got := SanitizeLimit("hello world", 5); got != "hello" {
		t.Fatalf("unexpected limit output: %q", got)
	}
	if got := SanitizeLimit("hi", 0); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}
