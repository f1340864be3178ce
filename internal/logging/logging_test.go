package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json format emits json records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, "info", "json")
		logger.Info("hello", "key", "value")

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("expected a json record, got %q: %v", buf.String(), err)
		}
		if record["msg"] != "hello" || record["key"] != "value" {
			t.Fatalf("unexpected record: %v", record)
		}
	})

	t.Run("level filters lower records", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, "warn", "text")
		logger.Info("dropped")
		logger.Warn("kept")

		out := buf.String()
		if strings.Contains(out, "dropped") {
			t.Fatalf("expected info to be filtered at warn level: %q", out)
		}
		if !strings.Contains(out, "kept") {
			t.Fatalf("expected warn to pass: %q", out)
		}
	})

	t.Run("unknown settings fall back to info text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger := New(&buf, "verbose", "xml")
		logger.Debug("dropped")
		logger.Info("kept")

		if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
			t.Fatalf("unexpected fallback behaviour: %q", buf.String())
		}
	})
}

func TestComponent(t *testing.T) {
	t.Parallel()

	t.Run("prefers a context carried logger", func(t *testing.T) {
		t.Parallel()

		var ctxBuf, baseBuf bytes.Buffer
		ctxLogger := New(&ctxBuf, "info", "text")
		base := New(&baseBuf, "info", "text")

		ctx := ContextWithLogger(context.Background(), ctxLogger)
		Component(ctx, base, "Cache", "Hydrate").Info("ping")

		if ctxBuf.Len() == 0 {
			t.Fatal("expected the context logger to receive the record")
		}
		if baseBuf.Len() != 0 {
			t.Fatalf("expected the base logger to stay silent, got %q", baseBuf.String())
		}
	})

	t.Run("annotates component and operation", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		base := New(&buf, "info", "json")
		Component(context.Background(), base, "Session", "Login", "user", "alice").Info("ping")

		var record map[string]any
		if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
			t.Fatalf("failed to decode record: %v", err)
		}
		if record["component"] != "Session" || record["operation"] != "Login" || record["user"] != "alice" {
			t.Fatalf("unexpected record: %v", record)
		}
	})

	t.Run("survives a bare context and nil base", func(t *testing.T) {
		t.Parallel()

		if logger := Component(context.Background(), nil, "Cache", ""); logger == nil {
			t.Fatal("expected a usable logger")
		}
		if got := FromContext(context.Background()); got != nil {
			t.Fatalf("expected no logger on a bare context, got %v", got)
		}
	})
}
