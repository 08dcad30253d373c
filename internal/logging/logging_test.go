package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf})

	log.With(String("dataset", "people")).Debug(context.Background(), "batch emitted",
		Int("records", 3),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "batch emitted" || rec["dataset"] != "people" || rec["records"] != float64(3) {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["error"] != "boom" {
		t.Fatalf("error field = %v, want boom", rec["error"])
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn not logged: %q", buf.String())
	}
}

func TestWithRunLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	ctx, log := WithRunLogger(context.Background(), base)
	id := RunIDFromContext(ctx)
	if len(id) != 36 {
		t.Fatalf("run id %q is not a UUID", id)
	}

	again, _ := EnsureRunID(ctx)
	if RunIDFromContext(again) != id {
		t.Fatalf("EnsureRunID replaced an existing id")
	}

	log.Info(ctx, "started")
	if !strings.Contains(buf.String(), id) {
		t.Fatalf("log line missing run id: %q", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on empty context")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("nil logger should be stored as Noop")
	}
}
