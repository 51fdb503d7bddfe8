package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, "debug", "json")
	l.Debug("staged", slog.String("id", "abc"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected json output, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "staged" || rec["id"] != "abc" {
		t.Fatalf("unexpected record: %#v", rec)
	}
}

func TestNewTextRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := New(&buf, "warn", "text")
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestContextLogger(t *testing.T) {
	t.Parallel()

	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Fatalf("expected context logger")
	}
	if FromContext(context.Background()) != L {
		t.Fatalf("expected global logger fallback")
	}
}
