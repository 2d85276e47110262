package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range testCases {
		if got := parseLevel(tc.input); got != tc.expected {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "json", "info")

	logger.Info("run_started", "scenario", "baseline", "repetition", 1)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["msg"] != "run_started" {
		t.Errorf("msg = %v, want run_started", entry["msg"])
	}
	if entry["scenario"] != "baseline" {
		t.Errorf("scenario = %v, want baseline", entry["scenario"])
	}
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "text", "warn")

	logger.Info("suppressed")
	logger.Warn("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Error("info should be filtered at warn level")
	}
	if !strings.Contains(out, "emitted") {
		t.Error("warn should pass at warn level")
	}
}

func TestNewWithWriter_UnknownFormatFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "xml", "info")

	logger.Info("run_started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err == nil {
		t.Errorf("unknown format should produce text, got JSON: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "run_started") {
		t.Errorf("output missing message: %s", buf.String())
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// Must swallow every level without panicking or reaching stderr.
	logger.Debug("dropped")
	logger.Error("dropped")

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("discard logger should not report info as enabled")
	}
}

func TestOpenProcessLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run1")

	f, err := OpenProcessLog(dir, "server.log")
	if err != nil {
		t.Fatalf("OpenProcessLog returned error: %v", err)
	}
	if _, err := f.WriteString("child output\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	// Reopening truncates: stale content from a previous run never leaks
	// into a new run's log.
	f, err = OpenProcessLog(dir, "server.log")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, "server.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("log should be truncated on open, got %q", data)
	}
}
