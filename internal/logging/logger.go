// Package logging builds the harness loggers: the structured operator
// log on stderr and the per-process log files under each run directory.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds the operator logger on stderr. Format is "json" or "text";
// level is one of debug/info/warn/error. Verbose forces debug, matching
// the -v flag.
func New(format, level string, verbose bool) *slog.Logger {
	lvl := parseLevel(level)
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(newHandler(os.Stderr, format, lvl))
}

// NewWithWriter builds a logger against an arbitrary writer. Tests use
// it to capture output.
func NewWithWriter(w io.Writer, format, level string) *slog.Logger {
	return slog.New(newHandler(w, format, parseLevel(level)))
}

// Discard returns a logger that drops everything. The TUI installs it
// so log lines cannot tear the dashboard while it owns the terminal.
func Discard() *slog.Logger {
	return slog.New(newHandler(io.Discard, "text", slog.LevelError))
}

// newHandler is the single place handlers are built, so every logger in
// the harness carries the same options. Unrecognized formats fall back
// to text, which is what an operator reading stderr wants.
func newHandler(w io.Writer, format string, lvl slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: lvl,
		// Source locations are only worth the noise when debugging.
		AddSource: lvl == slog.LevelDebug,
	}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault sets the default logger for the slog package.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
