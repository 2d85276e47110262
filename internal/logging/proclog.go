package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenProcessLog opens (truncating) the log file a child process writes
// stdout+stderr into. The harness never parses these files; they are
// collected verbatim into the run's artifact set.
func OpenProcessLog(dir, name string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open process log %s: %w", path, err)
	}
	return f, nil
}
