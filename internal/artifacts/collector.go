// Package artifacts gathers the outputs of one run into its results
// directory: CSV files the collaborators dropped into the working
// directory, per-process logs, the finalized capture, and the summary.
package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// csvPatterns are the working-directory files the collaborators emit.
// Anything not matching is left untouched; the collector does not guess
// intent.
var csvPatterns = []string{"client_data_*.csv", "server_metrics.csv"}

// Collector moves run outputs into the per-run results directory.
type Collector struct {
	ResultsRoot string
	CapturesDir string
	WorkDir     string
	Logger      *slog.Logger
}

// RunDirName derives the unique per-run directory name. Scenario name,
// repetition index and timestamp together guarantee no two runs collide,
// with a short run-ID suffix guarding against clock granularity.
func (c *Collector) RunDirName(scenarioName string, rep int, ts time.Time, runID string) string {
	short := runID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_rep%02d_%s_%s", scenarioName, rep, ts.Format("20060102-150405"), short)
}

// EnsureRunDir creates the run's results directory. Called before any
// artifact is produced so partial failures still have a destination.
func (c *Collector) EnsureRunDir(scenarioName string, rep int, ts time.Time, runID string) (string, error) {
	dir := filepath.Join(c.ResultsRoot, c.RunDirName(scenarioName, rep, ts, runID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}
	return dir, nil
}

// CollectCSVs moves every matching CSV from the working directory into
// the run directory. Returns the number moved.
func (c *Collector) CollectCSVs(runDir string) (int, error) {
	moved := 0
	var firstErr error

	for _, pattern := range csvPatterns {
		matches, err := filepath.Glob(filepath.Join(c.WorkDir, pattern))
		if err != nil {
			continue
		}
		for _, src := range matches {
			dst := filepath.Join(runDir, filepath.Base(src))
			if err := moveFile(src, dst); err != nil {
				c.Logger.Warn("csv_collect_failed", "file", src, "error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			moved++
			c.Logger.Debug("csv_collected", "file", filepath.Base(src))
		}
	}

	return moved, firstErr
}

// CopyCapture copies the finalized capture file into the run directory.
// The captures mirror keeps its own copy.
func (c *Collector) CopyCapture(capturePath, runDir string) error {
	if capturePath == "" {
		return nil
	}
	dst := filepath.Join(runDir, filepath.Base(capturePath))

	in, err := os.Open(capturePath)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create capture copy: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy capture: %w", err)
	}
	return out.Close()
}

// CountLogs counts the per-process log files already in the run dir.
func (c *Collector) CountLogs(runDir string) int {
	matches, _ := filepath.Glob(filepath.Join(runDir, "*.log"))
	return len(matches)
}

// WriteSummary writes the run's summary record. Written once; the
// artifact set is read-only afterwards.
func (c *Collector) WriteSummary(runDir string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	path := filepath.Join(runDir, "summary.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// ReconcileOwnership hands the results tree back to the invoking user
// when the harness ran under sudo (netem and tcpdump usually force
// that). Invoked once at run end; a second call is a no-op because the
// ownership is already correct.
func (c *Collector) ReconcileOwnership(runDir string) error {
	uid, gid, ok := sudoInvoker()
	if !ok {
		return nil
	}

	return filepath.WalkDir(runDir, func(path string, _ fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := os.Chown(path, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", path, err)
		}
		return nil
	})
}

// sudoInvoker returns the identity that invoked sudo, if the harness is
// running elevated on that user's behalf.
func sudoInvoker() (uid, gid int, ok bool) {
	if os.Geteuid() != 0 {
		return 0, 0, false
	}
	uidStr, gidStr := os.Getenv("SUDO_UID"), os.Getenv("SUDO_GID")
	if uidStr == "" || gidStr == "" {
		return 0, 0, false
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return 0, 0, false
	}
	gid, err = strconv.Atoi(gidStr)
	if err != nil {
		return 0, 0, false
	}
	return uid, gid, true
}

// moveFile renames src to dst, falling back to copy-then-delete when the
// two sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
