package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/gopacket/pcapgo"
)

// captureProc wraps the running capture tool so stop can escalate.
type captureProc struct {
	cmd    *exec.Cmd
	waitCh chan struct{}
}

// Manager starts and stops capture sessions. One Manager serves the whole
// batch; each run gets its own Session.
type Manager struct {
	// Enabled is false when the capture tool is absent or capture was
	// disabled; Start then yields an immediately-Failed session.
	Enabled bool

	BinPath    string
	Iface      string
	Port       int
	ScratchDir string

	// StartGrace bounds the wait for the tool to come up; StopGrace
	// bounds both the TERM-to-KILL escalation and the file flush.
	StartGrace time.Duration
	StopGrace  time.Duration

	Logger *slog.Logger
}

// NewManager probes the capture tool and returns a Manager. A missing
// tool downgrades capture instead of failing.
func NewManager(binPath, iface string, port int, scratchDir string, startGrace, stopGrace time.Duration, disabled bool, logger *slog.Logger) *Manager {
	enabled := !disabled
	if enabled {
		if _, err := exec.LookPath(binPath); err != nil {
			logger.Warn("capture_tool_missing", "path", binPath)
			enabled = false
		}
	}

	return &Manager{
		Enabled:    enabled,
		BinPath:    binPath,
		Iface:      iface,
		Port:       port,
		ScratchDir: scratchDir,
		StartGrace: startGrace,
		StopGrace:  stopGrace,
		Logger:     logger,
	}
}

// Disable turns capture off for the rest of the batch. Called when
// preflight determined the capture tool is unavailable; sessions started
// afterwards fail immediately with CaptureUnavailable.
func (m *Manager) Disable() {
	m.Enabled = false
}

// ScratchPath returns the in-flight capture path for a scenario. It lives
// on the universally-writable scratch area, never under the results tree.
func (m *Manager) ScratchPath(scenarioName string) string {
	return filepath.Join(m.ScratchDir, "capture_"+scenarioName+".pcap")
}

// Start begins capturing traffic for the named scenario. It never returns
// an error: failures are carried in the session state and the run proceeds
// without a capture artifact.
func (m *Manager) Start(scenarioName string) *Session {
	sess := &Session{
		Scenario:    scenarioName,
		ScratchPath: m.ScratchPath(scenarioName),
		state:       StateIdle,
	}

	if !m.Enabled {
		sess.fail(ReasonCaptureUnavailable)
		return sess
	}

	// A stale file from an interrupted earlier run must not be mistaken
	// for this run's capture.
	if err := os.Remove(sess.ScratchPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.Logger.Warn("stale_capture_remove_failed", "path", sess.ScratchPath, "error", err)
	}

	cmd := exec.Command(m.BinPath,
		"-i", m.Iface,
		"-w", sess.ScratchPath,
		"udp", "port", strconv.Itoa(m.Port),
	)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		m.Logger.Warn("capture_start_failed", "error", err)
		sess.fail(ReasonCaptureStartFailure)
		return sess
	}

	proc := &captureProc{cmd: cmd, waitCh: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(proc.waitCh)
	}()

	// Verify the tool survives its startup grace. An immediate exit
	// usually means a bad filter or missing privilege.
	select {
	case <-proc.waitCh:
		m.Logger.Warn("capture_exited_during_startup", "scenario", scenarioName)
		sess.fail(ReasonCaptureStartFailure)
		return sess
	case <-time.After(m.StartGrace):
	}

	sess.proc = proc
	sess.PID = cmd.Process.Pid
	sess.state = StateCapturing

	m.Logger.Info("capture_started",
		"scenario", scenarioName,
		"pid", sess.PID,
		"scratch", sess.ScratchPath,
	)
	return sess
}

// Stop signals the capture tool, waits for the file to flush, then
// relocates it to finalPath. The scratch file may be root-owned (the tool
// typically runs elevated) and may live on a different filesystem than the
// destination, so relocation is chmod + copy + verify + delete, never a
// bare rename. Stop never aborts the run; the session ends Finalized or
// Failed.
func (m *Manager) Stop(sess *Session, finalPath string) {
	switch sess.state {
	case StateCapturing:
	case StateFailed, StateFinalized:
		return
	default:
		sess.fail(ReasonCaptureFileMissing)
		return
	}

	sess.state = StateStopping
	m.terminate(sess.proc)

	// Let the tool flush and close its output file.
	time.Sleep(m.StopGrace)

	if err := m.finalize(sess, finalPath); err != nil {
		m.Logger.Warn("capture_finalize_failed",
			"scenario", sess.Scenario,
			"error", err,
		)
		sess.fail(ReasonCaptureFileMissing)
		return
	}

	sess.FinalPath = finalPath
	sess.state = StateFinalized
	m.Logger.Info("capture_finalized",
		"scenario", sess.Scenario,
		"path", finalPath,
		"bytes", sess.Bytes,
		"packets", sess.Packets,
	)
}

// terminate applies the uniform escalation policy to the capture tool:
// SIGTERM to the process group, bounded wait, then SIGKILL.
func (m *Manager) terminate(proc *captureProc) {
	if proc == nil || proc.cmd.Process == nil {
		return
	}

	pid := proc.cmd.Process.Pid
	if pgid, err := syscall.Getpgid(pid); err == nil {
		syscall.Kill(-pgid, syscall.SIGTERM)
	} else {
		proc.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-proc.waitCh:
	case <-time.After(m.StopGrace):
		m.Logger.Warn("capture_force_kill", "pid", pid)
		if pgid, err := syscall.Getpgid(pid); err == nil {
			syscall.Kill(-pgid, syscall.SIGKILL)
		} else {
			proc.cmd.Process.Kill()
		}
		<-proc.waitCh
	}
}

// finalize normalizes the scratch file and relocates it to finalPath.
func (m *Manager) finalize(sess *Session, finalPath string) error {
	info, err := os.Stat(sess.ScratchPath)
	if err != nil {
		return fmt.Errorf("scratch file missing: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(sess.ScratchPath)
		return errors.New("scratch file empty")
	}

	// The tool may have run as root; make the file readable before the
	// bytes cross into the user-owned results tree.
	if err := os.Chmod(sess.ScratchPath, 0o644); err != nil {
		m.Logger.Warn("capture_chmod_failed", "path", sess.ScratchPath, "error", err)
	}

	if err := copyFile(sess.ScratchPath, finalPath); err != nil {
		return err
	}

	dst, err := os.Stat(finalPath)
	if err != nil {
		return fmt.Errorf("verify destination: %w", err)
	}
	if dst.Size() == 0 {
		os.Remove(finalPath)
		return errors.New("destination empty after copy")
	}

	sess.Bytes = dst.Size()
	sess.Packets = countPackets(finalPath, m.Logger)

	if err := os.Remove(sess.ScratchPath); err != nil {
		m.Logger.Warn("scratch_remove_failed", "path", sess.ScratchPath, "error", err)
	}
	return nil
}

// copyFile copies src to dst byte-for-byte. Scratch and destination may
// sit on different filesystems, where rename(2) fails with EXDEV.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open scratch: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy capture: %w", err)
	}
	return out.Close()
}

// countPackets reads the finalized pcap and counts its packets. A parse
// failure is not a capture failure; the count is advisory.
func countPackets(path string, logger *slog.Logger) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	r, err := pcapgo.NewReader(f)
	if err != nil {
		logger.Warn("pcap_parse_failed", "path", path, "error", err)
		return 0
	}

	count := 0
	for {
		if _, _, err := r.ReadPacketData(); err != nil {
			break
		}
		count++
	}
	return count
}
