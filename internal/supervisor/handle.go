package supervisor

import (
	"errors"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// Role tags a process handle as the server or the i-th client.
type Role string

// RoleServer is the server process role.
const RoleServer Role = "server"

// ClientRole returns the role tag for the i-th client (1-based).
func ClientRole(i int) Role {
	return Role("client[" + strconv.Itoa(i) + "]")
}

// Handle is one spawned process. It is owned by the run that spawned it
// and must not outlive it.
type Handle struct {
	Role    Role
	PID     int
	LogPath string

	cmd       *exec.Cmd
	logFile   *os.File
	waitCh    chan struct{}
	exitCode  int
	waitErr   error
	startTime time.Time
	exitTime  time.Time
}

// start launches the command with its output redirected to the log file
// and begins reaping it in the background.
func (h *Handle) start(cmd *exec.Cmd, logFile *os.File) error {
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// Own process group so escalation signals reach any grandchildren.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return err
	}

	h.cmd = cmd
	h.logFile = logFile
	h.PID = cmd.Process.Pid
	h.waitCh = make(chan struct{})
	h.startTime = time.Now()

	go func() {
		err := cmd.Wait()
		h.exitCode = extractExitCode(err)
		h.waitErr = err
		h.exitTime = time.Now()
		logFile.Close()
		close(h.waitCh)
	}()

	return nil
}

// Uptime returns how long the process has run (or ran, once exited).
func (h *Handle) Uptime() time.Duration {
	if h.startTime.IsZero() {
		return 0
	}
	if h.Exited() {
		return h.exitTime.Sub(h.startTime)
	}
	return time.Since(h.startTime)
}

// Exited reports whether the process has been reaped.
func (h *Handle) Exited() bool {
	if h.waitCh == nil {
		return true
	}
	select {
	case <-h.waitCh:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code, or -1 while the process is running.
func (h *Handle) ExitCode() int {
	if !h.Exited() {
		return -1
	}
	return h.exitCode
}

// waitTimeout blocks until the process exits or the timeout elapses.
// Returns true if the process exited.
func (h *Handle) waitTimeout(d time.Duration) bool {
	if h.waitCh == nil {
		return true
	}
	select {
	case <-h.waitCh:
		return true
	case <-time.After(d):
		return false
	}
}

// signalGroup delivers sig to the process group, falling back to the
// process itself if the group is gone.
func (h *Handle) signalGroup(sig syscall.Signal) {
	if h.cmd == nil || h.cmd.Process == nil {
		return
	}
	if pgid, err := syscall.Getpgid(h.PID); err == nil {
		syscall.Kill(-pgid, sig)
	} else {
		h.cmd.Process.Signal(sig)
	}
}

// Outcome is the snapshot of one process recorded in the run summary.
type Outcome struct {
	Role     string  `json:"role"`
	PID      int     `json:"pid"`
	Started  bool    `json:"started"`
	ExitCode int     `json:"exit_code"`
	UptimeS  float64 `json:"uptime_s"`
	LogFile  string  `json:"log_file"`
}

// extractExitCode extracts the exit code from a Wait() error.
func extractExitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				// Signal exit: 128 + signal number
				return 128 + int(status.Signal())
			}
			return status.ExitStatus()
		}
	}

	// Unknown error, assume exit code 1
	return 1
}
