// Package capture manages the traffic-capture tool for one run: starting
// it against a scratch path, stopping it, and relocating the finished
// file across the privilege boundary into the results tree.
package capture

// State is the capture session lifecycle. Transitions are one-directional;
// a session is never reused after reaching Finalized or Failed.
type State int

const (
	// StateIdle is the initial state before the tool is started.
	StateIdle State = iota

	// StateCapturing indicates the capture tool is running.
	StateCapturing

	// StateStopping indicates the tool has been signaled to stop.
	StateStopping

	// StateFinalized indicates a non-empty capture file exists at the
	// final artifact path.
	StateFinalized

	// StateFailed indicates no usable capture artifact was produced.
	StateFailed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateStopping:
		return "stopping"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureReason labels why a session ended Failed.
type FailureReason string

const (
	// ReasonNone means the session did not fail.
	ReasonNone FailureReason = ""

	// ReasonCaptureUnavailable means the capture tool is absent or
	// capture is disabled; the run proceeds without an artifact.
	ReasonCaptureUnavailable FailureReason = "CaptureUnavailable"

	// ReasonCaptureStartFailure means the tool exited during its
	// startup grace period.
	ReasonCaptureStartFailure FailureReason = "CaptureStartFailure"

	// ReasonCaptureFileMissing means the scratch file was missing or
	// empty when the session stopped.
	ReasonCaptureFileMissing FailureReason = "CaptureFileMissing"
)

// Session tracks one capture from start through finalization. It is owned
// by the run that started it and must not outlive it.
type Session struct {
	Scenario    string
	ScratchPath string
	FinalPath   string
	PID         int

	state  State
	reason FailureReason

	// Populated on finalization.
	Packets int
	Bytes   int64

	proc *captureProc
}

// State returns the session state.
func (s *Session) State() State { return s.state }

// Reason returns the failure reason, or ReasonNone.
func (s *Session) Reason() FailureReason { return s.reason }

// Finalized reports whether a usable capture artifact exists.
func (s *Session) Finalized() bool { return s.state == StateFinalized }

// fail moves the session to Failed with the given reason. The first
// failure wins; later calls are no-ops.
func (s *Session) fail(reason FailureReason) {
	if s.state == StateFailed || s.state == StateFinalized {
		return
	}
	s.state = StateFailed
	s.reason = reason
}
