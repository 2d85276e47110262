package artifacts

import (
	"time"

	"github.com/gridclash/netharness/internal/supervisor"
)

// NetworkParams records the scenario's configured impairment in the
// summary, independent of whether the kernel or the software fallback
// realized it.
type NetworkParams struct {
	Label    string  `json:"label"` // "none", "loss=5%", ...
	LossPct  float64 `json:"loss_pct"`
	DelayMs  int64   `json:"delay_ms"`
	JitterMs int64   `json:"jitter_ms"`
}

// CaptureOutcome records what became of the run's traffic capture.
type CaptureOutcome struct {
	State   string `json:"state"`            // finalized, failed
	Reason  string `json:"reason,omitempty"` // CaptureUnavailable, CaptureFileMissing, ...
	File    string `json:"file,omitempty"`
	Bytes   int64  `json:"bytes,omitempty"`
	Packets int    `json:"packets,omitempty"`
}

// Summary is the per-run record written once at run end and read-only
// thereafter. Downstream analysis keys off it.
type Summary struct {
	RunID      string    `json:"run_id"`
	Scenario   string    `json:"scenario"`
	Repetition int       `json:"repetition"`
	Timestamp  time.Time `json:"timestamp"`

	Network        NetworkParams `json:"network"`
	ImpairmentMode string        `json:"impairment_mode"` // kernel, software, none
	ImpairmentErr  string        `json:"impairment_error,omitempty"`

	DurationConfigured float64 `json:"duration_configured_s"`
	DurationEffective  float64 `json:"duration_effective_s"`

	Processes []supervisor.Outcome `json:"processes"`
	Capture   CaptureOutcome       `json:"capture"`

	CSVFiles int `json:"csv_files"`
	LogFiles int `json:"log_files"`

	// Completed is false only when the run aborted before its hold
	// phase (e.g. ProcessStartFailure). Failure carries the label.
	Completed bool   `json:"completed"`
	Failure   string `json:"failure,omitempty"`

	// Warnings are non-fatal oddities (artifact collection problems,
	// ownership reconcile failures) kept for inspection.
	Warnings []string `json:"warnings,omitempty"`
}
