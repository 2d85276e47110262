// Package config provides configuration management for netharness.
package config

import (
	"os"
	"time"
)

// Config holds all configuration options for the test harness.
type Config struct {
	// Batch
	Clients      int    `json:"clients"`
	Repetitions  int    `json:"repetitions"`
	Scenario     string `json:"scenario"`      // run a single named scenario once
	ScenarioFile string `json:"scenario_file"` // optional YAML catalog override

	// Collaborators
	ServerCmd  string `json:"server_cmd"`
	ClientCmd  string `json:"client_cmd"`
	ServerAddr string `json:"server_addr"`
	Port       int    `json:"port"`

	// Impairment / capture
	Interface   string `json:"interface"`
	TcPath      string `json:"tc_path"`
	TcpdumpPath string `json:"tcpdump_path"`
	NoCapture   bool   `json:"no_capture"`

	// Artifact layout
	ResultsDir  string `json:"results_dir"`
	CapturesDir string `json:"captures_dir"`
	ScratchDir  string `json:"scratch_dir"`
	WorkDir     string `json:"work_dir"` // where collaborators drop stray CSVs

	// Timing. These were hard-coded sleeps in earlier drafts of the
	// harness; they are all tunable now.
	Stagger        time.Duration `json:"stagger"`
	StartupTimeout time.Duration `json:"startup_timeout"`
	CaptureGrace   time.Duration `json:"capture_grace"`
	StopGrace      time.Duration `json:"stop_grace"`
	SettleDelay    time.Duration `json:"settle_delay"`
	Cooldown       time.Duration `json:"cooldown"`

	// Observability
	MetricsAddr string `json:"metrics_addr"`
	Verbose     bool   `json:"verbose"`
	LogFormat   string `json:"log_format"` // json, text
	TUIEnabled  bool   `json:"tui"`

	// Diagnostic modes
	CleanupOnly   bool `json:"cleanup_only"`
	SkipPreflight bool `json:"skip_preflight"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		// Batch
		Clients:     4,
		Repetitions: 3,

		// Collaborators
		ServerCmd:  "python3 server_optimized.py",
		ClientCmd:  "python3 client.py",
		ServerAddr: "127.0.0.1",
		Port:       5555,

		// Impairment / capture
		Interface:   "lo",
		TcPath:      "tc",
		TcpdumpPath: "tcpdump",

		// Artifact layout
		ResultsDir:  "test_results",
		CapturesDir: "captures",
		ScratchDir:  os.TempDir(),
		WorkDir:     ".",

		// Timing
		Stagger:        1500 * time.Millisecond,
		StartupTimeout: 10 * time.Second,
		CaptureGrace:   2 * time.Second,
		StopGrace:      3 * time.Second,
		SettleDelay:    2 * time.Second,
		Cooldown:       5 * time.Second,

		// Observability
		MetricsAddr: "0.0.0.0:17092",
		Verbose:     false,
		LogFormat:   "json",
		TUIEnabled:  false,
	}
}
