package config

import (
	"flag"
	"fmt"
	"os"
)

// ParseFlags parses command-line flags and returns a Config.
// Returns an error if arguments are unrecognized or invalid.
func ParseFlags() (*Config, error) {
	return parseFlags(os.Args[1:], flag.ExitOnError)
}

// parseFlags is the testable core of ParseFlags.
func parseFlags(args []string, errorHandling flag.ErrorHandling) (*Config, error) {
	cfg := DefaultConfig()

	fs := flag.NewFlagSet("netharness", errorHandling)
	fs.Usage = func() { printUsage(fs) }

	// Batch
	fs.IntVar(&cfg.Clients, "clients", cfg.Clients, "Number of client processes per run")
	fs.IntVar(&cfg.Repetitions, "repetitions", cfg.Repetitions, "Repetitions per scenario")
	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "Run a single named scenario once")
	fs.StringVar(&cfg.ScenarioFile, "scenarios", cfg.ScenarioFile, "YAML file overriding the built-in catalog")

	// Collaborators
	fs.StringVar(&cfg.ServerCmd, "server-cmd", cfg.ServerCmd, "Command that launches the game server")
	fs.StringVar(&cfg.ClientCmd, "client-cmd", cfg.ClientCmd, "Command that launches one game client")
	fs.StringVar(&cfg.ServerAddr, "server-addr", cfg.ServerAddr, "Address clients connect to")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Server UDP port (also the capture filter)")

	// Impairment / capture
	fs.StringVar(&cfg.Interface, "interface", cfg.Interface, "Interface for netem rules and capture")
	fs.StringVar(&cfg.TcPath, "tc", cfg.TcPath, "Path to the tc binary")
	fs.StringVar(&cfg.TcpdumpPath, "tcpdump", cfg.TcpdumpPath, "Path to the tcpdump binary")
	fs.BoolVar(&cfg.NoCapture, "no-capture", cfg.NoCapture, "Disable traffic capture")

	// Artifact layout
	fs.StringVar(&cfg.ResultsDir, "results-dir", cfg.ResultsDir, "Root directory for per-run results")
	fs.StringVar(&cfg.CapturesDir, "captures-dir", cfg.CapturesDir, "Directory mirroring finalized captures")
	fs.StringVar(&cfg.ScratchDir, "scratch-dir", cfg.ScratchDir, "Writable scratch area for in-flight captures")
	fs.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "Directory collaborators write CSVs into")

	// Timing
	fs.DurationVar(&cfg.Stagger, "stagger", cfg.Stagger, "Delay between client launches")
	fs.DurationVar(&cfg.StartupTimeout, "startup-timeout", cfg.StartupTimeout, "Bound on server readiness probing")
	fs.DurationVar(&cfg.CaptureGrace, "capture-grace", cfg.CaptureGrace, "Grace for capture start/flush")
	fs.DurationVar(&cfg.StopGrace, "stop-grace", cfg.StopGrace, "Grace before escalating SIGTERM to SIGKILL")
	fs.DurationVar(&cfg.SettleDelay, "settle", cfg.SettleDelay, "Settle delay after netem changes")
	fs.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "Cooldown between runs")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty disables)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Live batch dashboard")

	// Diagnostic modes
	fs.BoolVar(&cfg.CleanupOnly, "cleanup", cfg.CleanupOnly, "Clear netem rules and stale capture files, then exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Positional arguments are a usage error: every input is a flag.
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unrecognized argument: %q", fs.Arg(0))
	}

	return cfg, nil
}

// printUsage prints categorized usage text, including the scenario names a
// -scenario selector accepts.
func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `netharness - network-impairment test harness

Usage:
  netharness [flags]

With no flags, runs the full scenario catalog, repeating each scenario
-repetitions times. With -scenario NAME, runs that scenario exactly once.

Built-in scenarios:
  baseline      no impairment
  loss_2pct     2%% packet loss (LAN-like)
  loss_5pct     5%% packet loss (WAN-like)
  delay_100ms   100ms delay
  delay_jitter  100ms delay ± 10ms jitter

Flags:
`)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  # Full batch, capture enabled (needs root for netem + tcpdump)
  sudo netharness

  # One scenario, no capture
  netharness -scenario baseline -no-capture

  # Teardown only
  sudo netharness -cleanup
`)
}
