// Package main provides the netharness CLI entry point.
//
// netharness drives a batch of network-impairment scenarios against a
// UDP game server and a swarm of headless clients on loopback, capturing
// traffic and collecting per-run artifacts.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gridclash/netharness/internal/config"
	"github.com/gridclash/netharness/internal/logging"
	"github.com/gridclash/netharness/internal/metrics"
	"github.com/gridclash/netharness/internal/orchestrator"
	"github.com/gridclash/netharness/internal/tui"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/netharness
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// Handle version flag early (before flag parsing)
	if len(os.Args) > 1 {
		arg := os.Args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Printf("netharness %s\n", version)
			return 0
		}
	}

	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		return 1
	}

	// When the TUI owns the terminal, logs would corrupt its rendering.
	var logger *slog.Logger
	if cfg.TUIEnabled {
		logger = logging.Discard()
	} else {
		logger = logging.New(cfg.LogFormat, "info", cfg.Verbose)
	}
	logging.SetDefault(logger)

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return 1
	}

	// Full teardown on interrupt: cancelling the context unwinds the
	// active run through its deferred cleanup before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.New(cfg, version, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if cfg.CleanupOnly {
		if err := orch.Cleanup(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Cleanup incomplete: %v\n", err)
			return 1
		}
		fmt.Println("Cleanup complete.")
		return 0
	}

	logger.Info("starting",
		"version", version,
		"clients", cfg.Clients,
		"interface", cfg.Interface,
		"scenarios", strings.Join(orch.ScenarioNames(), ","),
		"metrics_addr", cfg.MetricsAddr,
	)

	metricsServer := metrics.NewServer(cfg.MetricsAddr, logger)
	if err := metricsServer.Start(); err != nil {
		logger.Warn("metrics_server_start_failed", "error", err)
	}
	defer metricsServer.Shutdown(context.Background())

	if !cfg.TUIEnabled {
		printBanner(cfg, orch)
	}

	result, err := runBatch(ctx, stop, cfg, orch)
	if err != nil {
		if errors.Is(err, orchestrator.ErrPreflight) {
			fmt.Fprintln(os.Stderr, "Aborting: preflight checks failed.")
			return 2
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	orchestrator.PrintBatchSummary(os.Stdout, result, orch.Summary())

	// A single-scenario invocation reports that run's outcome in the
	// exit status; a batch always exits 0 once it ran to the end.
	if cfg.Scenario != "" && result.Failed > 0 {
		return 1
	}
	return 0
}

// runBatch executes the batch, with or without the TUI attached.
func runBatch(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, orch *orchestrator.Orchestrator) (orchestrator.BatchResult, error) {
	if !cfg.TUIEnabled {
		return orch.Run(ctx)
	}

	events := make(chan orchestrator.Event, 64)
	orch.SetEventSink(events)

	program := tea.NewProgram(tui.New(tui.Config{
		Clients:   cfg.Clients,
		Interface: cfg.Interface,
		TotalRuns: orch.TotalRuns(),
	}), tea.WithAltScreen())

	go func() {
		for ev := range events {
			tui.SendEvent(program, ev)
		}
	}()

	type batchDone struct {
		result orchestrator.BatchResult
		err    error
	}
	done := make(chan batchDone, 1)
	go func() {
		result, err := orch.Run(ctx)
		done <- batchDone{result, err}
		tui.SendQuit(program)
	}()

	// Blocks until the batch finishes or the operator quits the TUI;
	// quitting cancels the batch, which then unwinds through teardown.
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
	}
	cancel()

	d := <-done
	close(events)
	return d.result, d.err
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config, orch *orchestrator.Orchestrator) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════════╗")
	fmt.Println("║                           netharness                              ║")
	fmt.Println("║        Network Impairment Testing for Grid Clash (UDP)            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Scenarios:   %s\n", strings.Join(orch.ScenarioNames(), ", "))
	fmt.Printf("  Runs:        %d (%d clients each)\n", orch.TotalRuns(), cfg.Clients)
	fmt.Printf("  Server:      %s on %s:%d\n", cfg.ServerCmd, cfg.ServerAddr, cfg.Port)
	fmt.Printf("  Interface:   %s\n", cfg.Interface)
	fmt.Printf("  Results:     %s\n", cfg.ResultsDir)
	fmt.Printf("  Metrics:     http://%s/metrics\n", cfg.MetricsAddr)
	if cfg.NoCapture {
		fmt.Println("  Capture:     DISABLED")
	}
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop; the active run is torn down first.")
	fmt.Println()
}
