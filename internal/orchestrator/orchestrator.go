// Package orchestrator drives the scenario batch: for every scenario in
// the catalog, K repetitions of impair, capture, run, tear down, collect.
//
// A single run failing never stops the batch; its outcome is recorded
// and the next run starts from a clean slate. Teardown is unconditional:
// it runs on success, failure and operator interrupt alike.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/gridclash/netharness/internal/artifacts"
	"github.com/gridclash/netharness/internal/capture"
	"github.com/gridclash/netharness/internal/config"
	"github.com/gridclash/netharness/internal/metrics"
	"github.com/gridclash/netharness/internal/netem"
	"github.com/gridclash/netharness/internal/preflight"
	"github.com/gridclash/netharness/internal/process"
	"github.com/gridclash/netharness/internal/scenario"
	"github.com/gridclash/netharness/internal/supervisor"
)

// Run failure labels recorded in summaries and results.
const (
	FailureProcessStart = "process_start_failure"
	FailureArtifactDir  = "artifact_dir_failure"
	FailureInterrupted  = "interrupted"
)

// ErrPreflight indicates a hard dependency is missing and no run was
// attempted.
var ErrPreflight = errors.New("preflight checks failed")

// ErrUnknownScenario indicates the -scenario flag named nothing in the
// catalog.
var ErrUnknownScenario = errors.New("unknown scenario")

// RunResult is the orchestrator's record of one run.
type RunResult struct {
	Scenario   string
	Repetition int
	Dir        string
	Completed  bool
	Failure    string
}

// BatchResult aggregates every run of the batch.
type BatchResult struct {
	Runs      []RunResult
	Completed int
	Failed    int
}

// Orchestrator executes the scenario batch.
type Orchestrator struct {
	cfg    *config.Config
	logger *slog.Logger

	specs []scenario.Spec
	reps  int

	serverBase []string
	clientBase []string

	netem     *netem.Controller
	capture   *capture.Manager
	artifacts *artifacts.Collector
	metrics   *metrics.Collector

	events chan<- Event
}

// New builds an Orchestrator from the validated configuration. The
// scenario catalog is resolved here so a bad catalog fails before any
// process is spawned.
func New(cfg *config.Config, version string, logger *slog.Logger) (*Orchestrator, error) {
	cat := scenario.Default(cfg.Repetitions)
	if cfg.ScenarioFile != "" {
		loaded, err := scenario.Load(cfg.ScenarioFile, cfg.Repetitions)
		if err != nil {
			return nil, err
		}
		cat = loaded
	}

	specs, dropped := cat.Sanitize()
	for _, err := range dropped {
		logger.Warn("scenario_dropped", "error", err)
	}
	if len(specs) == 0 {
		return nil, errors.New("scenario catalog is empty after validation")
	}

	serverBase, err := process.ParseCommand(cfg.ServerCmd)
	if err != nil {
		return nil, fmt.Errorf("server command: %w", err)
	}
	clientBase, err := process.ParseCommand(cfg.ClientCmd)
	if err != nil {
		return nil, fmt.Errorf("client command: %w", err)
	}

	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		specs:      specs,
		reps:       cat.Repetitions,
		serverBase: serverBase,
		clientBase: clientBase,
		netem:      netem.New(cfg.TcPath, cfg.Interface, cfg.SettleDelay, logger),
		capture: capture.NewManager(
			cfg.TcpdumpPath, cfg.Interface, cfg.Port, cfg.ScratchDir,
			cfg.CaptureGrace, cfg.StopGrace, cfg.NoCapture, logger,
		),
		artifacts: &artifacts.Collector{
			ResultsRoot: cfg.ResultsDir,
			CapturesDir: cfg.CapturesDir,
			WorkDir:     cfg.WorkDir,
			Logger:      logger,
		},
		metrics: metrics.NewCollector(version, cfg.Interface),
	}, nil
}

// SetEventSink registers a channel receiving progress events (the TUI).
// Sends never block; a slow consumer just misses updates.
func (o *Orchestrator) SetEventSink(ch chan<- Event) {
	o.events = ch
}

// TotalRuns returns how many runs the batch will attempt.
func (o *Orchestrator) TotalRuns() int {
	if o.cfg.Scenario != "" {
		return 1
	}
	return len(o.specs) * o.reps
}

// ScenarioNames returns the catalog's scenario names in run order.
func (o *Orchestrator) ScenarioNames() []string {
	names := make([]string, 0, len(o.specs))
	for _, s := range o.specs {
		names = append(names, s.Name)
	}
	return names
}

// Run executes the batch. The returned error is non-nil only for
// failures that prevented any run from starting (preflight, unknown
// scenario); individual run failures live in the BatchResult.
func (o *Orchestrator) Run(ctx context.Context) (BatchResult, error) {
	var result BatchResult

	if !o.cfg.SkipPreflight {
		pf := preflight.RunAll(o.cfg.ServerCmd, o.cfg.ClientCmd,
			o.cfg.TcPath, o.cfg.TcpdumpPath, o.cfg.ResultsDir)
		preflight.PrintResults(pf)
		if !pf.Passed {
			return result, ErrPreflight
		}
		// Apply the capability downgrades preflight reported.
		if !pf.KernelImpairment {
			o.netem.DisableKernel()
		}
		if !pf.CaptureAvailable {
			o.capture.Disable()
		}
	}

	specs := o.specs
	reps := o.reps
	if o.cfg.Scenario != "" {
		cat := scenario.Catalog{Specs: o.specs}
		spec, ok := cat.Find(o.cfg.Scenario)
		if !ok {
			return result, fmt.Errorf("%w: %q (have: %v)",
				ErrUnknownScenario, o.cfg.Scenario, o.ScenarioNames())
		}
		specs = []scenario.Spec{spec}
		reps = 1
	}

	// A stale qdisc from a previous crashed invocation would skew the
	// first baseline run.
	if err := o.netem.Clear(ctx); err != nil {
		o.logger.Warn("initial_netem_clear_failed", "error", err)
	}

	total := len(specs) * reps
	idx := 0

	o.logger.Info("batch_started",
		"scenarios", len(specs),
		"repetitions", reps,
		"total_runs", total,
		"clients", o.cfg.Clients,
	)

batch:
	for _, spec := range specs {
		for rep := 1; rep <= reps; rep++ {
			if ctx.Err() != nil {
				break batch
			}

			idx++
			run := o.runOne(ctx, spec, rep, idx, total)
			result.Runs = append(result.Runs, run)
			if run.Completed {
				result.Completed++
			} else {
				result.Failed++
			}
			o.metrics.SetBatchProgress(float64(idx) / float64(total))
			o.emit(Event{Scenario: spec.Name, Repetition: rep,
				RunIndex: idx, TotalRuns: total,
				RunFinished: true, RunCompleted: run.Completed})

			if idx < total && ctx.Err() == nil {
				o.emit(Event{Scenario: spec.Name, Repetition: rep, Phase: PhaseCooldown,
					RunIndex: idx, TotalRuns: total})
				o.logger.Info("cooldown", "duration", o.cfg.Cooldown.String())
				sleepCtx(ctx, o.cfg.Cooldown)
			}
		}
	}

	if ctx.Err() != nil {
		o.logger.Warn("batch_interrupted",
			"completed", result.Completed,
			"failed", result.Failed,
			"remaining", total-idx,
		)
	}

	o.logger.Info("batch_finished",
		"completed", result.Completed,
		"failed", result.Failed,
	)
	return result, nil
}

// runOne executes a single scenario repetition. It always returns a
// result; every failure mode short of a panic is converted into a
// recorded outcome so the batch can continue.
func (o *Orchestrator) runOne(ctx context.Context, spec scenario.Spec, rep, idx, total int) RunResult {
	ts := time.Now()
	runID := uuid.NewString()
	res := RunResult{Scenario: spec.Name, Repetition: rep}

	o.metrics.RunStarted(spec.Name, rep)
	o.logger.Info("run_started",
		"scenario", spec.Name,
		"repetition", rep,
		"run", fmt.Sprintf("%d/%d", idx, total),
		"network", spec.NetworkLabel(),
		"duration", spec.Duration.String(),
		"run_id", runID,
	)

	runDir, err := o.artifacts.EnsureRunDir(spec.Name, rep, ts, runID)
	if err != nil {
		o.logger.Error("run_dir_failed", "error", err)
		o.metrics.RunFailed()
		res.Failure = FailureArtifactDir
		return res
	}
	res.Dir = runDir

	summary := &artifacts.Summary{
		RunID:      runID,
		Scenario:   spec.Name,
		Repetition: rep,
		Timestamp:  ts,
		Network: artifacts.NetworkParams{
			Label:    spec.NetworkLabel(),
			LossPct:  spec.LossPct,
			DelayMs:  spec.Delay.Milliseconds(),
			JitterMs: spec.Jitter.Milliseconds(),
		},
		DurationConfigured: spec.Duration.Seconds(),
	}

	clients := spec.Clients
	if clients == 0 {
		clients = o.cfg.Clients
	}

	sup := supervisor.New(supervisor.Config{
		Server:         &process.ServerCommand{Base: o.serverBase, Port: o.cfg.Port},
		Client:         &process.ClientCommand{Base: o.clientBase, ServerAddr: o.serverAddr()},
		Clients:        clients,
		ServerAddr:     o.cfg.ServerAddr,
		Stagger:        o.cfg.Stagger,
		StartupTimeout: o.cfg.StartupTimeout,
		StopGrace:      o.cfg.StopGrace,
		Logger:         o.logger,
	})

	capPath := filepath.Join(o.cfg.CapturesDir,
		o.artifacts.RunDirName(spec.Name, rep, ts, runID)+".pcap")
	var capSess *capture.Session

	// Teardown must run no matter how the run ends. The deferred calls
	// are all idempotent, so the normal path below can also invoke them
	// at the right moments without double effects.
	defer func() {
		sup.StopAll()
		if capSess != nil {
			o.capture.Stop(capSess, capPath)
		}
		if err := o.netem.Clear(context.Background()); err != nil {
			o.logger.Warn("netem_clear_failed", "error", err)
		}
		o.metrics.SetActiveProcesses(0)
	}()

	// Impairment first so capture and traffic both see the shaped path.
	o.emit(Event{Scenario: spec.Name, Repetition: rep, Phase: PhaseImpairing, RunIndex: idx, TotalRuns: total})
	applied, applyErr := o.netem.Apply(ctx, spec)
	summary.ImpairmentMode = string(applied.Mode)
	if applyErr != nil {
		o.logger.Warn("netem_apply_failed", "scenario", spec.Name, "error", applyErr)
		summary.ImpairmentErr = applyErr.Error()
	}

	capSess = o.capture.Start(spec.Name)

	o.emit(Event{Scenario: spec.Name, Repetition: rep, Phase: PhaseStartingServer, RunIndex: idx, TotalRuns: total})
	if err := sup.StartServer(ctx, runDir, applied.SoftwareLoss); err != nil {
		o.logger.Error("server_start_failed", "scenario", spec.Name, "error", err)
		res.Failure = FailureProcessStart
		if errors.Is(err, context.Canceled) {
			res.Failure = FailureInterrupted
		}
		o.finishRun(sup, capSess, capPath, runDir, summary, &res, 0)
		return res
	}
	o.metrics.ProcessStarted("server")

	o.emit(Event{Scenario: spec.Name, Repetition: rep, Phase: PhaseStartingClients, RunIndex: idx, TotalRuns: total})
	if err := sup.StartClients(ctx, runDir); err != nil {
		res.Failure = FailureInterrupted
		o.finishRun(sup, capSess, capPath, runDir, summary, &res, 0)
		return res
	}
	for i := 0; i < sup.ClientCount(); i++ {
		o.metrics.ProcessStarted("client")
	}
	o.metrics.SetActiveProcesses(sup.AliveCount())

	holdStart := time.Now()
	holdErr := o.hold(ctx, sup, spec, rep, idx, total)
	effective := time.Since(holdStart)
	if holdErr != nil {
		res.Failure = FailureInterrupted
	}

	o.finishRun(sup, capSess, capPath, runDir, summary, &res, effective)
	return res
}

// hold runs the scenario's traffic window, rendering a progress bar on
// stderr unless the TUI owns the terminal.
func (o *Orchestrator) hold(ctx context.Context, sup *supervisor.Supervisor, spec scenario.Spec, rep, idx, total int) error {
	o.emit(Event{Scenario: spec.Name, Repetition: rep, Phase: PhaseRunning,
		RunIndex: idx, TotalRuns: total, Remaining: spec.Duration})

	var bar *progressbar.ProgressBar
	if !o.cfg.TUIEnabled {
		bar = progressbar.NewOptions(int(spec.Duration.Seconds()),
			progressbar.OptionSetDescription(fmt.Sprintf("%s rep %d/%d", spec.Name, rep, o.reps)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	err := sup.Hold(ctx, spec.Duration, func(elapsed, remaining time.Duration) {
		if bar != nil {
			bar.Add(1)
		}
		o.emit(Event{Scenario: spec.Name, Repetition: rep, Phase: PhaseRunning,
			RunIndex: idx, TotalRuns: total,
			Elapsed: elapsed, Remaining: remaining,
			Alive: sup.AliveCount()})
	})

	if bar != nil {
		bar.Finish()
	}
	return err
}

// finishRun tears the run down and gathers its artifacts. It is the
// single exit path for both completed and aborted runs: an aborted run
// still gets its logs, partial capture and summary.
func (o *Orchestrator) finishRun(sup *supervisor.Supervisor, capSess *capture.Session, capPath, runDir string, summary *artifacts.Summary, res *RunResult, effective time.Duration) {
	o.emit(Event{Scenario: res.Scenario, Repetition: res.Repetition, Phase: PhaseStopping})

	sup.StopAll()
	o.capture.Stop(capSess, capPath)
	o.metrics.SetActiveProcesses(0)

	o.emit(Event{Scenario: res.Scenario, Repetition: res.Repetition, Phase: PhaseCollecting})

	summary.DurationEffective = effective.Seconds()
	summary.Processes = sup.Outcomes()
	for _, out := range summary.Processes {
		o.metrics.RecordUptime(time.Duration(out.UptimeS * float64(time.Second)))
	}

	summary.Capture = artifacts.CaptureOutcome{
		State:  capSess.State().String(),
		Reason: string(capSess.Reason()),
	}
	if capSess.Finalized() {
		summary.Capture.File = capSess.FinalPath
		summary.Capture.Bytes = capSess.Bytes
		summary.Capture.Packets = capSess.Packets
		o.metrics.RecordCapture(capSess.Bytes, capSess.Packets)

		if err := o.artifacts.CopyCapture(capSess.FinalPath, runDir); err != nil {
			summary.Warnings = append(summary.Warnings, "capture copy: "+err.Error())
			o.logger.Warn("capture_copy_failed", "error", err)
		}
	}

	moved, err := o.artifacts.CollectCSVs(runDir)
	if err != nil {
		summary.Warnings = append(summary.Warnings, "csv collection: "+err.Error())
	}
	summary.CSVFiles = moved
	summary.LogFiles = o.artifacts.CountLogs(runDir)

	summary.Completed = res.Failure == ""
	summary.Failure = res.Failure
	res.Completed = summary.Completed

	if err := o.artifacts.WriteSummary(runDir, summary); err != nil {
		o.logger.Warn("summary_write_failed", "error", err)
	}
	if err := o.artifacts.ReconcileOwnership(runDir); err != nil {
		o.logger.Warn("ownership_reconcile_failed", "error", err)
	}

	if res.Completed {
		o.metrics.RunCompleted()
		o.logger.Info("run_completed",
			"scenario", res.Scenario,
			"repetition", res.Repetition,
			"dir", runDir,
			"csv_files", summary.CSVFiles,
			"capture", summary.Capture.State,
		)
	} else {
		o.metrics.RunFailed()
		o.logger.Error("run_failed",
			"scenario", res.Scenario,
			"repetition", res.Repetition,
			"failure", res.Failure,
			"dir", runDir,
		)
	}
}

// Cleanup is the -cleanup diagnostic mode: remove any leftover netem
// profile and stale scratch captures from an interrupted invocation.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	var errs []error

	if err := o.netem.Clear(ctx); err != nil {
		errs = append(errs, err)
	} else {
		o.logger.Info("netem_cleared", "interface", o.cfg.Interface)
	}

	matches, _ := filepath.Glob(filepath.Join(o.cfg.ScratchDir, "capture_*.pcap"))
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			errs = append(errs, err)
			continue
		}
		o.logger.Info("stale_capture_removed", "path", path)
	}

	return errors.Join(errs...)
}

// Summary exposes the batch aggregates for the exit report.
func (o *Orchestrator) Summary() metrics.BatchSummary {
	return o.metrics.Summary()
}

func (o *Orchestrator) serverAddr() string {
	return o.cfg.ServerAddr
}

// emit forwards an event to the sink without ever blocking the batch.
func (o *Orchestrator) emit(ev Event) {
	if o.events == nil {
		return
	}
	select {
	case o.events <- ev:
	default:
	}
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
