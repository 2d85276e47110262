// Package netem controls the kernel network-impairment rules (tc qdisc
// netem) applied to the loopback path during a run.
//
// The controller owns the "at most one profile active" invariant: Apply
// always clears before installing, and the orchestrator clears between
// runs, so a run can never inherit the previous run's settings.
package netem

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/gridclash/netharness/internal/scenario"
)

// Mode reports how a scenario's impairment was (or was not) realized.
type Mode string

const (
	// ModeNone means no impairment is in effect, either because the
	// scenario requested none or because applying it failed.
	ModeNone Mode = "none"

	// ModeKernel means a tc netem qdisc is installed.
	ModeKernel Mode = "kernel"

	// ModeSoftware means the kernel facility is unavailable and the
	// loss fraction must be emulated by the server process instead.
	ModeSoftware Mode = "software"
)

// Applied describes the outcome of an Apply call.
type Applied struct {
	Mode Mode

	// SoftwareLoss is the loss fraction (0..1) the server must emulate
	// when Mode == ModeSoftware. Zero otherwise.
	SoftwareLoss float64
}

// Runner executes impairment commands. Tests inject fakes; production
// uses ExecRunner.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Controller applies and clears netem profiles on one interface.
type Controller struct {
	runner      Runner
	tcPath      string
	iface       string
	settle      time.Duration
	kernelAvail bool
	logger      *slog.Logger

	// sleep is swappable so tests don't pay the settle delay.
	sleep func(time.Duration)
}

// New creates a Controller for the given interface. Kernel availability
// is probed once: tc must be on PATH and the platform must be linux.
func New(tcPath, iface string, settle time.Duration, logger *slog.Logger) *Controller {
	avail := runtime.GOOS == "linux"
	if avail {
		if _, err := exec.LookPath(tcPath); err != nil {
			avail = false
		}
	}

	return &Controller{
		runner:      ExecRunner{},
		tcPath:      tcPath,
		iface:       iface,
		settle:      settle,
		kernelAvail: avail,
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// NewWithRunner creates a Controller with an injected Runner and forced
// kernel availability. Used by tests.
func NewWithRunner(r Runner, iface string, kernelAvail bool, logger *slog.Logger) *Controller {
	return &Controller{
		runner:      r,
		tcPath:      "tc",
		iface:       iface,
		kernelAvail: kernelAvail,
		logger:      logger,
		sleep:       func(time.Duration) {},
	}
}

// KernelAvailable reports whether kernel-level impairment can be used.
func (c *Controller) KernelAvailable() bool {
	return c.kernelAvail
}

// DisableKernel forces the software fallback. Called when preflight
// determined kernel impairment is unavailable.
func (c *Controller) DisableKernel() {
	c.kernelAvail = false
}

// Clear removes any active netem profile on the interface. It is
// idempotent: clearing when nothing is installed succeeds.
func (c *Controller) Clear(ctx context.Context) error {
	if !c.kernelAvail {
		return nil
	}

	out, err := c.runner.Run(ctx, c.tcPath, "qdisc", "del", "dev", c.iface, "root")
	if err != nil && !isNothingInstalled(out) {
		return fmt.Errorf("tc qdisc del on %s: %w (%s)", c.iface, err, strings.TrimSpace(string(out)))
	}

	c.logger.Debug("netem_cleared", "interface", c.iface)
	c.sleep(c.settle)
	return nil
}

// Apply installs the scenario's impairment profile. It always clears
// first so rules never layer. A failed install is reported but leaves
// the interface unimpaired; the caller records the outcome and the run
// proceeds.
func (c *Controller) Apply(ctx context.Context, spec scenario.Spec) (Applied, error) {
	if err := c.Clear(ctx); err != nil {
		return Applied{Mode: ModeNone}, err
	}

	if !spec.Impaired() {
		return Applied{Mode: ModeNone}, nil
	}

	if !c.kernelAvail {
		c.logger.Warn("netem_unavailable",
			"scenario", spec.Name,
			"fallback_loss", spec.LossPct/100,
		)
		return Applied{Mode: ModeSoftware, SoftwareLoss: spec.LossPct / 100}, nil
	}

	args := append([]string{"qdisc", "add", "dev", c.iface, "root", "netem"}, netemArgs(spec)...)
	out, err := c.runner.Run(ctx, c.tcPath, args...)
	if err != nil {
		// Typically insufficient privilege. Non-fatal: the run goes
		// ahead without impairment and the summary flags it.
		return Applied{Mode: ModeNone}, fmt.Errorf(
			"tc qdisc add on %s: %w (%s)", c.iface, err, strings.TrimSpace(string(out)))
	}

	c.logger.Info("netem_applied",
		"interface", c.iface,
		"scenario", spec.Name,
		"args", strings.Join(netemArgs(spec), " "),
	)
	c.sleep(c.settle)
	return Applied{Mode: ModeKernel}, nil
}

// netemArgs translates a spec into tc netem arguments.
func netemArgs(spec scenario.Spec) []string {
	var args []string
	if spec.LossPct > 0 {
		args = append(args, "loss", fmt.Sprintf("%g%%", spec.LossPct))
	}
	if spec.Delay > 0 {
		args = append(args, "delay", fmt.Sprintf("%dms", spec.Delay.Milliseconds()))
		if spec.Jitter > 0 {
			args = append(args, fmt.Sprintf("%dms", spec.Jitter.Milliseconds()))
		}
	}
	return args
}

// isNothingInstalled recognizes the tc error for deleting a qdisc that
// does not exist, which Clear treats as success.
func isNothingInstalled(out []byte) bool {
	s := string(out)
	return strings.Contains(s, "No such file or directory") ||
		strings.Contains(s, "Cannot delete qdisc with handle of zero")
}
