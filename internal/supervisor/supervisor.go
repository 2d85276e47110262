package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gridclash/netharness/internal/logging"
	"github.com/gridclash/netharness/internal/process"
)

// ErrServerStartFailure indicates the server process exited before it
// became ready. The run is aborted without starting any clients.
var ErrServerStartFailure = errors.New("server process failed to start")

// ReadinessProbe checks whether the server is accepting traffic. A nil
// error means ready; any other error means "not yet, retry".
type ReadinessProbe func(ctx context.Context, addr string) error

// Config holds everything a Supervisor needs for one run.
type Config struct {
	Server  *process.ServerCommand
	Client  *process.ClientCommand
	Clients int

	// ServerAddr is the address the readiness probe targets (host only;
	// the port comes from the server command).
	ServerAddr string

	// Stagger spaces client launches to avoid a thundering-herd
	// connection burst against a freshly started server.
	Stagger time.Duration

	// StartupTimeout bounds the server readiness loop.
	StartupTimeout time.Duration

	// StopGrace bounds the TERM-to-KILL escalation per process.
	StopGrace time.Duration

	// Probe overrides the default UDP readiness probe. Optional.
	Probe ReadinessProbe

	Logger *slog.Logger
}

// Supervisor drives the process lifecycle of exactly one run. It is not
// reused: the orchestrator constructs a fresh Supervisor per RunContext.
type Supervisor struct {
	cfg Config

	mu      sync.Mutex
	phase   Phase
	server  *Handle
	clients []*Handle
}

// New creates a Supervisor for one run.
func New(cfg Config) *Supervisor {
	if cfg.Probe == nil {
		cfg.Probe = UDPProbe
	}
	return &Supervisor{cfg: cfg, phase: PhaseNotStarted}
}

// Phase returns the current supervision phase.
func (s *Supervisor) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Supervisor) setPhase(p Phase) {
	s.mu.Lock()
	old := s.phase
	s.phase = p
	s.mu.Unlock()
	if old != p {
		s.cfg.Logger.Debug("supervisor_phase", "from", old.String(), "to", p.String())
	}
}

// StartServer launches the server, redirecting its output to server.log
// in logDir, then probes readiness until StartupTimeout. softwareLoss,
// when > 0, is passed through as the server's loss-emulation argument
// (the kernel impairment fallback).
func (s *Supervisor) StartServer(ctx context.Context, logDir string, softwareLoss float64) error {
	s.setPhase(PhaseServerStarting)

	s.cfg.Server.LossFraction = softwareLoss

	logFile, err := logging.OpenProcessLog(logDir, "server.log")
	if err != nil {
		s.setPhase(PhaseStopped)
		return fmt.Errorf("%w: %v", ErrServerStartFailure, err)
	}

	h := &Handle{Role: RoleServer, LogPath: logFile.Name()}
	if err := h.start(s.cfg.Server.Build(ctx), logFile); err != nil {
		s.setPhase(PhaseStopped)
		return fmt.Errorf("%w: %v", ErrServerStartFailure, err)
	}

	s.mu.Lock()
	s.server = h
	s.mu.Unlock()

	s.cfg.Logger.Info("server_started",
		"pid", h.PID,
		"cmd", s.cfg.Server.String(),
		"log", h.LogPath,
	)

	if err := s.awaitServerReady(ctx, h); err != nil {
		s.StopAll()
		return err
	}

	s.setPhase(PhaseServerReady)
	return nil
}

// awaitServerReady retries the readiness probe until the server answers,
// the process dies, or the startup timeout elapses. A timeout with the
// process still alive is a warning, not a failure: the bounded-startup
// contract is preserved, and a slow-but-alive server gets its chance.
func (s *Supervisor) awaitServerReady(ctx context.Context, h *Handle) error {
	addr := net.JoinHostPort(s.cfg.ServerAddr, strconv.Itoa(s.cfg.Server.Port))
	deadline := time.Now().Add(s.cfg.StartupTimeout)

	for {
		if h.Exited() {
			return fmt.Errorf("%w: exited with code %d before ready (log: %s)",
				ErrServerStartFailure, h.ExitCode(), h.LogPath)
		}

		if err := s.cfg.Probe(ctx, addr); err == nil {
			s.cfg.Logger.Info("server_ready", "addr", addr)
			return nil
		}

		if time.Now().After(deadline) {
			s.cfg.Logger.Warn("server_readiness_timeout",
				"addr", addr,
				"timeout", s.cfg.StartupTimeout.String(),
			)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// StartClients launches exactly Clients client processes with a fixed
// stagger between launches. A single client failing to start is recorded
// and the remaining clients still launch; only the server aborts a run.
func (s *Supervisor) StartClients(ctx context.Context, logDir string) error {
	s.setPhase(PhaseClientsStarting)

	for i := 1; i <= s.cfg.Clients; i++ {
		if i > 1 && s.cfg.Stagger > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.Stagger):
			}
		}

		name := fmt.Sprintf("client_%d.log", i)
		logFile, err := logging.OpenProcessLog(logDir, name)
		if err != nil {
			s.cfg.Logger.Warn("client_log_open_failed", "client", i, "error", err)
			continue
		}

		h := &Handle{Role: ClientRole(i), LogPath: logFile.Name()}
		if err := h.start(s.cfg.Client.Build(ctx), logFile); err != nil {
			s.cfg.Logger.Warn("client_start_failed", "client", i, "error", err)
			continue
		}

		s.mu.Lock()
		s.clients = append(s.clients, h)
		s.mu.Unlock()

		s.cfg.Logger.Info("client_started", "client", i, "pid", h.PID, "log", h.LogPath)
	}

	s.setPhase(PhaseRunning)
	return nil
}

// Hold keeps the run in the Running phase for the scenario duration,
// reporting liveness once a second through onTick. The hold ends at the
// configured duration, not at the next tick boundary. It returns early
// only on context cancellation; teardown is the caller's responsibility
// either way.
func (s *Supervisor) Hold(ctx context.Context, duration time.Duration, onTick func(elapsed, remaining time.Duration)) error {
	start := time.Now()
	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			elapsed := time.Since(start)
			if onTick != nil {
				onTick(elapsed, duration-elapsed)
			}
			s.cfg.Logger.Debug("run_progress",
				"elapsed", elapsed.Round(time.Second).String(),
				"alive", s.AliveCount(),
			)
		}
	}
}

// StopAll terminates everything this run spawned: clients first, then the
// server. Clients go first so they never observe the server vanishing and
// pollute their logs with spurious connection errors. StopAll is
// idempotent; stopping an already-exited process is a no-op.
func (s *Supervisor) StopAll() {
	s.setPhase(PhaseStopping)

	s.mu.Lock()
	clients := append([]*Handle{}, s.clients...)
	server := s.server
	s.mu.Unlock()

	for _, h := range clients {
		s.stopHandle(h)
	}
	if server != nil {
		s.stopHandle(server)
	}

	s.setPhase(PhaseStopped)
}

// stopHandle applies the uniform escalation policy to one process:
// SIGTERM to its group, bounded wait, SIGKILL.
func (s *Supervisor) stopHandle(h *Handle) {
	if h == nil || h.Exited() {
		return
	}

	h.signalGroup(syscall.SIGTERM)
	if h.waitTimeout(s.cfg.StopGrace) {
		s.cfg.Logger.Debug("process_stopped", "role", string(h.Role), "pid", h.PID)
		return
	}

	s.cfg.Logger.Warn("process_force_kill", "role", string(h.Role), "pid", h.PID)
	h.signalGroup(syscall.SIGKILL)
	h.waitTimeout(s.cfg.StopGrace)
}

// AliveCount returns how many spawned processes are still running.
func (s *Supervisor) AliveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	if s.server != nil && !s.server.Exited() {
		n++
	}
	for _, h := range s.clients {
		if !h.Exited() {
			n++
		}
	}
	return n
}

// Outcomes snapshots every process for the run summary. Processes that
// never started (failed client launches) do not appear; the summary's
// client count exposes the gap.
func (s *Supervisor) Outcomes() []Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Outcome
	if s.server != nil {
		out = append(out, Outcome{
			Role:     string(s.server.Role),
			PID:      s.server.PID,
			Started:  true,
			ExitCode: s.server.ExitCode(),
			UptimeS:  s.server.Uptime().Seconds(),
			LogFile:  s.server.LogPath,
		})
	}
	for _, h := range s.clients {
		out = append(out, Outcome{
			Role:     string(h.Role),
			PID:      h.PID,
			Started:  true,
			ExitCode: h.ExitCode(),
			UptimeS:  h.Uptime().Seconds(),
			LogFile:  h.LogPath,
		})
	}
	return out
}

// ClientCount returns how many client processes actually launched.
func (s *Supervisor) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// UDPProbe is the default readiness probe: send a datagram at the server
// and wait briefly for any reply. On loopback an ICMP port-unreachable
// surfaces as a connection-refused read error, so "no listener yet" and
// "listener up but silent" are distinguishable from a reply.
func UDPProbe(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("CONNECT")); err != nil {
		return err
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 64)
	if _, err := conn.Read(buf); err != nil {
		return err
	}
	return nil
}
