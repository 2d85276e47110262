// Package supervisor launches and tears down the processes of one run:
// the game server, the headless clients, staggered startup and the
// uniform TERM-then-KILL escalation on stop.
package supervisor

// Phase is the per-run supervision state machine.
type Phase int

const (
	// PhaseNotStarted is the initial state.
	PhaseNotStarted Phase = iota

	// PhaseServerStarting indicates the server process is being spawned
	// and probed for readiness.
	PhaseServerStarting

	// PhaseServerReady indicates the server answered (or outlived) the
	// readiness probe.
	PhaseServerReady

	// PhaseClientsStarting indicates clients are being launched with a
	// stagger between them.
	PhaseClientsStarting

	// PhaseRunning indicates all processes are up and the run is
	// holding for the scenario duration.
	PhaseRunning

	// PhaseStopping indicates teardown is in progress.
	PhaseStopping

	// PhaseStopped is terminal; every spawned process has exited.
	PhaseStopped
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseServerStarting:
		return "server_starting"
	case PhaseServerReady:
		return "server_ready"
	case PhaseClientsStarting:
		return "clients_starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
