package orchestrator

import "time"

// Event phases, in the order a run normally passes through them.
const (
	PhaseImpairing       = "impairing"
	PhaseStartingServer  = "starting server"
	PhaseStartingClients = "starting clients"
	PhaseRunning         = "running"
	PhaseStopping        = "stopping"
	PhaseCollecting      = "collecting"
	PhaseCooldown        = "cooldown"
)

// Event is a progress update for the status display. Events are
// best-effort: the orchestrator drops them rather than block a run.
type Event struct {
	Scenario   string
	Repetition int
	Phase      string

	RunIndex  int
	TotalRuns int

	Elapsed   time.Duration
	Remaining time.Duration
	Alive     int

	// RunFinished marks the event closing out a run; RunCompleted then
	// says whether it completed or failed.
	RunFinished  bool
	RunCompleted bool
}
