// Package tui provides a live terminal dashboard for the scenario batch.
//
// The TUI uses Bubble Tea for the application framework and Lipgloss for
// styling. It shows the active scenario, the run's phase, a progress bar
// for the traffic window and the batch tally.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gridclash/netharness/internal/orchestrator"
)

// TickMsg is sent periodically to refresh the elapsed clock.
type TickMsg time.Time

// EventMsg carries an orchestrator progress event.
type EventMsg orchestrator.Event

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// Model represents the TUI state.
type Model struct {
	clients   int
	iface     string
	totalRuns int

	event     orchestrator.Event
	completed int
	failed    int
	startTime time.Time

	width    int
	height   int
	quitting bool
}

// Config holds TUI configuration.
type Config struct {
	Clients   int
	Interface string
	TotalRuns int
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		clients:   cfg.Clients,
		iface:     cfg.Interface,
		totalRuns: cfg.TotalRuns,
		startTime: time.Now(),
		width:     80,
		height:    24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		return m, tickCmd()

	case EventMsg:
		ev := orchestrator.Event(msg)
		if ev.RunFinished {
			if ev.RunCompleted {
				m.completed++
			} else {
				m.failed++
			}
		} else {
			m.event = ev
		}
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// tickCmd returns a command that sends a tick after 500ms.
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Elapsed returns the time since the batch started.
func (m Model) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// SendEvent forwards an orchestrator event to the TUI.
func SendEvent(p *tea.Program, ev orchestrator.Event) {
	if p != nil {
		p.Send(EventMsg(ev))
	}
}

// SendQuit sends a quit message to the TUI.
func SendQuit(p *tea.Program) {
	if p != nil {
		p.Send(QuitMsg{})
	}
}

// formatDuration formats a duration as HH:MM:SS.
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
