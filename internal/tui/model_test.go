package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gridclash/netharness/internal/orchestrator"
)

func testModel() Model {
	return New(Config{Clients: 4, Interface: "lo", TotalRuns: 15})
}

func TestModel_EventUpdates(t *testing.T) {
	m := testModel()

	ev := orchestrator.Event{
		Scenario:   "loss_5pct",
		Repetition: 2,
		Phase:      orchestrator.PhaseRunning,
		RunIndex:   7,
		TotalRuns:  15,
		Elapsed:    10 * time.Second,
		Remaining:  20 * time.Second,
		Alive:      5,
	}

	updated, _ := m.Update(EventMsg(ev))
	m = updated.(Model)

	view := m.View()
	if !strings.Contains(view, "loss_5pct") {
		t.Errorf("view should show the scenario:\n%s", view)
	}
	if !strings.Contains(view, "running") {
		t.Errorf("view should show the phase:\n%s", view)
	}
	if !strings.Contains(view, "7 of 15") {
		t.Errorf("view should show batch position:\n%s", view)
	}
}

func TestModel_RunFinishedTally(t *testing.T) {
	m := testModel()

	for _, completed := range []bool{true, true, false} {
		updated, _ := m.Update(EventMsg(orchestrator.Event{RunFinished: true, RunCompleted: completed}))
		m = updated.(Model)
	}

	if m.completed != 2 {
		t.Errorf("completed = %d, want 2", m.completed)
	}
	if m.failed != 1 {
		t.Errorf("failed = %d, want 1", m.failed)
	}

	// Tally events must not clobber the displayed run state.
	if m.event.RunFinished {
		t.Error("displayed event should not be a tally event")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		m := testModel()
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
		if key == "esc" {
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		}
		if key == "ctrl+c" {
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		}

		updated, cmd := m.Update(msg)
		m = updated.(Model)
		if cmd == nil {
			t.Errorf("key %q should quit", key)
		}
		if m.View() != "" {
			t.Errorf("quitting view should be empty for key %q", key)
		}
	}
}

func TestModel_WindowResize(t *testing.T) {
	m := testModel()
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = updated.(Model)

	if m.width != 120 || m.height != 40 {
		t.Errorf("size = %dx%d, want 120x40", m.width, m.height)
	}
}

func TestFormatDuration(t *testing.T) {
	testCases := []struct {
		d        time.Duration
		expected string
	}{
		{0, "00:00:00"},
		{65 * time.Second, "00:01:05"},
		{3*time.Hour + 2*time.Minute + time.Second, "03:02:01"},
	}
	for _, tc := range testCases {
		if got := formatDuration(tc.d); got != tc.expected {
			t.Errorf("formatDuration(%v) = %q, want %q", tc.d, got, tc.expected)
		}
	}
}
