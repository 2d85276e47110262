package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("netharness"))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render(fmt.Sprintf("elapsed %s", formatDuration(m.Elapsed()))))
	b.WriteString("\n\n")

	ev := m.event
	rows := []string{
		renderKeyValue("scenario", scenarioLabel(ev.Scenario, ev.Repetition)),
		renderKeyValue("phase", phaseStyle.Render(orDash(ev.Phase))),
		renderKeyValue("run", runLabel(ev.RunIndex, ev.TotalRuns)),
		renderKeyValue("processes", fmt.Sprintf("%d alive (%d clients + server)", ev.Alive, m.clients)),
	}

	if ev.Remaining > 0 || ev.Elapsed > 0 {
		total := ev.Elapsed + ev.Remaining
		progress := 0.0
		if total > 0 {
			progress = ev.Elapsed.Seconds() / total.Seconds()
		}
		rows = append(rows, renderKeyValue("traffic", renderProgressBar(progress, 30)))
	}

	b.WriteString(boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...)))
	b.WriteString("\n")

	tally := fmt.Sprintf("%s completed  %s failed",
		okStyle.Render(fmt.Sprintf("%d", m.completed)),
		renderFailCount(m.failed))
	b.WriteString(tally)
	b.WriteString("\n")

	b.WriteString(footerStyle.Render(fmt.Sprintf("interface %s  •  q to quit", m.iface)))
	b.WriteString("\n")

	return b.String()
}

func scenarioLabel(name string, rep int) string {
	if name == "" {
		return "—"
	}
	return fmt.Sprintf("%s (rep %d)", name, rep)
}

func runLabel(idx, total int) string {
	if total == 0 {
		return "—"
	}
	return fmt.Sprintf("%d of %d", idx, total)
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func renderFailCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return failStyle.Render(s)
	}
	return labelStyle.Render(s)
}
