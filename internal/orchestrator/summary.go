package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/gridclash/netharness/internal/metrics"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	summaryOKStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	summaryFailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	summaryDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// PrintBatchSummary writes the human-readable exit report: per-run
// outcomes followed by the batch aggregates.
func PrintBatchSummary(w io.Writer, result BatchResult, bs metrics.BatchSummary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, summaryTitleStyle.Render("Batch summary"))
	fmt.Fprintln(w, summaryDimStyle.Render("─────────────────────────────────────────────"))

	for _, run := range result.Runs {
		status := summaryOKStyle.Render("ok")
		detail := run.Dir
		if !run.Completed {
			status = summaryFailStyle.Render("FAILED")
			detail = run.Failure
		}
		fmt.Fprintf(w, "  %-14s rep %d  %s  %s\n",
			run.Scenario, run.Repetition, status, summaryDimStyle.Render(detail))
	}

	fmt.Fprintln(w, summaryDimStyle.Render("─────────────────────────────────────────────"))
	fmt.Fprintf(w, "  runs:      %s completed, %s failed\n",
		summaryOKStyle.Render(fmt.Sprintf("%d", result.Completed)),
		renderFailed(result.Failed))
	fmt.Fprintf(w, "  elapsed:   %s\n", bs.Elapsed.Round(time.Second))

	if bs.UptimeP50 > 0 {
		fmt.Fprintf(w, "  client/server uptime: p50=%s p95=%s p99=%s\n",
			bs.UptimeP50.Round(100*time.Millisecond),
			bs.UptimeP95.Round(100*time.Millisecond),
			bs.UptimeP99.Round(100*time.Millisecond))
	}
	fmt.Fprintln(w)
}

func renderFailed(n int) string {
	s := fmt.Sprintf("%d", n)
	if n > 0 {
		return summaryFailStyle.Render(s)
	}
	return summaryDimStyle.Render(s)
}
