package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/run"
	"github.com/ctavolazzi/novasystem/internal/store"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func stateStyle(s run.State) lipgloss.Style {
	switch s {
	case run.StateSuccess:
		return okStyle
	case run.StateCancelled, run.StateGated, run.StatePaused:
		return warnStyle
	default:
		return errStyle
	}
}

// renderSummary formats the final run report: state, repo, summary
// line, and per-command results when a persisted record is available.
func renderSummary(r *run.Run, rec *store.RunRecord) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Run "+r.ID) + "\n")
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("repo:"), r.RepoRef))
	b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("state:"), stateStyle(r.State).Render(r.State.String())))
	if r.Summary != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("summary:"), r.Summary))
	}
	if r.ErrorMessage != "" && r.ErrorMessage != r.Summary {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("reason:"), errStyle.Render(r.ErrorMessage)))
	}

	if rec == nil {
		return b.String()
	}

	if rec.Strategy != "" {
		b.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render("strategy:"), rec.Strategy))
	}
	for _, log := range rec.Logs {
		mark := okStyle.Render("✓")
		if log.ExitCode != 0 {
			mark = errStyle.Render(fmt.Sprintf("✗ (%d)", log.ExitCode))
		}
		b.WriteString(fmt.Sprintf("  %s %s %s\n", mark, log.Command, dimStyle.Render(fmt.Sprintf("%dms", log.DurationMs))))
	}
	for _, cmd := range rec.Commands {
		if cmd.RejectionReason != "" {
			b.WriteString(fmt.Sprintf("  %s %s %s\n",
				errStyle.Render("blocked"), cmd.Text, dimStyle.Render(cmd.RejectionReason)))
		}
	}

	return b.String()
}

// renderEvents formats the event history for --verbose output.
func renderEvents(events []event.Event) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Events") + "\n")
	for _, e := range events {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			dimStyle.Render(e.Timestamp().Format("15:04:05.000")), e.EventType()))
	}
	return b.String()
}
