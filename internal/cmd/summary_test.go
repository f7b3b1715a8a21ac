package cmd

import (
	"strings"
	"testing"

	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/run"
	"github.com/ctavolazzi/novasystem/internal/store"
)

func TestRenderSummary(t *testing.T) {
	r := run.New("https://github.com/org/repo")
	r.State = run.StateSuccess
	r.Summary = "strategy=python commands: 3 approved, 3 executed, 0 failed"

	rec := &store.RunRecord{
		Run:      *r,
		Strategy: "python",
		Commands: []run.ParsedCommand{
			{ID: "cmd-1", Text: "pip install -r requirements.txt", Approved: true},
			{ID: "cmd-2", Text: "rm -rf /", RejectionReason: "destructive recursive delete"},
		},
		Logs: []run.CommandLog{
			{CommandID: "cmd-1", Command: "pip install -r requirements.txt", ExitCode: 0, DurationMs: 1200},
		},
	}

	out := renderSummary(r, rec)
	for _, want := range []string{
		r.ID,
		"https://github.com/org/repo",
		"success",
		"strategy=python",
		"pip install -r requirements.txt",
		"1200ms",
		"blocked",
		"rm -rf /",
		"destructive recursive delete",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderSummary_FailedCommand(t *testing.T) {
	r := run.New("/srv/repos/app")
	r.State = run.StateFailed
	r.Summary = `"make install" exited 2: command exited non-zero`

	rec := &store.RunRecord{
		Run: *r,
		Logs: []run.CommandLog{
			{CommandID: "cmd-1", Command: "make install", ExitCode: 2, DurationMs: 300},
		},
	}

	out := renderSummary(r, rec)
	if !strings.Contains(out, "failed") {
		t.Errorf("state missing:\n%s", out)
	}
	if !strings.Contains(out, "(2)") {
		t.Errorf("exit code missing:\n%s", out)
	}
}

func TestRenderSummary_NoRecord(t *testing.T) {
	r := run.New("/srv/repos/app")
	r.State = run.StateGated
	r.Summary = "manual intervention required: no approved commands"

	out := renderSummary(r, nil)
	if !strings.Contains(out, "gated") || !strings.Contains(out, "manual intervention") {
		t.Errorf("summary = %q", out)
	}
}

func TestRenderEvents(t *testing.T) {
	events := []event.Event{
		event.NewRunCreatedEvent("run-1", "repo"),
		event.NewStepStartedEvent("run-1", "clone", 1),
	}

	out := renderEvents(events)
	if !strings.Contains(out, event.TypeRunCreated) || !strings.Contains(out, event.TypeStepStarted) {
		t.Errorf("events output = %q", out)
	}
	// Timestamps are rendered in wall-clock form.
	if !strings.Contains(out, events[0].Timestamp().Format("15:04:05.000")) {
		t.Errorf("no timestamp in output:\n%s", out)
	}
}
