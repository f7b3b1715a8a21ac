package pipeline

import (
	"github.com/ctavolazzi/novasystem/internal/gitrepo"
	"github.com/ctavolazzi/novasystem/internal/run"
	"github.com/ctavolazzi/novasystem/internal/strategy"
)

// Context is the mutable working state threaded through one run's
// steps. It is owned exclusively by the run's worker goroutine for the
// duration of one Execute call and is never shared between runs.
type Context struct {
	RunID   string
	RepoRef string

	// Workspace is the resolved local checkout, set by the clone step.
	Workspace *gitrepo.Workspace

	// Strategy and Confidence are set by the detection step.
	Strategy   strategy.Strategy
	Confidence float64

	// Documents accumulates discovered documentation files.
	Documents []run.Documentation

	// Commands accumulates every candidate command: strategy-supplied
	// install commands first, then doc-derived ones. The policy step
	// sets Approved on each.
	Commands []run.ParsedCommand

	// Logs accumulates execution records for commands that actually ran.
	Logs []run.CommandLog

	// Metadata carries free-form step annotations into the summary.
	Metadata map[string]string
}

// NewContext creates a fresh context for one run.
func NewContext(runID, repoRef string) *Context {
	return &Context{
		RunID:    runID,
		RepoRef:  repoRef,
		Metadata: make(map[string]string),
	}
}

// ApprovedCommands returns the commands cleared for execution, in order.
func (c *Context) ApprovedCommands() []run.ParsedCommand {
	var approved []run.ParsedCommand
	for _, cmd := range c.Commands {
		if cmd.Approved {
			approved = append(approved, cmd)
		}
	}
	return approved
}

// RepoPath returns the local path of the resolved repository, or ""
// before the clone step has run.
func (c *Context) RepoPath() string {
	if c.Workspace == nil {
		return ""
	}
	return c.Workspace.Path
}
