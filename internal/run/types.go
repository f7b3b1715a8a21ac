// Package run defines the domain records for one onboarding attempt and
// the state machine that governs its lifecycle.
package run

import (
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle state of a run.
type State string

const (
	// StatePending indicates the run has been created but not started.
	StatePending State = "pending"

	// StateAnalyzing indicates strategy detection and documentation
	// discovery are in progress.
	StateAnalyzing State = "analyzing"

	// StateGated indicates commands are parsed and awaiting policy approval.
	StateGated State = "gated"

	// StateRunning indicates approved commands are executing.
	StateRunning State = "running"

	// StatePaused indicates execution is suspended at a step boundary.
	StatePaused State = "paused"

	// StateSuccess indicates all steps completed with no command failures.
	StateSuccess State = "success"

	// StateFailed indicates a command or step failed after exhausting retries,
	// or the policy rejected every command with no override.
	StateFailed State = "failed"

	// StateCancelled indicates the caller cancelled the run.
	StateCancelled State = "cancelled"

	// StateError indicates an unexpected internal failure.
	StateError State = "error"

	// StateArchived is a post-terminal bookkeeping state.
	StateArchived State = "archived"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// IsTerminal returns true if this state represents a final outcome.
// Archived is post-terminal rather than terminal: it is reachable only
// from a terminal state and carries no outcome of its own.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateCancelled, StateError:
		return true
	}
	return false
}

// Run is one end-to-end onboarding attempt for a single repository.
// It is created by the pipeline and mutated only through the state
// machine; once terminal, only archival may alter it.
type Run struct {
	ID           string     `json:"id"`
	RepoRef      string     `json:"repo_ref"`
	State        State      `json:"state"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// New creates a Run in the pending state for the given repository reference.
func New(repoRef string) *Run {
	return &Run{
		ID:        uuid.NewString(),
		RepoRef:   repoRef,
		State:     StatePending,
		CreatedAt: time.Now(),
	}
}

// Duration returns the elapsed time from creation to finish, or to now
// if the run has not finished.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.CreatedAt)
	}
	return time.Since(r.CreatedAt)
}

// Documentation is one discovered documentation file, read-only after
// the discovery step creates it.
type Documentation struct {
	Path    string `json:"path"`
	RawText string `json:"raw_text"`
	RunID   string `json:"run_id"`
}

// ParsedCommand is one candidate shell command extracted from
// documentation (or supplied by the detected strategy, in which case
// SourceDocPath is empty). Approved stays false until the policy step
// explicitly approves it; unapproved commands are never executed.
type ParsedCommand struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	SourceDocPath string `json:"source_doc_path,omitempty"`
	LineNumber    int    `json:"line_number,omitempty"`
	Approved      bool   `json:"approved"`

	// RejectionReason is set when the policy rejected the command.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// HeldReason is set while the command awaits an operator override.
	HeldReason string `json:"held_reason,omitempty"`
}

// NewParsedCommand creates an unapproved ParsedCommand.
func NewParsedCommand(text, sourceDocPath string, lineNumber int) ParsedCommand {
	return ParsedCommand{
		ID:            uuid.NewString(),
		Text:          text,
		SourceDocPath: sourceDocPath,
		LineNumber:    lineNumber,
	}
}

// CommandLog is the append-only execution record of one approved command.
// Entries exist only for commands that were both approved and actually
// invoked.
type CommandLog struct {
	CommandID  string    `json:"command_id"`
	Command    string    `json:"command"`
	ExitCode   int       `json:"exit_code"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
}
