package event

import "time"

// Event is the interface that all events must implement.
// It provides a common way to identify, scope, and timestamp events.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "run.created", "step.failed")
	EventType() string

	// RunID returns the identifier of the run this event belongs to.
	// Events not tied to a run (e.g., handler errors from global
	// subscribers) return an empty string.
	RunID() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type tags published by the pipeline and its collaborators.
const (
	TypeRunCreated       = "run.created"
	TypeRunStatusChanged = "run.status_changed"
	TypeRunCompleted     = "run.completed"
	TypeStepStarted      = "step.started"
	TypeStepCompleted    = "step.completed"
	TypeStepFailed       = "step.failed"
	TypeCommandQueued    = "command.queued"
	TypeCommandStarted   = "command.started"
	TypeCommandOutput    = "command.output"
	TypeCommandCompleted = "command.completed"
	TypePolicyViolation  = "policy.violation"
	TypePolicyOverride   = "policy.override"
	TypeStrategyDetected = "strategy.detected"
	TypeHandlerError     = "bus.handler_error"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	runID     string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) RunID() string        { return e.runID }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

// newBaseEvent creates a baseEvent with the current time.
func newBaseEvent(eventType, runID string) baseEvent {
	return baseEvent{
		eventType: eventType,
		runID:     runID,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunCreatedEvent is emitted when a new run is created in the pending state.
type RunCreatedEvent struct {
	baseEvent
	RepoRef string // Repository URL or local path being onboarded
}

// NewRunCreatedEvent creates a RunCreatedEvent.
func NewRunCreatedEvent(runID, repoRef string) RunCreatedEvent {
	return RunCreatedEvent{
		baseEvent: newBaseEvent(TypeRunCreated, runID),
		RepoRef:   repoRef,
	}
}

// RunStatusChangedEvent is emitted on every state machine transition.
type RunStatusChangedEvent struct {
	baseEvent
	From string // Previous state
	To   string // New state
}

// NewRunStatusChangedEvent creates a RunStatusChangedEvent.
func NewRunStatusChangedEvent(runID, from, to string) RunStatusChangedEvent {
	return RunStatusChangedEvent{
		baseEvent: newBaseEvent(TypeRunStatusChanged, runID),
		From:      from,
		To:        to,
	}
}

// RunCompletedEvent is emitted once a run reaches a terminal state.
// The persistence sink subscribes to this event to write the run summary.
type RunCompletedEvent struct {
	baseEvent
	FinalState string // Terminal state: success, failed, cancelled, error
	Summary    string // One-line human-readable summary
	DurationMs int64  // Total run duration in milliseconds
}

// NewRunCompletedEvent creates a RunCompletedEvent.
func NewRunCompletedEvent(runID, finalState, summary string, durationMs int64) RunCompletedEvent {
	return RunCompletedEvent{
		baseEvent:  newBaseEvent(TypeRunCompleted, runID),
		FinalState: finalState,
		Summary:    summary,
		DurationMs: durationMs,
	}
}

// -----------------------------------------------------------------------------
// Step Events
// -----------------------------------------------------------------------------

// StepStartedEvent is emitted before each pipeline step executes.
type StepStartedEvent struct {
	baseEvent
	Step    string // Step name (e.g., "clone", "detect_strategy")
	Attempt int    // 1-based attempt number (retries increment this)
}

// NewStepStartedEvent creates a StepStartedEvent.
func NewStepStartedEvent(runID, step string, attempt int) StepStartedEvent {
	return StepStartedEvent{
		baseEvent: newBaseEvent(TypeStepStarted, runID),
		Step:      step,
		Attempt:   attempt,
	}
}

// StepCompletedEvent is emitted after a step completes successfully.
// Skipped is true when a skippable step declined to do any work
// (e.g., documentation discovery finding zero files).
type StepCompletedEvent struct {
	baseEvent
	Step    string
	Attempt int
	Skipped bool
}

// NewStepCompletedEvent creates a StepCompletedEvent.
func NewStepCompletedEvent(runID, step string, attempt int, skipped bool) StepCompletedEvent {
	return StepCompletedEvent{
		baseEvent: newBaseEvent(TypeStepCompleted, runID),
		Step:      step,
		Attempt:   attempt,
		Skipped:   skipped,
	}
}

// StepFailedEvent is emitted when a step attempt fails. The orchestrator
// may still retry the step; WillRetry distinguishes a retryable failure
// from the final one.
type StepFailedEvent struct {
	baseEvent
	Step      string
	Attempt   int
	Error     string
	WillRetry bool
}

// NewStepFailedEvent creates a StepFailedEvent.
func NewStepFailedEvent(runID, step string, attempt int, errMsg string, willRetry bool) StepFailedEvent {
	return StepFailedEvent{
		baseEvent: newBaseEvent(TypeStepFailed, runID),
		Step:      step,
		Attempt:   attempt,
		Error:     errMsg,
		WillRetry: willRetry,
	}
}

// -----------------------------------------------------------------------------
// Command Events
// -----------------------------------------------------------------------------

// CommandQueuedEvent is emitted when an approved command enters the
// execution queue.
type CommandQueuedEvent struct {
	baseEvent
	CommandID string // Parsed command identifier
	Command   string // Command text
	Source    string // Originating documentation path ("" for strategy commands)
}

// NewCommandQueuedEvent creates a CommandQueuedEvent.
func NewCommandQueuedEvent(runID, commandID, command, source string) CommandQueuedEvent {
	return CommandQueuedEvent{
		baseEvent: newBaseEvent(TypeCommandQueued, runID),
		CommandID: commandID,
		Command:   command,
		Source:    source,
	}
}

// CommandStartedEvent is emitted immediately before a command executes
// inside the runtime.
type CommandStartedEvent struct {
	baseEvent
	CommandID string
	Command   string
}

// NewCommandStartedEvent creates a CommandStartedEvent.
func NewCommandStartedEvent(runID, commandID, command string) CommandStartedEvent {
	return CommandStartedEvent{
		baseEvent: newBaseEvent(TypeCommandStarted, runID),
		CommandID: commandID,
		Command:   command,
	}
}

// CommandOutputEvent carries captured output from a completed command.
// Stream is "stdout" or "stderr".
type CommandOutputEvent struct {
	baseEvent
	CommandID string
	Stream    string
	Output    string
}

// NewCommandOutputEvent creates a CommandOutputEvent.
func NewCommandOutputEvent(runID, commandID, stream, output string) CommandOutputEvent {
	return CommandOutputEvent{
		baseEvent: newBaseEvent(TypeCommandOutput, runID),
		CommandID: commandID,
		Stream:    stream,
		Output:    output,
	}
}

// CommandCompletedEvent is emitted once a command finishes, regardless
// of exit code.
type CommandCompletedEvent struct {
	baseEvent
	CommandID  string
	Command    string
	ExitCode   int
	DurationMs int64
}

// NewCommandCompletedEvent creates a CommandCompletedEvent.
func NewCommandCompletedEvent(runID, commandID, command string, exitCode int, durationMs int64) CommandCompletedEvent {
	return CommandCompletedEvent{
		baseEvent:  newBaseEvent(TypeCommandCompleted, runID),
		CommandID:  commandID,
		Command:    command,
		ExitCode:   exitCode,
		DurationMs: durationMs,
	}
}

// -----------------------------------------------------------------------------
// Policy Events
// -----------------------------------------------------------------------------

// PolicyViolationEvent is emitted when the command policy rejects a
// command. Rejected commands are never executed.
type PolicyViolationEvent struct {
	baseEvent
	CommandID string
	Command   string
	Rule      string // Name of the rule that rejected the command
	Reason    string
}

// NewPolicyViolationEvent creates a PolicyViolationEvent.
func NewPolicyViolationEvent(runID, commandID, command, rule, reason string) PolicyViolationEvent {
	return PolicyViolationEvent{
		baseEvent: newBaseEvent(TypePolicyViolation, runID),
		CommandID: commandID,
		Command:   command,
		Rule:      rule,
		Reason:    reason,
	}
}

// PolicyOverrideEvent is emitted when an operator promotes a held
// command to approved.
type PolicyOverrideEvent struct {
	baseEvent
	CommandID     string
	Command       string
	Justification string
}

// NewPolicyOverrideEvent creates a PolicyOverrideEvent.
func NewPolicyOverrideEvent(runID, commandID, command, justification string) PolicyOverrideEvent {
	return PolicyOverrideEvent{
		baseEvent:     newBaseEvent(TypePolicyOverride, runID),
		CommandID:     commandID,
		Command:       command,
		Justification: justification,
	}
}

// -----------------------------------------------------------------------------
// Strategy Events
// -----------------------------------------------------------------------------

// StrategyDetectedEvent is emitted when the strategy registry selects a
// build strategy for the repository.
type StrategyDetectedEvent struct {
	baseEvent
	Strategy   string  // Strategy name (e.g., "python", "node", "manual")
	Confidence float64 // Detection confidence in [0.0, 1.0]
	BaseImage  string  // Container image the strategy will execute in
}

// NewStrategyDetectedEvent creates a StrategyDetectedEvent.
func NewStrategyDetectedEvent(runID, strategy string, confidence float64, baseImage string) StrategyDetectedEvent {
	return StrategyDetectedEvent{
		baseEvent:  newBaseEvent(TypeStrategyDetected, runID),
		Strategy:   strategy,
		Confidence: confidence,
		BaseImage:  baseImage,
	}
}

// -----------------------------------------------------------------------------
// Bus Events
// -----------------------------------------------------------------------------

// HandlerErrorEvent is emitted when a subscribed handler panics while
// processing an event. Publishing never propagates handler failures to
// the publisher; they surface here instead.
type HandlerErrorEvent struct {
	baseEvent
	SourceType string // EventType of the event that triggered the panic
	Error      string
}

// NewHandlerErrorEvent creates a HandlerErrorEvent.
func NewHandlerErrorEvent(runID, sourceType, errMsg string) HandlerErrorEvent {
	return HandlerErrorEvent{
		baseEvent:  newBaseEvent(TypeHandlerError, runID),
		SourceType: sourceType,
		Error:      errMsg,
	}
}
