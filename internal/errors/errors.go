// Package errors provides centralized error definitions and error handling
// utilities for the onboarding pipeline. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and
// error classification helpers.
//
// Domain-specific errors represent errors from specific subsystems:
//   - RunError: errors related to run lifecycle management
//   - StrategyError: errors related to build strategy detection
//   - PolicyError: errors related to command policy evaluation
//   - RuntimeError: errors related to the container/shell runtime
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrRuntimeUnavailable) { ... }
//
//	var runtimeErr *errors.RuntimeError
//	if errors.As(err, &runtimeErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Run-related sentinel errors
var (
	// ErrRunNotFound indicates that a run could not be found.
	ErrRunNotFound = New("run not found")
	// ErrRunTerminal indicates an operation on a run already in a terminal state.
	ErrRunTerminal = New("run is in a terminal state")
	// ErrInvalidTransition indicates a run state transition the lifecycle
	// table does not permit. This is a programming or integration error.
	ErrInvalidTransition = New("invalid state transition")
)

// Strategy-related sentinel errors
var (
	// ErrNoStrategy indicates that no registered strategy matched the repository.
	ErrNoStrategy = New("no strategy matched repository")
	// ErrStrategyRegistered indicates a duplicate strategy registration.
	ErrStrategyRegistered = New("strategy already registered")
)

// Policy-related sentinel errors
var (
	// ErrCommandRejected indicates the policy rejected a command.
	ErrCommandRejected = New("command rejected by policy")
	// ErrNotHeld indicates an override for a command that is not held.
	ErrNotHeld = New("command is not held for override")
	// ErrAllCommandsRejected indicates every candidate command was rejected.
	ErrAllCommandsRejected = New("all commands rejected by policy")
)

// Runtime-related sentinel errors
var (
	// ErrRuntimeUnavailable indicates the execution backend cannot be
	// reached (e.g., the docker daemon is not running). Terminal for the
	// run and never retried.
	ErrRuntimeUnavailable = New("runtime unavailable")
	// ErrHandleClosed indicates an exec against a handle that was torn down.
	ErrHandleClosed = New("runtime handle closed")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// PipelineError is the base interface for all pipeline errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type PipelineError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// RunError represents errors related to run lifecycle management.
//
// Example:
//
//	err := errors.NewRunError("transition rejected", errors.ErrInvalidTransition).
//		WithRunID("run-1").WithState("pending")
type RunError struct {
	baseError
	RunID string
	State string
}

// NewRunError creates a new RunError.
func NewRunError(message string, cause error) *RunError {
	return &RunError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithRunID adds a run ID to the error context.
func (e *RunError) WithRunID(id string) *RunError {
	e.RunID = id
	return e
}

// WithState adds the run's current state to the error context.
func (e *RunError) WithState(state string) *RunError {
	e.State = state
	return e
}

// WithSeverity sets the error severity.
func (e *RunError) WithSeverity(s Severity) *RunError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *RunError) Error() string {
	var parts []string
	if e.RunID != "" {
		parts = append(parts, fmt.Sprintf("run=%s", e.RunID))
	}
	if e.State != "" {
		parts = append(parts, fmt.Sprintf("state=%s", e.State))
	}
	return formatPrefixed("run error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *RunError) Is(target error) bool {
	if _, ok := target.(*RunError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StrategyError represents errors related to build strategy detection.
type StrategyError struct {
	baseError
	Strategy string
	RepoPath string
}

// NewStrategyError creates a new StrategyError.
func NewStrategyError(message string, cause error) *StrategyError {
	return &StrategyError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithStrategy adds a strategy name to the error context.
func (e *StrategyError) WithStrategy(name string) *StrategyError {
	e.Strategy = name
	return e
}

// WithRepoPath adds the repository path to the error context.
func (e *StrategyError) WithRepoPath(path string) *StrategyError {
	e.RepoPath = path
	return e
}

// Error returns the formatted error message.
func (e *StrategyError) Error() string {
	var parts []string
	if e.Strategy != "" {
		parts = append(parts, fmt.Sprintf("strategy=%s", e.Strategy))
	}
	if e.RepoPath != "" {
		parts = append(parts, fmt.Sprintf("repo=%s", e.RepoPath))
	}
	return formatPrefixed("strategy error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *StrategyError) Is(target error) bool {
	if _, ok := target.(*StrategyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// PolicyError represents errors related to command policy evaluation.
// Note that ordinary rejections are expected outcomes surfaced as events,
// not errors; PolicyError covers failures of the policy machinery itself
// (bad rule config, override of an unknown command).
type PolicyError struct {
	baseError
	Rule      string
	CommandID string
}

// NewPolicyError creates a new PolicyError.
func NewPolicyError(message string, cause error) *PolicyError {
	return &PolicyError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithRule adds a rule name to the error context.
func (e *PolicyError) WithRule(rule string) *PolicyError {
	e.Rule = rule
	return e
}

// WithCommandID adds a command ID to the error context.
func (e *PolicyError) WithCommandID(id string) *PolicyError {
	e.CommandID = id
	return e
}

// Error returns the formatted error message.
func (e *PolicyError) Error() string {
	var parts []string
	if e.Rule != "" {
		parts = append(parts, fmt.Sprintf("rule=%s", e.Rule))
	}
	if e.CommandID != "" {
		parts = append(parts, fmt.Sprintf("command=%s", e.CommandID))
	}
	return formatPrefixed("policy error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *PolicyError) Is(target error) bool {
	if _, ok := target.(*PolicyError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RuntimeError represents errors from the container/shell runtime adapter.
// A nonzero command exit code is not a RuntimeError; only infrastructure
// failures (daemon unreachable, container creation failed) are.
type RuntimeError struct {
	baseError
	Backend string // "docker", "podman", or "shell"
	Handle  string
	Output  string // Captured backend output, if any
}

// NewRuntimeError creates a new RuntimeError.
func NewRuntimeError(message string, cause error) *RuntimeError {
	return &RuntimeError{
		baseError: baseError{
			message:  message,
			cause:    cause,
			severity: SeverityError,
		},
	}
}

// WithBackend adds the backend name to the error context.
func (e *RuntimeError) WithBackend(backend string) *RuntimeError {
	e.Backend = backend
	return e
}

// WithHandle adds the execution handle ID to the error context.
func (e *RuntimeError) WithHandle(handle string) *RuntimeError {
	e.Handle = handle
	return e
}

// WithOutput adds captured backend output to the error context.
func (e *RuntimeError) WithOutput(output string) *RuntimeError {
	e.Output = output
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *RuntimeError) WithRetryable(r bool) *RuntimeError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *RuntimeError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, fmt.Sprintf("backend=%s", e.Backend))
	}
	if e.Handle != "" {
		parts = append(parts, fmt.Sprintf("handle=%s", e.Handle))
	}

	msg := formatPrefixed("runtime error", parts, e.message, e.cause)
	if e.Output != "" {
		msg = fmt.Sprintf("%s\nbackend output: %s", msg, e.Output)
	}
	return msg
}

// Is checks if this error matches the target.
func (e *RuntimeError) Is(target error) bool {
	if _, ok := target.(*RuntimeError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("run", "abc123")
//	fmt.Println(err) // "run 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:  fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity: SeverityWarning,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			severity: SeverityWarning,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatPrefixed("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true, // Timeouts are generally retryable
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. Runtime-unavailable errors are explicitly
// non-retryable regardless of wrapping.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if Is(err, ErrRuntimeUnavailable) {
		return false
	}

	var perr PipelineError
	if As(err, &perr) {
		return perr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement PipelineError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var perr PipelineError
	if As(err, &perr) {
		return perr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// formatPrefixed builds the "<prefix> [k=v, ...]: message: cause" form
// shared by the domain error types.
func formatPrefixed(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}
