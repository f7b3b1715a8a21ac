package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "runtime.backend")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidBackends returns the list of valid runtime backend values
func ValidBackends() []string {
	return []string{"docker", "podman", "shell"}
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all
// validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Events.HistoryLimit < 1 {
		errors = append(errors, ValidationError{
			Field:   "events.history_limit",
			Value:   c.Events.HistoryLimit,
			Message: "must be at least 1",
		})
	}

	if !slices.Contains(ValidBackends(), c.Runtime.Backend) {
		errors = append(errors, ValidationError{
			Field:   "runtime.backend",
			Value:   c.Runtime.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}
	if c.Runtime.CommandTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "runtime.command_timeout_seconds",
			Value:   c.Runtime.CommandTimeoutSeconds,
			Message: "must be at least 1",
		})
	}
	if c.Runtime.PrepareTimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "runtime.prepare_timeout_seconds",
			Value:   c.Runtime.PrepareTimeoutSeconds,
			Message: "must be at least 1",
		})
	}

	if c.Retry.StepAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.step_attempts",
			Value:   c.Retry.StepAttempts,
			Message: "must be at least 1",
		})
	}
	if c.Retry.CloneAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.clone_attempts",
			Value:   c.Retry.CloneAttempts,
			Message: "must be at least 1",
		})
	}

	if c.Docs.MaxDocs < 1 {
		errors = append(errors, ValidationError{
			Field:   "docs.max_docs",
			Value:   c.Docs.MaxDocs,
			Message: "must be at least 1",
		})
	}
	if c.Docs.MaxFileBytes < 1 {
		errors = append(errors, ValidationError{
			Field:   "docs.max_file_bytes",
			Value:   c.Docs.MaxFileBytes,
			Message: "must be at least 1",
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must not be negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must not be negative",
		})
	}

	return errors
}
