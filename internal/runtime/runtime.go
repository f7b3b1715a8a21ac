// Package runtime abstracts the execution backend that runs approved
// commands. The pipeline only sees the Adapter interface; concrete
// backends wrap the docker or podman CLI, or a bare shell for
// environments with no container engine.
package runtime

import (
	"context"
	"time"

	"github.com/ctavolazzi/novasystem/internal/errors"
)

// Backend names accepted by Select.
const (
	BackendDocker = "docker"
	BackendPodman = "podman"
	BackendShell  = "shell"
)

// Workdir is the path the repository is mounted at inside a container.
const Workdir = "/workspace"

// Handle identifies one prepared execution context. It is owned by a
// single run and must be torn down on every exit path.
type Handle struct {
	ID      string // Container ID, or the workdir for the shell backend
	Backend string
	Workdir string
}

// ExecResult is the outcome of one command execution. A nonzero
// ExitCode is an application-level outcome, not an adapter error.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// Adapter is the execution backend contract.
type Adapter interface {
	// Name returns the backend name.
	Name() string

	// Prepare creates and starts an isolated execution context with the
	// repository available at the handle's workdir. It fails with an
	// error wrapping errors.ErrRuntimeUnavailable if the backend cannot
	// be reached; that failure is terminal for the run and not retried.
	Prepare(ctx context.Context, baseImage string, envVars map[string]string, repoPath string) (*Handle, error)

	// Exec runs one shell command inside the prepared context, bounded
	// by timeout. The returned error covers only infrastructure
	// failures; a command that runs and exits nonzero returns a nil
	// error with the exit code in the result.
	Exec(ctx context.Context, h *Handle, command string, timeout time.Duration) (ExecResult, error)

	// Teardown releases the execution context. It is idempotent and must
	// be invoked on every exit path once Prepare has succeeded.
	Teardown(h *Handle) error
}

// Select returns the adapter for the named backend.
func Select(backend string) (Adapter, error) {
	switch backend {
	case BackendDocker:
		return NewDocker(), nil
	case BackendPodman:
		return NewPodman(), nil
	case BackendShell:
		return NewShell(), nil
	default:
		return nil, errors.NewValidationError("unknown runtime backend").
			WithField("backend").WithValue(backend)
	}
}
