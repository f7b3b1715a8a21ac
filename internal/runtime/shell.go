package runtime

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/ctavolazzi/novasystem/internal/errors"
)

// shellAdapter executes commands directly on the host with no
// isolation. Intended for trusted environments and tests; the policy
// gate is the only barrier in front of it, so container backends are
// preferred whenever available.
type shellAdapter struct {
	runner CommandRunner
	env    map[string]string
}

// NewShell creates the bare shell adapter.
func NewShell() Adapter {
	return &shellAdapter{runner: NewExecRunner()}
}

// NewShellWithRunner creates a shell adapter with a custom command
// runner. This is primarily useful for testing.
func NewShellWithRunner(runner CommandRunner) Adapter {
	return &shellAdapter{runner: runner}
}

// Name returns "shell".
func (a *shellAdapter) Name() string { return BackendShell }

// Prepare verifies a shell exists and returns a handle rooted at the
// repository path. The base image is ignored: there is no container.
func (a *shellAdapter) Prepare(ctx context.Context, baseImage string, envVars map[string]string, repoPath string) (*Handle, error) {
	if _, err := exec.LookPath("sh"); err != nil {
		return nil, errors.NewRuntimeError("no shell available", errors.Join(errors.ErrRuntimeUnavailable, err)).
			WithBackend(BackendShell)
	}
	if info, err := os.Stat(repoPath); err != nil || !info.IsDir() {
		return nil, errors.NewRuntimeError("repository path is not a directory", err).
			WithBackend(BackendShell)
	}

	a.env = envVars
	return &Handle{ID: repoPath, Backend: BackendShell, Workdir: repoPath}, nil
}

// Exec runs one command through `sh -c` in the repository directory.
func (a *shellAdapter) Exec(ctx context.Context, h *Handle, command string, timeout time.Duration) (ExecResult, error) {
	if h == nil || h.ID == "" {
		return ExecResult{}, errors.NewRuntimeError("exec on closed handle", errors.ErrHandleClosed).
			WithBackend(BackendShell)
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	env := os.Environ()
	for k, v := range a.env {
		env = append(env, k+"="+v)
	}

	start := time.Now()
	stdout, stderr, code, err := a.runner.Run(execCtx, h.Workdir, env, "sh", "-c", command)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ExecResult{ExitCode: -1, Stdout: string(stdout), Stderr: string(stderr), Duration: elapsed},
				errors.NewTimeoutError("command execution", timeout).WithCause(err)
		}
		return ExecResult{ExitCode: -1, Stdout: string(stdout), Stderr: string(stderr), Duration: elapsed},
			errors.NewRuntimeError("exec command", err).WithBackend(BackendShell)
	}

	return ExecResult{
		ExitCode: code,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		Duration: elapsed,
	}, nil
}

// Teardown clears the handle. There is no container to remove.
func (a *shellAdapter) Teardown(h *Handle) error {
	if h != nil {
		h.ID = ""
	}
	return nil
}
