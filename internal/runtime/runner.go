package runtime

import (
	"bytes"
	"context"
	"os/exec"

	"github.com/ctavolazzi/novasystem/internal/errors"
)

// CommandRunner abstracts process execution for testability. Tests
// substitute a fake runner; production code uses execRunner.
type CommandRunner interface {
	// Run executes a command and returns captured stdout, stderr, and
	// the exit code. err is non-nil only for infrastructure failures
	// (binary missing, context cancelled before completion); a nonzero
	// exit code alone returns err == nil.
	Run(ctx context.Context, dir string, env []string, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)
}

// execRunner executes commands with os/exec.
type execRunner struct{}

// NewExecRunner creates a CommandRunner backed by os/exec.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

// Run executes a command, separating stdout and stderr.
func (execRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if env != nil {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}

	// Context expiry wins over the generic exit error so callers can
	// distinguish a timeout from an ordinary failure.
	if ctxErr := ctx.Err(); ctxErr != nil {
		return stdout.Bytes(), stderr.Bytes(), -1, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
	}
	return stdout.Bytes(), stderr.Bytes(), -1, err
}
