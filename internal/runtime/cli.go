package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ctavolazzi/novasystem/internal/errors"
)

// prepareTimeout bounds daemon probing and container startup.
const prepareTimeout = 60 * time.Second

// cliAdapter drives a container engine through its CLI. Docker and
// podman share a command surface, so one implementation serves both.
type cliAdapter struct {
	binary string
	runner CommandRunner
}

// NewDocker creates an adapter backed by the docker CLI.
func NewDocker() Adapter {
	return &cliAdapter{binary: BackendDocker, runner: NewExecRunner()}
}

// NewPodman creates an adapter backed by the podman CLI.
func NewPodman() Adapter {
	return &cliAdapter{binary: BackendPodman, runner: NewExecRunner()}
}

// NewCLIAdapterWithRunner creates a container adapter with a custom
// command runner. This is primarily useful for testing.
func NewCLIAdapterWithRunner(binary string, runner CommandRunner) Adapter {
	return &cliAdapter{binary: binary, runner: runner}
}

// Name returns the backend binary name.
func (a *cliAdapter) Name() string { return a.binary }

// Prepare verifies the engine is reachable, then starts a long-lived
// container with the repository bind-mounted at Workdir. The container
// idles until Exec calls arrive.
func (a *cliAdapter) Prepare(ctx context.Context, baseImage string, envVars map[string]string, repoPath string) (*Handle, error) {
	probeCtx, cancel := context.WithTimeout(ctx, prepareTimeout)
	defer cancel()

	if _, stderr, code, err := a.runner.Run(probeCtx, "", nil, a.binary, "info", "--format", "{{.ServerVersion}}"); err != nil || code != 0 {
		cause := err
		if cause == nil {
			cause = fmt.Errorf("%s info exited %d", a.binary, code)
		}
		return nil, errors.NewRuntimeError("engine unreachable", errors.Join(errors.ErrRuntimeUnavailable, cause)).
			WithBackend(a.binary).WithOutput(strings.TrimSpace(string(stderr)))
	}

	args := []string{"run", "-d",
		"-v", repoPath + ":" + Workdir,
		"-w", Workdir,
	}
	for k, v := range envVars {
		args = append(args, "-e", k+"="+v)
	}
	args = append(args, baseImage, "sleep", "infinity")

	stdout, stderr, code, err := a.runner.Run(probeCtx, "", nil, a.binary, args...)
	if err != nil {
		return nil, errors.NewRuntimeError("start container", err).WithBackend(a.binary)
	}
	if code != 0 {
		return nil, errors.NewRuntimeError("start container", fmt.Errorf("%s run exited %d", a.binary, code)).
			WithBackend(a.binary).WithOutput(strings.TrimSpace(string(stderr)))
	}

	containerID := strings.TrimSpace(string(stdout))
	if containerID == "" {
		return nil, errors.NewRuntimeError("start container", errors.New("no container ID returned")).
			WithBackend(a.binary)
	}

	return &Handle{ID: containerID, Backend: a.binary, Workdir: Workdir}, nil
}

// Exec runs one command inside the container via `exec sh -c`, bounded
// by timeout.
func (a *cliAdapter) Exec(ctx context.Context, h *Handle, command string, timeout time.Duration) (ExecResult, error) {
	if h == nil || h.ID == "" {
		return ExecResult{}, errors.NewRuntimeError("exec on closed handle", errors.ErrHandleClosed).
			WithBackend(a.binary)
	}

	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	stdout, stderr, code, err := a.runner.Run(execCtx, "", nil, a.binary,
		"exec", h.ID, "sh", "-c", command)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ExecResult{ExitCode: -1, Stdout: string(stdout), Stderr: string(stderr), Duration: elapsed},
				errors.NewTimeoutError("command execution", timeout).WithCause(err)
		}
		return ExecResult{ExitCode: -1, Stdout: string(stdout), Stderr: string(stderr), Duration: elapsed},
			errors.NewRuntimeError("exec command", err).WithBackend(a.binary).WithHandle(h.ID)
	}

	return ExecResult{
		ExitCode: code,
		Stdout:   string(stdout),
		Stderr:   string(stderr),
		Duration: elapsed,
	}, nil
}

// Teardown force-removes the container. Removing an already-gone
// container is not an error.
func (a *cliAdapter) Teardown(h *Handle) error {
	if h == nil || h.ID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), prepareTimeout)
	defer cancel()

	_, stderr, code, err := a.runner.Run(ctx, "", nil, a.binary, "rm", "-f", h.ID)
	id := h.ID
	h.ID = ""
	if err != nil {
		return errors.NewRuntimeError("remove container", err).WithBackend(a.binary).WithHandle(id)
	}
	if code != 0 && !strings.Contains(strings.ToLower(string(stderr)), "no such container") {
		return errors.NewRuntimeError("remove container",
			fmt.Errorf("%s rm exited %d", a.binary, code)).
			WithBackend(a.binary).WithHandle(id).WithOutput(strings.TrimSpace(string(stderr)))
	}
	return nil
}
