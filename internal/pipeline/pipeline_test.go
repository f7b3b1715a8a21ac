package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ctavolazzi/novasystem/internal/errors"
	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/policy"
	"github.com/ctavolazzi/novasystem/internal/run"
	"github.com/ctavolazzi/novasystem/internal/runtime"
	"github.com/ctavolazzi/novasystem/internal/strategy"
)

// fakeAdapter is an in-memory runtime.Adapter. Exit codes are scripted
// per command text; everything else succeeds.
type fakeAdapter struct {
	mu         sync.Mutex
	prepareErr error
	execErr    error
	exitCodes  map[string]int
	onExec     func(command string)

	baseImage string
	prepares  int
	teardowns int
	execs     []string
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Prepare(ctx context.Context, baseImage string, envVars map[string]string, repoPath string) (*runtime.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	f.prepares++
	f.baseImage = baseImage
	return &runtime.Handle{ID: "fake-ctr", Backend: "fake", Workdir: runtime.Workdir}, nil
}

func (f *fakeAdapter) Exec(ctx context.Context, h *runtime.Handle, command string, timeout time.Duration) (runtime.ExecResult, error) {
	f.mu.Lock()
	f.execs = append(f.execs, command)
	hook := f.onExec
	err := f.execErr
	code := f.exitCodes[command]
	f.mu.Unlock()

	if hook != nil {
		hook(command)
	}
	if err != nil {
		return runtime.ExecResult{ExitCode: -1}, err
	}
	return runtime.ExecResult{ExitCode: code, Stdout: "ok\n", Duration: 5 * time.Millisecond}, nil
}

func (f *fakeAdapter) Teardown(h *runtime.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.teardowns++
	if h != nil {
		h.ID = ""
	}
	return nil
}

func (f *fakeAdapter) executed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.execs...)
}

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func newOrchestrator(t *testing.T, bus *event.Bus, adapter runtime.Adapter, settings Settings, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Bus:      bus,
		Registry: strategy.NewDefaultRegistry(),
		Policy:   policy.New(),
		Adapter:  adapter,
		Settings: settings,
	}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func fastSettings() Settings {
	s := DefaultSettings()
	s.RetryBackoff = time.Millisecond
	return s
}

func eventsOfType(bus *event.Bus, runID, eventType string) []event.Event {
	var out []event.Event
	for _, e := range bus.HistoryForRun(runID) {
		if e.EventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestExecute_PythonHappyPath(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"requirements.txt": "requests\n",
		"README.md":        "# Project\n\nInstall:\n\n```bash\npip install -r requirements.txt\n```\n",
	})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateSuccess {
		t.Fatalf("state = %s, want success (summary: %s)", r.State, r.Summary)
	}
	if r.FinishedAt == nil {
		t.Error("no FinishedAt on a terminal run")
	}

	// Strategy commands plus the doc command, with the duplicate
	// "pip install -r requirements.txt" collapsed.
	want := []string{
		"python -m pip install --upgrade pip",
		"pip install -r requirements.txt",
		"pip check",
	}
	got := adapter.executed()
	if len(got) != len(want) {
		t.Fatalf("executed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("executed[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if adapter.prepares != 1 || adapter.teardowns != 1 {
		t.Errorf("prepares = %d, teardowns = %d, want 1/1", adapter.prepares, adapter.teardowns)
	}
	if adapter.baseImage != "python:3.12-slim" {
		t.Errorf("base image = %q", adapter.baseImage)
	}

	detected := eventsOfType(bus, r.ID, event.TypeStrategyDetected)
	if len(detected) != 1 {
		t.Fatalf("strategy.detected events = %d", len(detected))
	}
	if ev := detected[0].(event.StrategyDetectedEvent); ev.Strategy != "python" {
		t.Errorf("detected strategy = %q", ev.Strategy)
	}

	if n := len(eventsOfType(bus, r.ID, event.TypeCommandQueued)); n != 3 {
		t.Errorf("command.queued events = %d, want 3", n)
	}
	if n := len(eventsOfType(bus, r.ID, event.TypeCommandCompleted)); n != 3 {
		t.Errorf("command.completed events = %d, want 3", n)
	}

	completed := eventsOfType(bus, r.ID, event.TypeRunCompleted)
	if len(completed) != 1 {
		t.Fatalf("run.completed events = %d, want 1", len(completed))
	}
	if ev := completed[0].(event.RunCompletedEvent); ev.FinalState != "success" {
		t.Errorf("final state in event = %q", ev.FinalState)
	}
	if !strings.Contains(r.Summary, "strategy=python") {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestExecute_DestructiveCommandBlocked(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"requirements.txt": "requests\n",
		"README.md":        "```bash\nrm -rf /\npytest\n```\n",
	})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateSuccess {
		t.Fatalf("state = %s (summary: %s)", r.State, r.Summary)
	}

	for _, text := range adapter.executed() {
		if strings.Contains(text, "rm -rf /") {
			t.Fatalf("rejected command reached the runtime: %q", text)
		}
	}

	violations := eventsOfType(bus, r.ID, event.TypePolicyViolation)
	if len(violations) != 1 {
		t.Fatalf("policy.violation events = %d, want 1", len(violations))
	}
	ev := violations[0].(event.PolicyViolationEvent)
	if ev.Command != "rm -rf /" || ev.Rule != "destructive-delete" {
		t.Errorf("violation = %+v", ev)
	}

	// The benign doc command still ran.
	found := false
	for _, text := range adapter.executed() {
		if text == "pytest" {
			found = true
		}
	}
	if !found {
		t.Errorf("pytest not executed: %v", adapter.executed())
	}
}

func TestExecute_RuntimeUnavailable(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{
		prepareErr: errors.NewRuntimeError("engine unreachable",
			errors.Join(errors.ErrRuntimeUnavailable, errors.New("connection refused"))),
	}
	settings := fastSettings()
	settings.StepAttempts = 3 // unavailability must still not be retried

	o := newOrchestrator(t, bus, adapter, settings)
	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateError {
		t.Fatalf("state = %s, want error", r.State)
	}
	if adapter.teardowns != 0 {
		t.Errorf("teardown called %d times with no prepared handle", adapter.teardowns)
	}

	var execFailures []event.StepFailedEvent
	for _, e := range eventsOfType(bus, r.ID, event.TypeStepFailed) {
		ev := e.(event.StepFailedEvent)
		if ev.Step == StepExecuteCommands {
			execFailures = append(execFailures, ev)
		}
	}
	if len(execFailures) != 1 {
		t.Fatalf("execute_commands failures = %d, want 1 (no retries)", len(execFailures))
	}
	if execFailures[0].WillRetry {
		t.Error("runtime unavailability marked as retryable")
	}

	if n := len(eventsOfType(bus, r.ID, event.TypeRunCompleted)); n != 1 {
		t.Errorf("run.completed events = %d, want 1", n)
	}
}

func TestExecute_CancelBetweenCommands(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	var runID string
	bus.Subscribe(event.TypeRunCreated, func(e event.Event) {
		runID = e.RunID()
	})
	adapter.onExec = func(string) {
		// Cancellation lands while the first command is in flight; it
		// finishes, and nothing after it starts.
		if err := o.Cancel(runID); err != nil {
			t.Errorf("Cancel: %v", err)
		}
	}

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateCancelled {
		t.Fatalf("state = %s, want cancelled", r.State)
	}
	if got := len(adapter.executed()); got != 1 {
		t.Errorf("%d commands executed after cancel, want 1", got)
	}
	if adapter.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", adapter.teardowns)
	}
	if n := len(eventsOfType(bus, r.ID, event.TypeCommandStarted)); n != 1 {
		t.Errorf("command.started events = %d, want 1", n)
	}
	if n := len(eventsOfType(bus, r.ID, event.TypeRunCompleted)); n != 1 {
		t.Errorf("run.completed events = %d, want 1", n)
	}
}

func TestExecute_ContextCancelEndsCancelled(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	adapter.onExec = func(string) {
		// The caller's context dies (Ctrl-C) while the first command is
		// in flight; it finishes, and nothing after it starts.
		cancel()
	}

	r, err := o.Execute(ctx, repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateCancelled {
		t.Fatalf("state = %s, want cancelled", r.State)
	}
	if got := len(adapter.executed()); got != 1 {
		t.Errorf("%d commands executed after context cancel, want 1", got)
	}
	if adapter.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", adapter.teardowns)
	}
	if n := len(eventsOfType(bus, r.ID, event.TypeRunCompleted)); n != 1 {
		t.Errorf("run.completed events = %d, want 1", n)
	}
}

func TestExecute_AdapterContextErrorEndsCancelled(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	// A real adapter surfaces cancellation as an error from the process
	// it was running; the run must still end cancelled, not error.
	adapter := &fakeAdapter{execErr: errors.Wrap(context.Canceled, "sh")}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateCancelled {
		t.Fatalf("state = %s, want cancelled", r.State)
	}
	if adapter.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", adapter.teardowns)
	}
}

func TestExecute_UnrecognizableRepoHaltsGated(t *testing.T) {
	repo := writeRepo(t, map[string]string{"data.csv": "a,b,c\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateGated {
		t.Fatalf("state = %s, want gated", r.State)
	}
	if r.State.IsTerminal() {
		t.Error("gated reported as terminal")
	}
	if adapter.prepares != 0 {
		t.Error("runtime prepared with nothing to execute")
	}
	// A gated halt is not a completion, and not a step failure either:
	// validation did its job, the run is waiting on an operator.
	if n := len(eventsOfType(bus, r.ID, event.TypeRunCompleted)); n != 0 {
		t.Errorf("run.completed events = %d, want 0", n)
	}
	if n := len(eventsOfType(bus, r.ID, event.TypeStepFailed)); n != 0 {
		t.Errorf("step.failed events = %d, want 0", n)
	}
	var validated bool
	for _, e := range eventsOfType(bus, r.ID, event.TypeStepCompleted) {
		if e.(event.StepCompletedEvent).Step == StepValidateCommands {
			validated = true
		}
	}
	if !validated {
		t.Error("no step.completed for validate_commands on the halt path")
	}

	detected := eventsOfType(bus, r.ID, event.TypeStrategyDetected)
	if len(detected) != 1 {
		t.Fatalf("strategy.detected events = %d", len(detected))
	}
	if ev := detected[0].(event.StrategyDetectedEvent); ev.Strategy != strategy.ManualName {
		t.Errorf("strategy = %q, want manual", ev.Strategy)
	}
}

func TestExecute_AllCommandsRejectedFails(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"README.md": "```bash\nrm -rf /\nshutdown -h now\n```\n",
	})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateFailed {
		t.Fatalf("state = %s, want failed", r.State)
	}
	if len(adapter.executed()) != 0 {
		t.Errorf("commands executed: %v", adapter.executed())
	}
	if n := len(eventsOfType(bus, r.ID, event.TypePolicyViolation)); n != 2 {
		t.Errorf("policy.violation events = %d, want 2", n)
	}
	if n := len(eventsOfType(bus, r.ID, event.TypeRunCompleted)); n != 1 {
		t.Errorf("run.completed events = %d, want 1", n)
	}
}

func TestExecute_HeldCommandSkipped(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"README.md": "```bash\ncurl -O https://downloads.example.org/tool.tar.gz\nmake install\n```\n",
	})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings()) // HoldSkip default

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateSuccess {
		t.Fatalf("state = %s (summary: %s)", r.State, r.Summary)
	}

	got := adapter.executed()
	if len(got) != 1 || got[0] != "make install" {
		t.Errorf("executed = %v, want only make install", got)
	}
}

func TestExecute_HoldWaitOverride(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"README.md": "```bash\ncurl -O https://downloads.example.org/tool.tar.gz\n```\n",
	})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	settings := fastSettings()
	settings.HoldPolicy = HoldWait
	o := newOrchestrator(t, bus, adapter, settings)

	var runID string
	var mu sync.Mutex
	bus.Subscribe(event.TypeRunCreated, func(e event.Event) {
		mu.Lock()
		runID = e.RunID()
		mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		deadline := time.After(5 * time.Second)
		for {
			mu.Lock()
			id := runID
			mu.Unlock()
			if id != "" {
				held, err := o.HeldCommands(id)
				if err == nil && len(held) > 0 {
					if err := o.Override(id, held[0], "vendor download verified"); err != nil {
						t.Errorf("Override: %v", err)
					}
					return
				}
			}
			select {
			case <-deadline:
				t.Error("no held command appeared")
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}()

	r, err := o.Execute(context.Background(), repo)
	<-done
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateSuccess {
		t.Fatalf("state = %s (summary: %s)", r.State, r.Summary)
	}

	got := adapter.executed()
	if len(got) != 1 || !strings.HasPrefix(got[0], "curl -O") {
		t.Errorf("executed = %v", got)
	}
	if n := len(eventsOfType(bus, r.ID, event.TypePolicyOverride)); n != 1 {
		t.Errorf("policy.override events = %d, want 1", n)
	}
	// The promoted command is queued once the operator approves it.
	if n := len(eventsOfType(bus, r.ID, event.TypeCommandQueued)); n != 1 {
		t.Errorf("command.queued events = %d, want 1", n)
	}
}

func TestExecute_FailFastStopsAtFirstFailure(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{exitCodes: map[string]int{
		"pip install -r requirements.txt": 1,
	}}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateFailed {
		t.Fatalf("state = %s, want failed", r.State)
	}
	// pre-install succeeded, the install failed, pip check never ran.
	got := adapter.executed()
	if len(got) != 2 {
		t.Fatalf("executed = %v, want 2 commands", got)
	}
	if !strings.Contains(r.Summary, "exited 1") {
		t.Errorf("summary = %q", r.Summary)
	}
	if adapter.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", adapter.teardowns)
	}
}

func TestExecute_BestEffortRunsEverything(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{exitCodes: map[string]int{
		"pip install -r requirements.txt": 1,
	}}
	settings := fastSettings()
	settings.BestEffort = true
	o := newOrchestrator(t, bus, adapter, settings)

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateSuccess {
		t.Fatalf("state = %s (summary: %s)", r.State, r.Summary)
	}
	if got := len(adapter.executed()); got != 3 {
		t.Errorf("executed %d commands, want 3", got)
	}
	if !strings.Contains(r.Summary, "1 failed") {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestExecute_BestEffortToleratesAllRejected(t *testing.T) {
	repo := writeRepo(t, map[string]string{
		"README.md": "```bash\nrm -rf /\n```\n",
	})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	settings := fastSettings()
	settings.BestEffort = true
	o := newOrchestrator(t, bus, adapter, settings)

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateSuccess {
		t.Fatalf("state = %s, want success (summary: %s)", r.State, r.Summary)
	}
	if len(adapter.executed()) != 0 {
		t.Errorf("rejected commands executed: %v", adapter.executed())
	}
	if adapter.prepares != 0 {
		t.Error("runtime prepared with nothing approved")
	}
	if !strings.Contains(r.Summary, "0 approved") {
		t.Errorf("summary = %q", r.Summary)
	}
}

func TestExecute_PauseAndResume(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	var runID string
	bus.Subscribe(event.TypeRunCreated, func(e event.Event) {
		runID = e.RunID()
	})

	var once sync.Once
	adapter.onExec = func(string) {
		once.Do(func() {
			if err := o.Pause(runID); err != nil {
				t.Errorf("Pause: %v", err)
			}
			go func() {
				time.Sleep(100 * time.Millisecond)
				if err := o.Resume(runID); err != nil {
					t.Errorf("Resume: %v", err)
				}
			}()
		})
	}

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateSuccess {
		t.Fatalf("state = %s (summary: %s)", r.State, r.Summary)
	}
	if got := len(adapter.executed()); got != 3 {
		t.Errorf("executed %d commands, want 3", got)
	}

	var sawPaused, sawResumed bool
	for _, e := range eventsOfType(bus, r.ID, event.TypeRunStatusChanged) {
		ev := e.(event.RunStatusChangedEvent)
		if ev.To == run.StatePaused.String() {
			sawPaused = true
		}
		if ev.From == run.StatePaused.String() && ev.To == run.StateRunning.String() {
			sawResumed = true
		}
	}
	if !sawPaused || !sawResumed {
		t.Errorf("lifecycle missing pause/resume transitions (paused=%v resumed=%v)", sawPaused, sawResumed)
	}
}

func TestExecute_CloneRetry(t *testing.T) {
	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	settings := fastSettings() // CloneAttempts = 2
	o := newOrchestrator(t, bus, adapter, settings)

	// Nothing listens on port 1; the transport error is transient as far
	// as the classifier can tell, so the clone is attempted twice.
	r, err := o.Execute(context.Background(), "https://127.0.0.1:1/org/repo.git")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateError {
		t.Fatalf("state = %s, want error", r.State)
	}

	var cloneFailures []event.StepFailedEvent
	for _, e := range eventsOfType(bus, r.ID, event.TypeStepFailed) {
		ev := e.(event.StepFailedEvent)
		if ev.Step == StepClone {
			cloneFailures = append(cloneFailures, ev)
		}
	}
	if len(cloneFailures) != 2 {
		t.Fatalf("clone failures = %d, want 2 attempts", len(cloneFailures))
	}
	if !cloneFailures[0].WillRetry {
		t.Error("first clone failure not marked for retry")
	}
	if cloneFailures[1].WillRetry {
		t.Error("final clone failure marked for retry")
	}
	if cloneFailures[1].Attempt != 2 {
		t.Errorf("final attempt number = %d", cloneFailures[1].Attempt)
	}
}

func TestExecute_MissingRepoNotRetried(t *testing.T) {
	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{}
	settings := fastSettings() // CloneAttempts = 2
	o := newOrchestrator(t, bus, adapter, settings)

	// A nonexistent local path will not appear on a second attempt.
	r, err := o.Execute(context.Background(), "/no/such/repository")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateError {
		t.Fatalf("state = %s, want error", r.State)
	}

	var cloneFailures []event.StepFailedEvent
	for _, e := range eventsOfType(bus, r.ID, event.TypeStepFailed) {
		ev := e.(event.StepFailedEvent)
		if ev.Step == StepClone {
			cloneFailures = append(cloneFailures, ev)
		}
	}
	if len(cloneFailures) != 1 {
		t.Fatalf("clone failures = %d, want 1 (no retry)", len(cloneFailures))
	}
	if cloneFailures[0].WillRetry {
		t.Error("missing repository marked for retry")
	}
}

func TestExecute_UsageErrors(t *testing.T) {
	bus := event.NewBusWithHistory(100)
	o := newOrchestrator(t, bus, &fakeAdapter{}, fastSettings())

	if _, err := o.Execute(context.Background(), ""); err == nil {
		t.Error("Execute accepted an empty repository reference")
	}

	// Control operations on unknown runs report run-not-found.
	if err := o.Cancel("nope"); !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("Cancel unknown run error = %v", err)
	}
	if err := o.Pause("nope"); !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("Pause unknown run error = %v", err)
	}
	if _, err := o.HeldCommands("nope"); !errors.Is(err, errors.ErrRunNotFound) {
		t.Errorf("HeldCommands unknown run error = %v", err)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	bus := event.NewBus()
	reg := strategy.NewDefaultRegistry()
	pol := policy.New()
	ad := &fakeAdapter{}

	cases := []Config{
		{Registry: reg, Policy: pol, Adapter: ad},
		{Bus: bus, Policy: pol, Adapter: ad},
		{Bus: bus, Registry: reg, Adapter: ad},
		{Bus: bus, Registry: reg, Policy: pol},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Errorf("case %d: New accepted incomplete config", i)
		}
	}
}

func TestExecute_InfraErrorDuringExec(t *testing.T) {
	repo := writeRepo(t, map[string]string{"requirements.txt": "requests\n"})

	bus := event.NewBusWithHistory(1000)
	adapter := &fakeAdapter{execErr: errors.NewRuntimeError("container died", errors.New("exit"))}
	o := newOrchestrator(t, bus, adapter, fastSettings())

	r, err := o.Execute(context.Background(), repo)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.State != run.StateError {
		t.Fatalf("state = %s, want error", r.State)
	}
	// The handle existed, so teardown must still happen.
	if adapter.teardowns != 1 {
		t.Errorf("teardowns = %d, want 1", adapter.teardowns)
	}
	// Infrastructure failures produce no command.completed record.
	if n := len(eventsOfType(bus, r.ID, event.TypeCommandCompleted)); n != 0 {
		t.Errorf("command.completed events = %d, want 0", n)
	}
}
