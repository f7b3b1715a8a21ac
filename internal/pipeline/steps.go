package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ctavolazzi/novasystem/internal/errors"
	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/policy"
	"github.com/ctavolazzi/novasystem/internal/run"
	"github.com/ctavolazzi/novasystem/internal/runtime"
)

// Step names as they appear in step events.
const (
	StepClone            = "clone"
	StepDetectStrategy   = "detect_strategy"
	StepDiscoverDocs     = "discover_docs"
	StepParseCommands    = "parse_commands"
	StepValidateCommands = "validate_commands"
	StepExecuteCommands  = "execute_commands"
	StepSummarize        = "summarize"
)

// errGatedHalt signals that the run stops in the gated state awaiting
// manual intervention. It is not a failure.
var errGatedHalt = errors.New("run halted in gated state")

// errCommandFailed marks a non-zero command exit in fail-fast mode. It
// routes the run to failed rather than error.
var errCommandFailed = errors.New("command exited non-zero")

// execute drives one run through the full step sequence. All failures
// are translated into state transitions and events here; nothing
// escapes to the caller.
func (w *worker) execute(ctx context.Context) {
	w.started = time.Now()
	s := w.o.settings

	// Caller context cancellation (Ctrl-C via signal.NotifyContext) is a
	// cancel request like any other: it closes cancelCh so the next
	// checkpoint observes it.
	stop := context.AfterFunc(ctx, w.cancel)
	defer stop()

	err := func() error {
		if err := w.o.machine.Transition(w.run, run.StateAnalyzing); err != nil {
			return err
		}

		if err := w.runStep(StepClone, s.CloneAttempts, w.stepClone(ctx)); err != nil {
			return err
		}
		defer w.cleanupWorkspace()

		if err := w.runStep(StepDetectStrategy, s.StepAttempts, w.stepDetectStrategy); err != nil {
			return err
		}
		if err := w.runStep(StepDiscoverDocs, s.StepAttempts, w.stepDiscoverDocs); err != nil {
			return err
		}
		if err := w.runStep(StepParseCommands, s.StepAttempts, w.stepParseCommands); err != nil {
			return err
		}
		if err := w.runStep(StepValidateCommands, s.StepAttempts, w.stepValidateCommands); err != nil {
			return err
		}
		if err := w.runStep(StepExecuteCommands, s.StepAttempts, w.stepExecuteCommands(ctx)); err != nil {
			return err
		}
		return w.runStep(StepSummarize, s.StepAttempts, w.stepSummarize)
	}()

	w.finish(err)
}

// finish maps the step-sequence outcome onto a lifecycle transition and
// publishes RunCompleted for terminal states.
func (w *worker) finish(err error) {
	switch {
	case err == nil:
		// Terminal transition already happened in the summarize step.
	case errors.Is(err, errGatedHalt):
		// Not terminal: the run stays gated awaiting an operator.
		w.run.Summary = "manual intervention required: no approved commands"
		w.log.Warn("run halted awaiting manual override", "state", w.run.State)
		return
	case errors.Is(err, errors.ErrCanceled), errors.Is(err, context.Canceled):
		// A context error may surface through the runtime adapter while
		// a command is in flight; it still means the run was cancelled.
		if terr := w.o.machine.Transition(w.run, run.StateCancelled); terr != nil {
			_ = w.o.machine.Errorf(w.run, err)
		}
		w.run.Summary = "run cancelled"
	case errors.Is(err, errCommandFailed), errors.Is(err, errors.ErrAllCommandsRejected):
		if w.run.State == run.StateRunning || w.run.State == run.StateGated {
			_ = w.o.machine.Fail(w.run, err.Error())
		} else {
			_ = w.o.machine.Errorf(w.run, err)
		}
		w.run.Summary = err.Error()
	default:
		// Infrastructure or unexpected failure, caught at the step
		// boundary.
		_ = w.o.machine.Errorf(w.run, err)
		w.run.Summary = err.Error()
		w.log.Error("run ended in error", "error", err)
	}

	if w.run.State.IsTerminal() {
		duration := time.Since(w.started).Milliseconds()
		w.o.bus.Publish(event.NewRunCompletedEvent(
			w.run.ID, w.run.State.String(), w.run.Summary, duration,
		))
	}
}

// stepFunc performs one step attempt. The skipped result marks steps
// that declined to do any work (e.g., zero documentation files).
type stepFunc func() (skipped bool, err error)

// runStep wraps a step with events, the cooperative checkpoint, and the
// retry policy: up to attempts tries with a fixed backoff. Cancellation
// and runtime unavailability are never retried.
func (w *worker) runStep(name string, attempts int, fn stepFunc) error {
	log := w.log.WithStep(name)
	for attempt := 1; ; attempt++ {
		if err := w.checkpoint(); err != nil {
			return err
		}

		w.o.bus.Publish(event.NewStepStartedEvent(w.run.ID, name, attempt))
		skipped, err := fn()
		if err == nil {
			w.o.bus.Publish(event.NewStepCompletedEvent(w.run.ID, name, attempt, skipped))
			return nil
		}
		if errors.Is(err, errGatedHalt) {
			// Awaiting an operator is a validation outcome, not a
			// failure; the audit stream records the step as completed.
			w.o.bus.Publish(event.NewStepCompletedEvent(w.run.ID, name, attempt, false))
			return err
		}

		willRetry := attempt < attempts && stepRetryable(err)
		w.o.bus.Publish(event.NewStepFailedEvent(w.run.ID, name, attempt, err.Error(), willRetry))
		if !willRetry {
			return err
		}
		log.Warn("step failed, retrying", "attempt", attempt, "error", err)

		select {
		case <-time.After(w.o.settings.RetryBackoff):
		case <-w.cancelCh:
			return errors.ErrCanceled
		}
	}
}

// stepRetryable reports whether a failed step attempt is worth another
// try. Run outcomes (cancellation, command failure, wholesale rejection)
// are never retried; typed errors carry their own retryability; untyped
// errors (network, filesystem) are assumed transient.
func stepRetryable(err error) bool {
	switch {
	case errors.Is(err, errors.ErrCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, errCommandFailed),
		errors.Is(err, errors.ErrAllCommandsRejected):
		return false
	}

	var perr errors.PipelineError
	if errors.Is(err, errors.ErrRuntimeUnavailable) || errors.As(err, &perr) {
		return errors.IsRetryable(err)
	}
	return true
}

func (w *worker) cleanupWorkspace() {
	if err := w.pctx.Workspace.Cleanup(); err != nil {
		w.log.Warn("failed to clean up workspace", "error", err)
	}
}

func (w *worker) stepClone(ctx context.Context) stepFunc {
	return func() (bool, error) {
		ws, err := w.o.resolver.Resolve(ctx, w.pctx.RepoRef)
		if err != nil {
			return false, err
		}
		w.pctx.Workspace = ws
		w.log.Info("repository resolved", "path", ws.Path, "cloned", ws.Cloned)
		return false, nil
	}
}

func (w *worker) stepDetectStrategy() (bool, error) {
	strat, confidence := w.o.registry.DetectBest(w.pctx.RepoPath())
	w.pctx.Strategy = strat
	w.pctx.Confidence = confidence
	w.pctx.Metadata["strategy"] = strat.Name()

	w.o.bus.Publish(event.NewStrategyDetectedEvent(
		w.run.ID, strat.Name(), confidence, strat.BaseImage(),
	))
	w.log.Info("strategy detected", "strategy", strat.Name(), "confidence", confidence)
	return false, nil
}

func (w *worker) stepDiscoverDocs() (bool, error) {
	documents, err := w.o.discoverer.Discover(w.pctx.RepoPath(), w.run.ID)
	if err != nil {
		return false, err
	}
	w.pctx.Documents = documents
	// Zero documentation files is a skip, not a failure: the strategy
	// may still supply install commands.
	return len(documents) == 0, nil
}

func (w *worker) stepParseCommands() (bool, error) {
	repoPath := w.pctx.RepoPath()
	strat := w.pctx.Strategy

	// Strategy-supplied install commands come first; they originate
	// from trusted templates but still pass the policy gate.
	var commands []run.ParsedCommand
	for _, group := range [][]string{
		strat.PreInstall(repoPath),
		strat.Install(repoPath),
		strat.PostInstall(repoPath),
	} {
		for _, text := range group {
			commands = append(commands, run.NewParsedCommand(text, "", 0))
		}
	}
	commands = append(commands, w.o.extractor.ExtractAll(w.pctx.Documents)...)

	// Doc commands identical to a strategy command would run twice;
	// keep the first occurrence.
	seen := make(map[string]bool, len(commands))
	deduped := commands[:0]
	for _, cmd := range commands {
		key := strings.Join(strings.Fields(cmd.Text), " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, cmd)
	}
	w.pctx.Commands = deduped

	return len(deduped) == 0, nil
}

func (w *worker) stepValidateCommands() (bool, error) {
	held := make(map[string]bool)
	for i := range w.pctx.Commands {
		cmd := &w.pctx.Commands[i]
		decision := w.o.policy.Evaluate(*cmd)

		switch decision.Action {
		case policy.ActionApprove:
			cmd.Approved = true
			w.o.bus.Publish(event.NewCommandQueuedEvent(
				w.run.ID, cmd.ID, cmd.Text, cmd.SourceDocPath,
			))
		case policy.ActionReject:
			cmd.RejectionReason = decision.Reason
			w.o.bus.Publish(event.NewPolicyViolationEvent(
				w.run.ID, cmd.ID, cmd.Text, decision.Rule, decision.Reason,
			))
		case policy.ActionRequireOverride:
			held[cmd.ID] = true
			w.gate.Hold(cmd, decision.Reason)
			w.log.Info("command held for override", "command", cmd.Text, "reason", decision.Reason)
		}
	}

	if err := w.o.machine.Transition(w.run, run.StateGated); err != nil {
		return false, err
	}

	if w.o.settings.HoldPolicy == HoldWait {
		if err := w.awaitGate(); err != nil {
			return false, err
		}
	}

	var approved int
	for i := range w.pctx.Commands {
		cmd := &w.pctx.Commands[i]
		if w.gate.IsHeld(cmd.ID) {
			// HoldSkip: still pending, so never executed.
			continue
		}
		if cmd.Approved {
			approved++
			if held[cmd.ID] {
				// Promoted by an operator after being held.
				w.o.bus.Publish(event.NewCommandQueuedEvent(
					w.run.ID, cmd.ID, cmd.Text, cmd.SourceDocPath,
				))
			}
		}
	}

	if approved == 0 {
		if len(w.pctx.Commands) == 0 || len(w.gate.Pending()) > 0 {
			// Either an unrecognizable repository with no documented
			// commands, or everything that survived rejection is held
			// for override. Halt gated, pending manual intervention.
			return false, errGatedHalt
		}
		if !w.o.settings.BestEffort {
			return false, errors.ErrAllCommandsRejected
		}
		// Best-effort: rejections are recorded but do not fail the run.
		w.log.Warn("every command was rejected; continuing best-effort")
	}

	return false, w.o.machine.Transition(w.run, run.StateRunning)
}

// awaitGate blocks until every held command is overridden or rejected.
func (w *worker) awaitGate() error {
	for len(w.gate.Pending()) > 0 {
		select {
		case <-time.After(50 * time.Millisecond):
		case <-w.cancelCh:
			return errors.ErrCanceled
		}
	}
	return nil
}

func (w *worker) stepExecuteCommands(ctx context.Context) stepFunc {
	return func() (bool, error) {
		approved := w.pctx.ApprovedCommands()
		if len(approved) == 0 {
			return true, nil
		}

		baseImage := w.pctx.Strategy.BaseImage()
		if w.o.settings.BaseImage != "" {
			baseImage = w.o.settings.BaseImage
		}

		prepCtx, cancel := context.WithTimeout(ctx, w.o.settings.PrepareTimeout)
		handle, err := w.o.adapter.Prepare(prepCtx, baseImage, w.pctx.Strategy.EnvVars(), w.pctx.RepoPath())
		cancel()
		if err != nil {
			// No handle was created, so there is nothing to tear down.
			return false, err
		}
		defer func() {
			if terr := w.o.adapter.Teardown(handle); terr != nil {
				w.log.Warn("runtime teardown failed", "error", terr)
			}
		}()

		for _, cmd := range approved {
			if err := w.checkpoint(); err != nil {
				return false, err
			}
			if err := w.execCommand(ctx, handle, cmd); err != nil {
				return false, err
			}
		}
		return false, nil
	}
}

// execCommand runs one approved command in the runtime and records its
// CommandLog. A non-zero exit fails the run in fail-fast mode and is
// merely recorded in best-effort mode.
func (w *worker) execCommand(ctx context.Context, handle *runtime.Handle, cmd run.ParsedCommand) error {
	text := strings.ReplaceAll(cmd.Text, "{{repo}}", handle.Workdir)
	log := w.log.WithCommand(cmd.ID)

	w.o.bus.Publish(event.NewCommandStartedEvent(w.run.ID, cmd.ID, text))
	startedAt := time.Now()

	result, err := w.o.adapter.Exec(ctx, handle, text, w.o.settings.CommandTimeout)
	if err != nil {
		// Infrastructure failure, distinct from a non-zero exit.
		return err
	}

	if result.Stdout != "" {
		w.o.bus.Publish(event.NewCommandOutputEvent(w.run.ID, cmd.ID, "stdout", result.Stdout))
	}
	if result.Stderr != "" {
		w.o.bus.Publish(event.NewCommandOutputEvent(w.run.ID, cmd.ID, "stderr", result.Stderr))
	}

	w.pctx.Logs = append(w.pctx.Logs, run.CommandLog{
		CommandID:  cmd.ID,
		Command:    text,
		ExitCode:   result.ExitCode,
		Stdout:     result.Stdout,
		Stderr:     result.Stderr,
		DurationMs: result.Duration.Milliseconds(),
		RunID:      w.run.ID,
		StartedAt:  startedAt,
	})
	w.o.bus.Publish(event.NewCommandCompletedEvent(
		w.run.ID, cmd.ID, text, result.ExitCode, result.Duration.Milliseconds(),
	))

	if result.ExitCode != 0 {
		log.Warn("command exited non-zero", "exit_code", result.ExitCode)
		if !w.o.settings.BestEffort {
			return errors.Wrapf(errCommandFailed, "%q exited %d", text, result.ExitCode)
		}
	}
	return nil
}

func (w *worker) stepSummarize() (bool, error) {
	var failed int
	for _, l := range w.pctx.Logs {
		if l.ExitCode != 0 {
			failed++
		}
	}

	w.run.Summary = fmt.Sprintf(
		"strategy=%s commands: %d approved, %d executed, %d failed",
		w.pctx.Metadata["strategy"], len(w.pctx.ApprovedCommands()), len(w.pctx.Logs), failed,
	)

	return false, w.o.machine.Transition(w.run, run.StateSuccess)
}
