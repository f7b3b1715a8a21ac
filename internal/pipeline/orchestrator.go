package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/ctavolazzi/novasystem/internal/docs"
	"github.com/ctavolazzi/novasystem/internal/errors"
	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/gitrepo"
	"github.com/ctavolazzi/novasystem/internal/logging"
	"github.com/ctavolazzi/novasystem/internal/policy"
	"github.com/ctavolazzi/novasystem/internal/run"
	"github.com/ctavolazzi/novasystem/internal/runtime"
	"github.com/ctavolazzi/novasystem/internal/strategy"
)

// Config carries the collaborators an Orchestrator requires. Bus,
// Registry, Policy, and Adapter are mandatory.
type Config struct {
	Bus      *event.Bus
	Registry *strategy.Registry
	Policy   *policy.Policy
	Adapter  runtime.Adapter
	Settings Settings
}

// Orchestrator sequences onboarding runs. It supports any number of
// concurrent runs, each on its own goroutine with an independently
// owned Context, Run, and runtime handle.
type Orchestrator struct {
	bus      *event.Bus
	registry *strategy.Registry
	policy   *policy.Policy
	adapter  runtime.Adapter
	machine  *run.Machine
	settings Settings

	logger     *logging.Logger
	resolver   *gitrepo.Resolver
	discoverer *docs.Discoverer
	extractor  *docs.Extractor

	mu      sync.Mutex
	workers map[string]*worker
}

// New creates an Orchestrator with the given configuration and options.
func New(cfg Config, opts ...Option) (*Orchestrator, error) {
	if cfg.Bus == nil {
		return nil, errors.NewValidationError("Bus is required").WithField("pipeline")
	}
	if cfg.Registry == nil {
		return nil, errors.NewValidationError("Registry is required").WithField("pipeline")
	}
	if cfg.Policy == nil {
		return nil, errors.NewValidationError("Policy is required").WithField("pipeline")
	}
	if cfg.Adapter == nil {
		return nil, errors.NewValidationError("Adapter is required").WithField("pipeline")
	}

	if cfg.Settings.StepAttempts < 1 {
		cfg.Settings.StepAttempts = 1
	}
	if cfg.Settings.CloneAttempts < 1 {
		cfg.Settings.CloneAttempts = 1
	}
	if cfg.Settings.CommandTimeout <= 0 {
		cfg.Settings.CommandTimeout = DefaultSettings().CommandTimeout
	}
	if cfg.Settings.PrepareTimeout <= 0 {
		cfg.Settings.PrepareTimeout = DefaultSettings().PrepareTimeout
	}

	oc := &orchestratorConfig{}
	for _, opt := range opts {
		opt(oc)
	}
	if oc.logger == nil {
		oc.logger = logging.NopLogger()
	}
	if oc.resolver == nil {
		oc.resolver = &gitrepo.Resolver{}
	}
	if oc.discoverer == nil {
		oc.discoverer = docs.NewDiscoverer()
	}
	if oc.extractor == nil {
		oc.extractor = docs.NewExtractor()
	}

	return &Orchestrator{
		bus:        cfg.Bus,
		registry:   cfg.Registry,
		policy:     cfg.Policy,
		adapter:    cfg.Adapter,
		machine:    run.NewMachine(cfg.Bus),
		settings:   cfg.Settings,
		logger:     oc.logger,
		resolver:   oc.resolver,
		discoverer: oc.discoverer,
		extractor:  oc.extractor,
		workers:    make(map[string]*worker),
	}, nil
}

// Execute performs one onboarding run for repoRef and blocks until the
// run halts. Outcomes are reported through the returned Run's state and
// the event stream; the error return is reserved for usage errors
// detected before a Run exists (e.g., an empty repoRef).
func (o *Orchestrator) Execute(ctx context.Context, repoRef string) (*run.Run, error) {
	if repoRef == "" {
		return nil, errors.NewValidationError("repository reference is empty").WithField("repo")
	}

	r := run.New(repoRef)
	w := newWorker(o, r)

	o.mu.Lock()
	o.workers[r.ID] = w
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.workers, r.ID)
		o.mu.Unlock()
	}()

	o.bus.Publish(event.NewRunCreatedEvent(r.ID, repoRef))

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.execute(ctx)
	}()
	<-done

	return r, nil
}

// Pause requests a cooperative pause for the run. The worker honors it
// at the next step or per-command boundary while in the running state.
func (o *Orchestrator) Pause(runID string) error {
	w, err := o.worker(runID)
	if err != nil {
		return err
	}
	w.pause()
	return nil
}

// Resume wakes a paused run.
func (o *Orchestrator) Resume(runID string) error {
	w, err := o.worker(runID)
	if err != nil {
		return err
	}
	return w.resume()
}

// Cancel requests cancellation. No command starts after the signal is
// observed; an in-flight command is allowed to finish.
func (o *Orchestrator) Cancel(runID string) error {
	w, err := o.worker(runID)
	if err != nil {
		return err
	}
	w.cancel()
	return nil
}

// Override promotes a held command to approved with the operator's
// justification.
func (o *Orchestrator) Override(runID, commandID, justification string) error {
	w, err := o.worker(runID)
	if err != nil {
		return err
	}
	return w.gate.Override(commandID, justification)
}

// RejectHeld rejects a held command.
func (o *Orchestrator) RejectHeld(runID, commandID, reason string) error {
	w, err := o.worker(runID)
	if err != nil {
		return err
	}
	return w.gate.Reject(commandID, reason)
}

// HeldCommands returns the IDs of commands awaiting override for a run.
func (o *Orchestrator) HeldCommands(runID string) ([]string, error) {
	w, err := o.worker(runID)
	if err != nil {
		return nil, err
	}
	return w.gate.Pending(), nil
}

func (o *Orchestrator) worker(runID string) (*worker, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	w, ok := o.workers[runID]
	if !ok {
		return nil, errors.NewRunError("run is not active", errors.ErrRunNotFound).WithRunID(runID)
	}
	return w, nil
}

// worker owns one run for its lifetime: the Run object, the Context,
// the gate, and the runtime handle are never shared with another run.
type worker struct {
	o    *Orchestrator
	run  *run.Run
	pctx *Context
	gate *policy.Gate
	log  *logging.Logger

	started time.Time

	cancelOnce sync.Once
	cancelCh   chan struct{}

	pauseMu  sync.Mutex
	paused   bool
	resumeCh chan struct{}
}

func newWorker(o *Orchestrator, r *run.Run) *worker {
	return &worker{
		o:        o,
		run:      r,
		pctx:     NewContext(r.ID, r.RepoRef),
		gate:     policy.NewGate(o.bus, r.ID),
		log:      o.logger.WithRun(r.ID),
		cancelCh: make(chan struct{}),
	}
}

func (w *worker) cancel() {
	w.cancelOnce.Do(func() { close(w.cancelCh) })
}

func (w *worker) cancelled() bool {
	select {
	case <-w.cancelCh:
		return true
	default:
		return false
	}
}

func (w *worker) pause() {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	if !w.paused {
		w.paused = true
		w.resumeCh = make(chan struct{})
	}
}

func (w *worker) resume() error {
	w.pauseMu.Lock()
	defer w.pauseMu.Unlock()
	if !w.paused {
		return nil
	}
	w.paused = false
	close(w.resumeCh)

	// The worker transitioned to paused when it observed the pause
	// flag; undo that transition now. If the worker never reached the
	// blocking point the run is still in running and there is nothing
	// to undo.
	if w.run.State == run.StatePaused {
		return w.o.machine.Transition(w.run, run.StateRunning)
	}
	return nil
}

// checkpoint is the cooperative yield point between steps and between
// individual commands. It returns ErrCanceled once cancellation has
// been observed and blocks while the run is paused.
func (w *worker) checkpoint() error {
	if w.cancelled() {
		return errors.ErrCanceled
	}

	for {
		w.pauseMu.Lock()
		if !w.paused {
			w.pauseMu.Unlock()
			return nil
		}
		ch := w.resumeCh

		// Record the pause in the lifecycle only from running; the
		// flag is still honored as a plain wait elsewhere.
		if w.run.State == run.StateRunning {
			_ = w.o.machine.Transition(w.run, run.StatePaused)
		}
		w.pauseMu.Unlock()

		select {
		case <-ch:
		case <-w.cancelCh:
			return errors.ErrCanceled
		}
	}
}
