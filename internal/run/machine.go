package run

import (
	"fmt"
	"time"

	"github.com/ctavolazzi/novasystem/internal/errors"
	"github.com/ctavolazzi/novasystem/internal/event"
)

// transitions is the lifecycle table. A target state is legal only if it
// appears in the slice for the run's current state. StateError is legal
// from every non-terminal state and is handled separately.
var transitions = map[State][]State{
	StatePending:   {StateAnalyzing},
	StateAnalyzing: {StateGated, StateCancelled},
	StateGated:     {StateRunning, StateFailed, StateCancelled},
	StateRunning:   {StatePaused, StateSuccess, StateFailed, StateCancelled},
	StatePaused:    {StateRunning, StateCancelled},

	// Terminal states permit only archival.
	StateSuccess:   {StateArchived},
	StateFailed:    {StateArchived},
	StateCancelled: {StateArchived},
	StateError:     {StateArchived},

	StateArchived: {},
}

// Machine validates and applies run state transitions, publishing a
// RunStatusChanged event for each successful one. It holds no per-run
// state, so a single Machine is safe to use concurrently across
// independent runs.
type Machine struct {
	bus *event.Bus
}

// NewMachine creates a state machine that publishes transitions to bus.
func NewMachine(bus *event.Bus) *Machine {
	return &Machine{bus: bus}
}

// CanTransition reports whether moving from one state to another is
// permitted by the lifecycle table.
func CanTransition(from, to State) bool {
	if to == StateError {
		// Any non-terminal state may fall into error; error itself and
		// the other terminal states may not.
		return !from.IsTerminal() && from != StateArchived
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition moves the run to the target state. On an illegal transition
// it returns an error wrapping errors.ErrInvalidTransition and leaves
// the run unchanged. Entering a terminal state records FinishedAt.
func (m *Machine) Transition(r *Run, target State) error {
	if r == nil {
		return errors.NewValidationError("run must not be nil")
	}
	if !CanTransition(r.State, target) {
		return errors.NewRunError(
			fmt.Sprintf("cannot transition from %s to %s", r.State, target),
			errors.ErrInvalidTransition,
		).WithRunID(r.ID).WithState(r.State.String())
	}

	from := r.State
	r.State = target
	if target.IsTerminal() && r.FinishedAt == nil {
		now := time.Now()
		r.FinishedAt = &now
	}

	if m.bus != nil {
		m.bus.Publish(event.NewRunStatusChangedEvent(r.ID, from.String(), target.String()))
	}
	return nil
}

// Fail transitions the run to failed and records the reason.
func (m *Machine) Fail(r *Run, reason string) error {
	if err := m.Transition(r, StateFailed); err != nil {
		return err
	}
	r.ErrorMessage = reason
	return nil
}

// Errorf transitions the run to the error state and records the cause.
// Used at the step boundary when an unexpected internal failure is caught.
func (m *Machine) Errorf(r *Run, cause error) error {
	if err := m.Transition(r, StateError); err != nil {
		return err
	}
	if cause != nil {
		r.ErrorMessage = cause.Error()
	}
	return nil
}

// Archive moves a terminal run into the archived bookkeeping state.
func (m *Machine) Archive(r *Run) error {
	return m.Transition(r, StateArchived)
}
