package policy

import (
	"sync"

	"github.com/ctavolazzi/novasystem/internal/errors"
	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/run"
)

// Gate holds commands the policy marked require-override until an
// operator approves or rejects them. An override promotes the held
// command to approved and publishes a PolicyOverride event; commands
// left held when the gated step resolves are treated as rejected.
type Gate struct {
	mu      sync.Mutex
	bus     *event.Bus
	runID   string
	pending map[string]*run.ParsedCommand // commandID -> held command
}

// NewGate creates a Gate for one run.
func NewGate(bus *event.Bus, runID string) *Gate {
	return &Gate{
		bus:     bus,
		runID:   runID,
		pending: make(map[string]*run.ParsedCommand),
	}
}

// Hold places a command into the pending-override state with the
// deciding rule's reason.
func (g *Gate) Hold(cmd *run.ParsedCommand, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	cmd.HeldReason = reason
	g.pending[cmd.ID] = cmd
}

// Override promotes a held command to approved with the operator's
// justification. Overriding a command that is not held is an error.
func (g *Gate) Override(commandID, justification string) error {
	g.mu.Lock()
	cmd, ok := g.pending[commandID]
	if !ok {
		g.mu.Unlock()
		return errors.NewPolicyError("override target not held", errors.ErrNotHeld).
			WithCommandID(commandID)
	}
	cmd.Approved = true
	cmd.HeldReason = ""
	delete(g.pending, commandID)
	text := cmd.Text
	g.mu.Unlock()

	// Publish outside the mutex to avoid deadlock with bus handlers.
	if g.bus != nil {
		g.bus.Publish(event.NewPolicyOverrideEvent(g.runID, commandID, text, justification))
	}
	return nil
}

// Reject removes a held command with the given reason. The command
// stays unapproved and is recorded as rejected.
func (g *Gate) Reject(commandID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	cmd, ok := g.pending[commandID]
	if !ok {
		return errors.NewPolicyError("reject target not held", errors.ErrNotHeld).
			WithCommandID(commandID)
	}
	cmd.HeldReason = ""
	cmd.RejectionReason = reason
	delete(g.pending, commandID)
	return nil
}

// Pending returns the IDs of commands currently awaiting override.
// The returned slice is a copy and safe to modify.
func (g *Gate) Pending() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	return ids
}

// IsHeld returns true if the given command is awaiting override.
func (g *Gate) IsHeld(commandID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.pending[commandID]
	return ok
}
