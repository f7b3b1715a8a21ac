package strategy

import (
	"sync"

	"github.com/ctavolazzi/novasystem/internal/errors"
)

// DefaultThreshold is the confidence a strategy must exceed for
// DetectBest to select it over the manual fallback.
const DefaultThreshold = 0.1

// Registry holds strategies in registration order. Registration order is
// the tie-break when two strategies report equal confidence: the earlier
// registration wins, which keeps selection deterministic.
//
// The registry is shared across concurrent runs and is safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	strategies []Strategy
	threshold  float64
	fallback   Strategy
}

// NewRegistry creates an empty registry with the default confidence
// threshold and a manual fallback strategy.
func NewRegistry() *Registry {
	return &Registry{
		threshold: DefaultThreshold,
		fallback:  NewManual(),
	}
}

// NewDefaultRegistry creates a registry with the built-in ecosystem
// strategies registered in their canonical order.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration order is the tie-break order.
	_ = r.Register(NewPython())
	_ = r.Register(NewNode())
	_ = r.Register(NewRust())
	_ = r.Register(NewGo())
	return r
}

// SetThreshold overrides the minimum confidence for selection.
func (r *Registry) SetThreshold(threshold float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threshold = threshold
}

// Register adds a strategy. Registering a second strategy with the same
// name is an error.
func (r *Registry) Register(s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.strategies {
		if existing.Name() == s.Name() {
			return errors.NewStrategyError("duplicate registration", errors.ErrStrategyRegistered).
				WithStrategy(s.Name())
		}
	}
	r.strategies = append(r.strategies, s)
	return nil
}

// Names returns the registered strategy names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.strategies))
	for i, s := range r.strategies {
		names[i] = s.Name()
	}
	return names
}

// DetectBest runs Detect on every registered strategy and returns the
// highest-confidence match. Ties go to the earlier-registered strategy.
// Selection requires confidence strictly above the threshold; otherwise
// the manual fallback is returned with confidence 0 and the pipeline
// halts in the gated state pending an operator override.
func (r *Registry) DetectBest(repoPath string) (Strategy, float64) {
	r.mu.RLock()
	strategies := make([]Strategy, len(r.strategies))
	copy(strategies, r.strategies)
	threshold := r.threshold
	fallback := r.fallback
	r.mu.RUnlock()

	var best Strategy
	bestConfidence := 0.0
	for _, s := range strategies {
		c := s.Detect(repoPath)
		// Strictly greater: equal confidence keeps the earlier strategy.
		if c > bestConfidence {
			best = s
			bestConfidence = c
		}
	}

	if best == nil || bestConfidence <= threshold {
		return fallback, 0.0
	}
	return best, bestConfidence
}
