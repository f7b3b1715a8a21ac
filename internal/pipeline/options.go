package pipeline

import (
	"time"

	"github.com/ctavolazzi/novasystem/internal/docs"
	"github.com/ctavolazzi/novasystem/internal/gitrepo"
	"github.com/ctavolazzi/novasystem/internal/logging"
)

// HoldPolicy controls what happens to commands the policy marks
// RequireOverride.
type HoldPolicy int

const (
	// HoldSkip leaves held commands unapproved: they are skipped and
	// the run proceeds with whatever was approved. This is the default
	// for non-interactive invocations.
	HoldSkip HoldPolicy = iota

	// HoldWait blocks the run in the gated state until every held
	// command is resolved via Override or RejectHeld (or the run is
	// cancelled).
	HoldWait
)

// Settings carries the cross-cutting pipeline tunables.
type Settings struct {
	// StepAttempts is the attempt count for ordinary steps (min 1).
	StepAttempts int
	// CloneAttempts is the attempt count for the clone step (min 1).
	CloneAttempts int
	// RetryBackoff is the fixed delay between attempts.
	RetryBackoff time.Duration
	// CommandTimeout bounds one command execution in the runtime.
	CommandTimeout time.Duration
	// PrepareTimeout bounds runtime environment preparation.
	PrepareTimeout time.Duration
	// BestEffort keeps executing after a command fails instead of
	// failing the run at the first non-zero exit.
	BestEffort bool
	// BaseImage overrides the strategy's container image when non-empty.
	BaseImage string
	// HoldPolicy controls handling of RequireOverride commands.
	HoldPolicy HoldPolicy
}

// DefaultSettings returns the fail-fast defaults.
func DefaultSettings() Settings {
	return Settings{
		StepAttempts:   1,
		CloneAttempts:  2,
		RetryBackoff:   2 * time.Second,
		CommandTimeout: 10 * time.Minute,
		PrepareTimeout: 2 * time.Minute,
	}
}

// Option configures an Orchestrator.
type Option func(*orchestratorConfig)

type orchestratorConfig struct {
	logger     *logging.Logger
	resolver   *gitrepo.Resolver
	discoverer *docs.Discoverer
	extractor  *docs.Extractor
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *orchestratorConfig) {
		c.logger = l
	}
}

// WithResolver sets the repository resolver, controlling where clones
// land and the clone timeout.
func WithResolver(r *gitrepo.Resolver) Option {
	return func(c *orchestratorConfig) {
		c.resolver = r
	}
}

// WithDiscoverer sets the documentation discoverer, controlling doc
// count and size caps.
func WithDiscoverer(d *docs.Discoverer) Option {
	return func(c *orchestratorConfig) {
		c.discoverer = d
	}
}

// WithExtractor sets the command extractor.
func WithExtractor(e *docs.Extractor) Option {
	return func(c *orchestratorConfig) {
		c.extractor = e
	}
}
