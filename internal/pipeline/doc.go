// Package pipeline orchestrates a repository onboarding run.
//
// An [Orchestrator] sequences the fixed step list (clone, detect
// strategy, discover docs, parse commands, validate commands, execute
// commands, summarize), drives the run state machine, and applies
// per-step retry policy. Each run executes on its own goroutine with
// an independently-owned [Context]; cooperative pause, resume, and
// cancel signals are checked at step and per-command boundaries.
//
// Callers observe outcomes through the run's final state and the event
// stream, never through errors from Execute, except for usage errors
// detected before a run exists.
package pipeline
