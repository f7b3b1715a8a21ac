// Package policy gates execution of commands extracted from untrusted
// documentation text. It is the single security boundary between parsing
// and execution: a command runs only if the rule chain approves it, or
// an operator explicitly overrides a hold.
package policy

import (
	"fmt"
	"strings"

	"github.com/ctavolazzi/novasystem/internal/run"
)

// Action is the outcome of evaluating one rule against one command.
type Action int

const (
	// ActionPass means the rule has no opinion; evaluation continues.
	ActionPass Action = iota
	// ActionApprove approves the command and stops evaluation.
	ActionApprove
	// ActionReject rejects the command and stops evaluation.
	ActionReject
	// ActionRequireOverride holds the command pending operator override.
	ActionRequireOverride
)

// String returns a human-readable name for the action.
func (a Action) String() string {
	switch a {
	case ActionPass:
		return "pass"
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionRequireOverride:
		return "require_override"
	default:
		return "unknown"
	}
}

// Decision is the result of policy evaluation for one command.
type Decision struct {
	Action Action
	Rule   string // Name of the deciding rule ("" when every rule passed)
	Reason string
}

// Pass is the zero Decision: no opinion.
var Pass = Decision{Action: ActionPass}

// RuleFunc evaluates one command. It must be a pure function of the
// command: no I/O, no shared state.
type RuleFunc func(cmd run.ParsedCommand) Decision

// Rule pairs a name with its evaluation function. The name appears in
// violation events and decision records.
type Rule struct {
	Name  string
	Check RuleFunc
}

// Policy evaluates commands against an ordered rule chain: the first
// non-pass decision wins. Built-in destructive-pattern rules always run
// before configured rules and cannot be removed.
type Policy struct {
	rules []Rule
}

// New creates a Policy with the built-in baseline rules followed by any
// additional rules, in order.
func New(extra ...Rule) *Policy {
	rules := builtinRules()
	rules = append(rules, extra...)
	return &Policy{rules: rules}
}

// Evaluate runs the rule chain against a command. If every rule passes,
// the command is approved.
func (p *Policy) Evaluate(cmd run.ParsedCommand) Decision {
	for _, rule := range p.rules {
		d := rule.Check(cmd)
		if d.Action != ActionPass {
			if d.Rule == "" {
				d.Rule = rule.Name
			}
			return d
		}
	}
	return Decision{Action: ActionApprove}
}

// RuleNames returns the names of the rules in evaluation order.
func (p *Policy) RuleNames() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name
	}
	return names
}

// reject builds a rejecting decision with a formatted reason.
func reject(format string, args ...any) Decision {
	return Decision{Action: ActionReject, Reason: fmt.Sprintf(format, args...)}
}

// hold builds a require-override decision with a formatted reason.
func hold(format string, args ...any) Decision {
	return Decision{Action: ActionRequireOverride, Reason: fmt.Sprintf(format, args...)}
}

// normalize lowers and collapses whitespace for pattern matching.
func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
