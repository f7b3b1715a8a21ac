package policy

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/ctavolazzi/novasystem/internal/errors"
	"github.com/ctavolazzi/novasystem/internal/run"
)

// RuleConfig is one operator-defined rule in the policy configuration
// file. Pattern is a glob matched against the whole command text
// (case-insensitive, `*` crosses spaces).
type RuleConfig struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Action  string `yaml:"action"` // "approve", "reject", or "require_override"
	Reason  string `yaml:"reason,omitempty"`
}

// Config is the on-disk policy configuration.
type Config struct {
	Rules []RuleConfig `yaml:"rules"`
}

// LoadConfig reads and validates a policy configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read policy config")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewPolicyError("parse policy config", err)
	}
	for i, rc := range cfg.Rules {
		if rc.Name == "" {
			return nil, errors.NewValidationError("rule name must not be empty").
				WithField(fmt.Sprintf("rules[%d].name", i))
		}
		if rc.Pattern == "" {
			return nil, errors.NewValidationError("rule pattern must not be empty").
				WithField(fmt.Sprintf("rules[%d].pattern", i)).WithValue(rc.Name)
		}
		switch rc.Action {
		case "approve", "reject", "require_override":
		default:
			return nil, errors.NewValidationError("rule action must be approve, reject, or require_override").
				WithField(fmt.Sprintf("rules[%d].action", i)).WithValue(rc.Action)
		}
	}
	return &cfg, nil
}

// Compile turns the configured rules into an evaluation chain. Patterns
// are compiled once; a bad pattern fails loudly here rather than at
// evaluation time.
func (c *Config) Compile() ([]Rule, error) {
	rules := make([]Rule, 0, len(c.Rules))
	for _, rc := range c.Rules {
		g, err := glob.Compile(lowercase(rc.Pattern))
		if err != nil {
			return nil, errors.NewPolicyError("compile rule pattern", err).WithRule(rc.Name)
		}

		action := rc.Action
		reason := rc.Reason
		name := rc.Name
		rules = append(rules, Rule{
			Name: name,
			Check: func(cmd run.ParsedCommand) Decision {
				if !g.Match(normalize(cmd.Text)) {
					return Pass
				}
				r := reason
				if r == "" {
					r = fmt.Sprintf("matched rule %s", name)
				}
				switch action {
				case "approve":
					return Decision{Action: ActionApprove, Reason: r}
				case "require_override":
					return Decision{Action: ActionRequireOverride, Reason: r}
				default:
					return Decision{Action: ActionReject, Reason: r}
				}
			},
		})
	}
	return rules, nil
}

// FromConfigFile builds a policy with the built-in baseline plus the
// rules from the given file. An empty path yields the baseline policy.
func FromConfigFile(path string) (*Policy, error) {
	if path == "" {
		return New(), nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	rules, err := cfg.Compile()
	if err != nil {
		return nil, err
	}
	return New(rules...), nil
}

func lowercase(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
