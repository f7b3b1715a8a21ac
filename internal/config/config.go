// Package config defines the NovaSystem configuration, loaded via viper
// from config file, environment, and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
// (e.g., NOVASYSTEM_RUNTIME_BACKEND).
const EnvPrefix = "NOVASYSTEM"

// Config represents the complete NovaSystem configuration
type Config struct {
	Events   EventsConfig   `mapstructure:"events"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Docs     DocsConfig     `mapstructure:"docs"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// EventsConfig controls the in-memory event bus
type EventsConfig struct {
	// HistoryLimit caps the number of events retained in memory.
	// Oldest events are evicted first.
	HistoryLimit int `mapstructure:"history_limit"`
}

// RuntimeConfig controls the isolated execution backend
type RuntimeConfig struct {
	// Backend selects the runtime: "docker", "podman", or "shell"
	Backend string `mapstructure:"backend"`
	// BaseImage overrides the strategy's container image when non-empty
	BaseImage string `mapstructure:"base_image"`
	// CommandTimeoutSeconds bounds a single command execution
	CommandTimeoutSeconds int `mapstructure:"command_timeout_seconds"`
	// PrepareTimeoutSeconds bounds runtime environment preparation
	PrepareTimeoutSeconds int `mapstructure:"prepare_timeout_seconds"`
}

// RetryConfig controls per-step retry behavior
type RetryConfig struct {
	// StepAttempts is the number of attempts per pipeline step (min 1)
	StepAttempts int `mapstructure:"step_attempts"`
	// CloneAttempts is the number of attempts for the clone step (min 1)
	CloneAttempts int `mapstructure:"clone_attempts"`
}

// DocsConfig controls documentation discovery
type DocsConfig struct {
	// MaxDocs caps the number of documentation files examined per run
	MaxDocs int `mapstructure:"max_docs"`
	// MaxFileBytes caps the size of a single documentation file
	MaxFileBytes int `mapstructure:"max_file_bytes"`
}

// PolicyConfig controls command validation
type PolicyConfig struct {
	// ConfigFile is an optional YAML file of additional policy rules
	ConfigFile string `mapstructure:"config_file"`
}

// PipelineConfig controls run orchestration
type PipelineConfig struct {
	// BestEffort continues executing remaining commands after a command
	// fails instead of failing the run at the first non-zero exit
	BestEffort bool `mapstructure:"best_effort"`
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	// Enabled turns file logging on; when false logs go to stderr
	Enabled bool `mapstructure:"enabled"`
	// Level is the minimum level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// MaxSizeMB is the log size threshold for rotation (0 disables)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated log files to keep
	MaxBackups int `mapstructure:"max_backups"`
}

// PathsConfig controls filesystem locations
type PathsConfig struct {
	// DataDir holds run records, event history, and logs.
	// Empty means {config dir}/data.
	DataDir string `mapstructure:"data_dir"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Events: EventsConfig{
			HistoryLimit: 1000,
		},
		Runtime: RuntimeConfig{
			Backend:               "docker",
			CommandTimeoutSeconds: 600,
			PrepareTimeoutSeconds: 120,
		},
		Retry: RetryConfig{
			StepAttempts:  1,
			CloneAttempts: 2,
		},
		Docs: DocsConfig{
			MaxDocs:      20,
			MaxFileBytes: 1 << 20,
		},
		Pipeline: PipelineConfig{
			BestEffort: false,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// CommandTimeout returns the per-command timeout as a duration
func (c *RuntimeConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

// PrepareTimeout returns the runtime preparation timeout as a duration
func (c *RuntimeConfig) PrepareTimeout() time.Duration {
	return time.Duration(c.PrepareTimeoutSeconds) * time.Second
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("events.history_limit", defaults.Events.HistoryLimit)

	viper.SetDefault("runtime.backend", defaults.Runtime.Backend)
	viper.SetDefault("runtime.base_image", defaults.Runtime.BaseImage)
	viper.SetDefault("runtime.command_timeout_seconds", defaults.Runtime.CommandTimeoutSeconds)
	viper.SetDefault("runtime.prepare_timeout_seconds", defaults.Runtime.PrepareTimeoutSeconds)

	viper.SetDefault("retry.step_attempts", defaults.Retry.StepAttempts)
	viper.SetDefault("retry.clone_attempts", defaults.Retry.CloneAttempts)

	viper.SetDefault("docs.max_docs", defaults.Docs.MaxDocs)
	viper.SetDefault("docs.max_file_bytes", defaults.Docs.MaxFileBytes)

	viper.SetDefault("policy.config_file", defaults.Policy.ConfigFile)

	viper.SetDefault("pipeline.best_effort", defaults.Pipeline.BestEffort)

	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	viper.SetDefault("paths.data_dir", defaults.Paths.DataDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "novasystem")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".novasystem"
	}
	return filepath.Join(home, ".config", "novasystem")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ResolveDataDir returns the effective data directory
func (p *PathsConfig) ResolveDataDir() string {
	if p.DataDir != "" {
		return p.DataDir
	}
	return filepath.Join(ConfigDir(), "data")
}
