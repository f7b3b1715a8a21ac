// Package strategy maps a checked-out repository's file layout to the
// container image, install command sequence, and environment needed to
// onboard it. Each ecosystem (Python, Node, Rust, Go) is a Strategy;
// the Registry selects the best match with a deterministic tie-break.
package strategy

import (
	"os"
	"path/filepath"
)

// Strategy is an ecosystem-specific detector and command provider.
type Strategy interface {
	// Name returns the strategy's stable identifier (e.g., "python").
	Name() string

	// Detect inspects the repository layout and returns a confidence
	// in [0.0, 1.0] that this strategy applies. Detection must be a
	// pure function of the filesystem: two calls on an unchanged
	// repository return the same confidence.
	Detect(repoPath string) float64

	// BaseImage returns the canonical container image tag for this
	// ecosystem.
	BaseImage() string

	// PreInstall returns shell commands to run before installation.
	PreInstall(repoPath string) []string

	// Install returns the ordered installation commands.
	Install(repoPath string) []string

	// PostInstall returns verification commands to run after installation.
	PostInstall(repoPath string) []string

	// EnvVars returns environment variables the execution context needs.
	EnvVars() map[string]string
}

// fileExists reports whether a regular file exists at the given path
// relative to the repository root.
func fileExists(repoPath, name string) bool {
	info, err := os.Stat(filepath.Join(repoPath, name))
	return err == nil && info.Mode().IsRegular()
}
