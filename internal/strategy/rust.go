package strategy

const (
	rustManifest = "Cargo.toml"
	rustLock     = "Cargo.lock"
)

// RustStrategy onboards cargo-based Rust projects.
type RustStrategy struct{}

// NewRust creates the Rust strategy.
func NewRust() *RustStrategy {
	return &RustStrategy{}
}

// Name returns "rust".
func (s *RustStrategy) Name() string { return "rust" }

// Detect requires Cargo.toml.
func (s *RustStrategy) Detect(repoPath string) float64 {
	if !fileExists(repoPath, rustManifest) {
		return 0.0
	}
	if fileExists(repoPath, rustLock) {
		return 0.95
	}
	return 0.9
}

// BaseImage returns the Rust execution image.
func (s *RustStrategy) BaseImage() string { return "rust:1.82-slim" }

// PreInstall returns nothing; the base image carries the toolchain.
func (s *RustStrategy) PreInstall(repoPath string) []string { return nil }

// Install fetches and builds the dependency graph.
func (s *RustStrategy) Install(repoPath string) []string {
	if fileExists(repoPath, rustLock) {
		return []string{"cargo fetch --locked", "cargo build --locked"}
	}
	return []string{"cargo fetch", "cargo build"}
}

// PostInstall verifies the build metadata is intact.
func (s *RustStrategy) PostInstall(repoPath string) []string {
	return []string{"cargo metadata --format-version 1 --no-deps"}
}

// EnvVars returns the Rust execution environment.
func (s *RustStrategy) EnvVars() map[string]string {
	return map[string]string{
		"CARGO_TERM_COLOR": "never",
	}
}
