package strategy

const (
	goManifest = "go.mod"
	goSum      = "go.sum"
)

// GoStrategy onboards Go module projects.
type GoStrategy struct{}

// NewGo creates the Go strategy.
func NewGo() *GoStrategy {
	return &GoStrategy{}
}

// Name returns "go".
func (s *GoStrategy) Name() string { return "go" }

// Detect requires go.mod.
func (s *GoStrategy) Detect(repoPath string) float64 {
	if !fileExists(repoPath, goManifest) {
		return 0.0
	}
	if fileExists(repoPath, goSum) {
		return 0.95
	}
	return 0.9
}

// BaseImage returns the Go execution image.
func (s *GoStrategy) BaseImage() string { return "golang:1.23-bookworm" }

// PreInstall returns nothing; the base image carries the toolchain.
func (s *GoStrategy) PreInstall(repoPath string) []string { return nil }

// Install downloads modules and compiles every package.
func (s *GoStrategy) Install(repoPath string) []string {
	return []string{"go mod download", "go build ./..."}
}

// PostInstall verifies module consistency.
func (s *GoStrategy) PostInstall(repoPath string) []string {
	return []string{"go mod verify"}
}

// EnvVars returns the Go execution environment.
func (s *GoStrategy) EnvVars() map[string]string {
	return map[string]string{
		"GOFLAGS":     "-mod=mod",
		"CGO_ENABLED": "0",
	}
}
