package strategy

// ManualName is the name of the fallback strategy selected when no
// ecosystem matches.
const ManualName = "manual"

// ManualStrategy is the fallback for repositories with no recognizable
// manifest. It supplies no commands, which leaves the run gated until an
// operator overrides.
type ManualStrategy struct{}

// NewManual creates the manual fallback strategy.
func NewManual() *ManualStrategy {
	return &ManualStrategy{}
}

// Name returns "manual".
func (s *ManualStrategy) Name() string { return ManualName }

// Detect always returns zero; the registry selects manual explicitly,
// never by confidence.
func (s *ManualStrategy) Detect(repoPath string) float64 { return 0.0 }

// BaseImage returns a minimal shell image.
func (s *ManualStrategy) BaseImage() string { return "debian:bookworm-slim" }

// PreInstall returns nothing.
func (s *ManualStrategy) PreInstall(repoPath string) []string { return nil }

// Install returns nothing.
func (s *ManualStrategy) Install(repoPath string) []string { return nil }

// PostInstall returns nothing.
func (s *ManualStrategy) PostInstall(repoPath string) []string { return nil }

// EnvVars returns an empty environment.
func (s *ManualStrategy) EnvVars() map[string]string { return map[string]string{} }
