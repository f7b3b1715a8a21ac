package strategy

// Node manifest and lockfiles. The lockfile determines the package
// manager: npm for package-lock.json, yarn for yarn.lock, pnpm for
// pnpm-lock.yaml.
const (
	nodePackageJSON = "package.json"
	nodeNpmLock     = "package-lock.json"
	nodeYarnLock    = "yarn.lock"
	nodePnpmLock    = "pnpm-lock.yaml"
)

// NodeStrategy onboards npm/yarn/pnpm-based Node projects.
type NodeStrategy struct{}

// NewNode creates the Node strategy.
func NewNode() *NodeStrategy {
	return &NodeStrategy{}
}

// Name returns "node".
func (s *NodeStrategy) Name() string { return "node" }

// Detect requires package.json; a lockfile raises confidence since it
// pins the package manager.
func (s *NodeStrategy) Detect(repoPath string) float64 {
	if !fileExists(repoPath, nodePackageJSON) {
		return 0.0
	}
	if fileExists(repoPath, nodeNpmLock) || fileExists(repoPath, nodeYarnLock) || fileExists(repoPath, nodePnpmLock) {
		return 0.95
	}
	return 0.85
}

// BaseImage returns the Node execution image.
func (s *NodeStrategy) BaseImage() string { return "node:22-bookworm-slim" }

// PreInstall enables corepack when a non-npm lockfile selects yarn or pnpm.
func (s *NodeStrategy) PreInstall(repoPath string) []string {
	if fileExists(repoPath, nodeYarnLock) || fileExists(repoPath, nodePnpmLock) {
		return []string{"corepack enable"}
	}
	return nil
}

// Install returns the install command inferred from the lockfile.
func (s *NodeStrategy) Install(repoPath string) []string {
	switch {
	case fileExists(repoPath, nodeNpmLock):
		return []string{"npm ci"}
	case fileExists(repoPath, nodeYarnLock):
		return []string{"yarn install --frozen-lockfile"}
	case fileExists(repoPath, nodePnpmLock):
		return []string{"pnpm install --frozen-lockfile"}
	}
	return []string{"npm install"}
}

// PostInstall verifies the dependency tree.
func (s *NodeStrategy) PostInstall(repoPath string) []string {
	if fileExists(repoPath, nodeNpmLock) || !fileExists(repoPath, nodeYarnLock) && !fileExists(repoPath, nodePnpmLock) {
		return []string{"npm ls --depth=0"}
	}
	return nil
}

// EnvVars returns the Node execution environment.
func (s *NodeStrategy) EnvVars() map[string]string {
	return map[string]string{
		"CI":                  "true",
		"NPM_CONFIG_AUDIT":    "false",
		"NPM_CONFIG_PROGRESS": "false",
	}
}
