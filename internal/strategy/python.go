package strategy

// Python manifest files, in descending order of confidence.
const (
	pythonRequirements = "requirements.txt"
	pythonPyproject    = "pyproject.toml"
	pythonSetup        = "setup.py"
	pythonPipfile      = "Pipfile"
)

// PythonStrategy onboards pip/pipenv-based Python projects.
type PythonStrategy struct{}

// NewPython creates the Python strategy.
func NewPython() *PythonStrategy {
	return &PythonStrategy{}
}

// Name returns "python".
func (s *PythonStrategy) Name() string { return "python" }

// Detect returns high confidence when any recognized Python manifest
// exists. A pyproject or requirements file is the strongest signal;
// setup.py alone is slightly weaker since some repos carry a vestigial one.
func (s *PythonStrategy) Detect(repoPath string) float64 {
	switch {
	case fileExists(repoPath, pythonRequirements), fileExists(repoPath, pythonPyproject):
		return 0.9
	case fileExists(repoPath, pythonSetup), fileExists(repoPath, pythonPipfile):
		return 0.8
	}
	return 0.0
}

// BaseImage returns the Python execution image.
func (s *PythonStrategy) BaseImage() string { return "python:3.12-slim" }

// PreInstall upgrades pip before dependency installation.
func (s *PythonStrategy) PreInstall(repoPath string) []string {
	return []string{"python -m pip install --upgrade pip"}
}

// Install returns the installation command for whichever manifest is present.
func (s *PythonStrategy) Install(repoPath string) []string {
	switch {
	case fileExists(repoPath, pythonRequirements):
		return []string{"pip install -r requirements.txt"}
	case fileExists(repoPath, pythonPipfile):
		return []string{"pip install pipenv", "pipenv install --deploy --system"}
	case fileExists(repoPath, pythonPyproject), fileExists(repoPath, pythonSetup):
		return []string{"pip install ."}
	}
	return nil
}

// PostInstall verifies the resulting environment is consistent.
func (s *PythonStrategy) PostInstall(repoPath string) []string {
	return []string{"pip check"}
}

// EnvVars returns the Python execution environment.
func (s *PythonStrategy) EnvVars() map[string]string {
	return map[string]string{
		"PIP_DISABLE_PIP_VERSION_CHECK": "1",
		"PYTHONUNBUFFERED":              "1",
	}
}
