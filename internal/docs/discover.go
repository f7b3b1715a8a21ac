// Package docs discovers documentation files in a checked-out repository
// and extracts candidate installation commands from them. Extraction is
// best-effort and structural (markdown AST), not semantic: every
// extracted command is untrusted text and must pass the command policy
// before execution.
package docs

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctavolazzi/novasystem/internal/run"
)

// Discovery limits. Repositories can carry enormous generated docs;
// onboarding only needs the instructional surface near the root.
const (
	defaultMaxDocs     = 20
	defaultMaxDocBytes = 1 << 20 // 1 MiB per file
)

// Directories never worth scanning for install docs.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	".venv":        true,
	"venv":         true,
}

// Extensionless filenames treated as documentation.
var bareDocNames = map[string]bool{
	"README":       true,
	"INSTALL":      true,
	"CONTRIBUTING": true,
}

// ReadFileFunc supplies raw documentation bytes for a path. The default
// reads from the local filesystem; tests substitute their own.
type ReadFileFunc func(path string) ([]byte, error)

// Discoverer finds documentation files under a repository root.
type Discoverer struct {
	ReadFile ReadFileFunc
	MaxDocs  int
	MaxBytes int64
}

// NewDiscoverer creates a Discoverer with filesystem defaults.
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		ReadFile: os.ReadFile,
		MaxDocs:  defaultMaxDocs,
		MaxBytes: defaultMaxDocBytes,
	}
}

// Discover walks the repository and returns documentation records for
// every markdown (or bare README/INSTALL/CONTRIBUTING) file found, up to
// the configured limits. Paths in the returned records are relative to
// repoPath. Root-level files sort first so the README is parsed before
// deep docs when the cap truncates the list.
//
// Finding zero files is not an error; the discovery step treats it as a
// skip.
func (d *Discoverer) Discover(repoPath, runID string) ([]run.Documentation, error) {
	var paths []string

	err := filepath.WalkDir(repoPath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if skipDirs[entry.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if isDocFile(entry.Name()) {
			rel, relErr := filepath.Rel(repoPath, path)
			if relErr != nil {
				return relErr
			}
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(paths, func(i, j int) bool {
		di, dj := strings.Count(paths[i], string(filepath.Separator)), strings.Count(paths[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return paths[i] < paths[j]
	})

	if d.MaxDocs > 0 && len(paths) > d.MaxDocs {
		paths = paths[:d.MaxDocs]
	}

	docs := make([]run.Documentation, 0, len(paths))
	for _, rel := range paths {
		full := filepath.Join(repoPath, rel)
		if d.MaxBytes > 0 {
			if info, statErr := os.Stat(full); statErr == nil && info.Size() > d.MaxBytes {
				continue
			}
		}
		data, readErr := d.ReadFile(full)
		if readErr != nil {
			// A single unreadable doc should not fail discovery.
			continue
		}
		docs = append(docs, run.Documentation{
			Path:    rel,
			RawText: string(data),
			RunID:   runID,
		})
	}
	return docs, nil
}

// isDocFile reports whether a filename looks like documentation.
func isDocFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".md" || ext == ".markdown" {
		return true
	}
	base := strings.ToUpper(strings.TrimSuffix(name, filepath.Ext(name)))
	return ext == "" && bareDocNames[base] || ext == ".txt" && bareDocNames[base]
}
