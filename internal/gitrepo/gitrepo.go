// Package gitrepo resolves a repository reference into a local working
// directory. Remote URLs are shallow-cloned with go-git; local paths are
// used in place so nothing is copied or mutated.
package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"

	"github.com/ctavolazzi/novasystem/internal/errors"
)

// DefaultCloneTimeout bounds a single clone attempt.
const DefaultCloneTimeout = 5 * time.Minute

// Workspace is a resolved repository on the local filesystem.
type Workspace struct {
	// Path is the absolute directory containing the repository contents.
	Path string

	// Cloned reports whether Path was created by this process. Cloned
	// workspaces are safe to remove after the run; mounted local paths
	// are not.
	Cloned bool
}

// Resolver materializes repository references into workspaces.
type Resolver struct {
	// BaseDir is the parent directory for clone targets. Empty means
	// the system temp directory.
	BaseDir string

	// CloneTimeout bounds a single clone attempt. Zero means
	// DefaultCloneTimeout.
	CloneTimeout time.Duration
}

// IsRemote reports whether ref looks like a URL rather than a local path.
func IsRemote(ref string) bool {
	for _, prefix := range []string{"http://", "https://", "git://", "ssh://", "git@"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}

// Resolve turns a repository reference into a local workspace. Remote
// references are cloned at depth 1; local paths are validated and mounted
// in place.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Workspace, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.NewValidationError("repository reference is empty").WithField("repo")
	}
	if IsRemote(ref) {
		return r.clone(ctx, ref)
	}
	return mountLocal(ref)
}

func mountLocal(path string) (*Workspace, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.NewValidationError("cannot resolve path").WithField("repo").WithValue(path).WithCause(err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("repository", abs)
		}
		return nil, errors.Wrapf(err, "stat %s", abs)
	}
	if !info.IsDir() {
		return nil, errors.NewValidationError("not a directory").WithField("repo").WithValue(abs)
	}
	return &Workspace{Path: abs, Cloned: false}, nil
}

func (r *Resolver) clone(ctx context.Context, url string) (*Workspace, error) {
	timeout := r.CloneTimeout
	if timeout <= 0 {
		timeout = DefaultCloneTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dir, err := os.MkdirTemp(r.BaseDir, "novasystem-repo-*")
	if err != nil {
		return nil, errors.Wrap(err, "create clone directory")
	}

	_, err = git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          url,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	})
	if err != nil {
		os.RemoveAll(dir)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.NewTimeoutError("clone", timeout)
		}
		return nil, errors.Wrapf(err, "clone %s", url)
	}
	return &Workspace{Path: dir, Cloned: true}, nil
}

// Cleanup removes a cloned workspace directory. Mounted local paths are
// left untouched.
func (w *Workspace) Cleanup() error {
	if w == nil || !w.Cloned || w.Path == "" {
		return nil
	}
	return os.RemoveAll(w.Path)
}
