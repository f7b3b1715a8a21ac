package docs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDoc(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscover_FindsDocFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "README.md", "# readme")
	writeDoc(t, dir, "INSTALL", "install notes")
	writeDoc(t, dir, "docs/setup.markdown", "setup")
	writeDoc(t, dir, "main.go", "package main")

	documents, err := NewDiscoverer().Discover(dir, "run-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	var paths []string
	for _, d := range documents {
		paths = append(paths, d.Path)
	}
	want := []string{"INSTALL", "README.md", filepath.Join("docs", "setup.markdown")}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
	if documents[0].RunID != "run-1" {
		t.Errorf("RunID = %q", documents[0].RunID)
	}
}

func TestDiscover_RootDocsSortFirst(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a/deep.md", "deep")
	writeDoc(t, dir, "zz.md", "root")

	documents, err := NewDiscoverer().Discover(dir, "run-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(documents) != 2 || documents[0].Path != "zz.md" {
		t.Errorf("root doc did not sort first: %+v", documents)
	}
}

func TestDiscover_SkipsVendoredTrees(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "node_modules/pkg/README.md", "dep readme")
	writeDoc(t, dir, ".git/COMMIT.md", "internal")
	writeDoc(t, dir, "vendor/lib/README.md", "vendored")
	writeDoc(t, dir, "README.md", "* real")

	documents, err := NewDiscoverer().Discover(dir, "run-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(documents) != 1 || documents[0].Path != "README.md" {
		t.Errorf("vendored docs not skipped: %+v", documents)
	}
}

func TestDiscover_HonorsMaxDocs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md"} {
		writeDoc(t, dir, name, "x")
	}

	d := NewDiscoverer()
	d.MaxDocs = 2
	documents, err := d.Discover(dir, "run-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(documents) != 2 {
		t.Errorf("got %d documents, want 2", len(documents))
	}
}

func TestDiscover_SkipsOversizedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "big.md", strings.Repeat("x", 100))
	writeDoc(t, dir, "small.md", "ok")

	d := NewDiscoverer()
	d.MaxBytes = 50
	documents, err := d.Discover(dir, "run-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(documents) != 1 || documents[0].Path != "small.md" {
		t.Errorf("oversized file not skipped: %+v", documents)
	}
}

func TestDiscover_UnreadableDocSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "good.md", "fine")
	writeDoc(t, dir, "bad.md", "unreadable")

	d := NewDiscoverer()
	d.ReadFile = func(path string) ([]byte, error) {
		if strings.HasSuffix(path, "bad.md") {
			return nil, errors.New("permission denied")
		}
		return os.ReadFile(path)
	}

	documents, err := d.Discover(dir, "run-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(documents) != 1 || documents[0].Path != "good.md" {
		t.Errorf("documents = %+v", documents)
	}
}

func TestDiscover_EmptyRepoIsNotAnError(t *testing.T) {
	documents, err := NewDiscoverer().Discover(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(documents) != 0 {
		t.Errorf("documents = %+v", documents)
	}
}
