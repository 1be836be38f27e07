// Package runlog owns the per-run artifact directory.
//
// The directory is wiped and recreated before a run touches it, so
// artifacts from a previous invocation never mix with the current one.
// It holds the server's captured stdout (output.server), each test's
// captured client stdout (testNN.res), a diff for each failing test
// (testNN.diff) and the run summary (summary.json).
package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Artifact file names.
const (
	ServerLogName = "output.server"
	SummaryName   = "summary.json"
	ResultExt     = ".res"
	DiffExt       = ".diff"
)

// Dir is a run log directory.
type Dir struct {
	root string
}

// Create wipes root and recreates it empty. It refuses a root that is
// the filesystem root, the working directory or one of its parents.
func Create(root string) (*Dir, error) {
	if err := checkWipeable(root); err != nil {
		return nil, err
	}
	if err := os.RemoveAll(root); err != nil {
		return nil, fmt.Errorf("removing log directory: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	return &Dir{root: root}, nil
}

func checkWipeable(root string) error {
	if root == "" {
		return errors.New("refusing to recreate log directory: empty path")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving log directory: %w", err)
	}
	if filepath.Dir(abs) == abs {
		return fmt.Errorf("refusing to recreate log directory %q: filesystem root", root)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(wd); err == nil {
		wd = resolved
	}
	if Contains(abs, wd) {
		return fmt.Errorf("refusing to recreate log directory %q: it contains the working directory", root)
	}
	return nil
}

// Contains reports whether path is dir or lies beneath it. Both must be
// absolute and clean.
func Contains(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Open returns the existing log directory at root without modifying it.
func Open(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening log directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("opening log directory: %s is not a directory", root)
	}
	return &Dir{root: root}, nil
}

// Root returns the directory path.
func (d *Dir) Root() string { return d.root }

// ServerLog is the path of the server's stdout capture.
func (d *Dir) ServerLog() string { return filepath.Join(d.root, ServerLogName) }

// Result is the path of the captured client stdout for test name.
func (d *Dir) Result(name string) string { return filepath.Join(d.root, name+ResultExt) }

// Diff is the path of the diff artifact for test name.
func (d *Dir) Diff(name string) string { return filepath.Join(d.root, name+DiffExt) }

// Summary is the path of the run summary.
func (d *Dir) Summary() string { return filepath.Join(d.root, SummaryName) }

// HasDiff reports whether a diff artifact exists for test name.
func (d *Dir) HasDiff(name string) bool {
	_, err := os.Stat(d.Diff(name))
	return err == nil
}

// ReadArtifact returns the content of path, or "" when it does not exist.
func ReadArtifact(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
