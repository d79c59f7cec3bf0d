// Package clone fetches repository sources into per-run scratch workspaces.
package clone

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace owns the scratch directory tree for one run. Every project key
// gets an exclusive directory under a root namespaced by run ID, so two runs
// on one host cannot collide.
type Workspace struct {
	root string
}

// NewWorkspace creates the run's scratch root under parent. An empty parent
// means the system temp directory.
func NewWorkspace(parent, runID string) (*Workspace, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	root := filepath.Join(parent, "sonarherd-"+runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch root: %w", err)
	}
	return &Workspace{root: root}, nil
}

// Root returns the scratch root for this run.
func (w *Workspace) Root() string { return w.root }

// Dir returns the working directory reserved for one project key. The key is
// flattened into a single path segment so it can never escape the root.
func (w *Workspace) Dir(projectKey string) string {
	return filepath.Join(w.root, pathSegment(projectKey))
}

// Remove deletes one project's working directory, pass or fail.
func (w *Workspace) Remove(projectKey string) error {
	return os.RemoveAll(w.Dir(projectKey))
}

// Close removes the entire scratch root.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.root)
}

func pathSegment(key string) string {
	return strings.NewReplacer("/", "-", "\\", "-", ":", "-", "..", "-").Replace(key)
}
