// Package workspace manages the per-request scratch directories the extraction
// tool writes into.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Prefix is the name prefix of every workspace directory. The stale sweep only
// touches directories carrying it.
const Prefix = "mp3grab-"

// active holds the directories acquired by this process and not yet released.
var active = struct {
	sync.Mutex
	dirs map[string]struct{}
}{dirs: make(map[string]struct{})}

// inUse reports whether dir is held by a request in this process.
func inUse(dir string) bool {
	active.Lock()
	defer active.Unlock()

	_, ok := active.dirs[filepath.Clean(dir)]

	return ok
}

// Workspace is a temporary directory owned by a single request.
type Workspace struct {
	dir  string
	once sync.Once
	err  error
}

// Acquire creates a fresh, uniquely named directory under root.
// Callers must defer Release.
func Acquire(root string) (*Workspace, error) {
	dir, err := os.MkdirTemp(root, Prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	active.Lock()
	active.dirs[filepath.Clean(dir)] = struct{}{}
	active.Unlock()

	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Release removes the directory and everything in it. Safe to call more than once.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		defer func() {
			active.Lock()
			delete(active.dirs, filepath.Clean(w.dir))
			active.Unlock()
		}()

		if err := os.RemoveAll(w.dir); err != nil {
			w.err = fmt.Errorf("failed to remove workspace %s: %w", w.dir, err)
		}
	})

	return w.err
}
