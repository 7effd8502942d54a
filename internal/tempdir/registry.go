// Package tempdir keeps the list of directories whose contents are scratch
// data, and empties them on a schedule.
package tempdir

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrPathNotFound is returned when a recursive add starts from a path
	// that does not exist.
	ErrPathNotFound = errors.New("path not found")

	// ErrNotADirectory is returned when a recursive add starts from a path
	// that is not a directory.
	ErrNotADirectory = errors.New("not a directory")
)

// Registry is an ordered, de-duplicated set of directories slated for
// cleanup. It only records paths; it never creates or deletes anything.
type Registry struct {
	mu    sync.Mutex
	paths []string
	index map[string]struct{}

	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index:  make(map[string]struct{}),
		logger: slog.Default().With("component", "tempdir.registry"),
	}
}

// Add registers path. With recursive set, every subdirectory below path is
// registered as well, depth first. Paths already registered are skipped
// silently.
//
// The root is registered before the walk starts, so a failing recursive add
// still leaves path itself in the registry.
func (r *Registry) Add(path string, recursive bool) error {
	path = filepath.Clean(path)
	r.mu.Lock()
	defer r.mu.Unlock()

	r.appendLocked(path)
	if !recursive {
		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPathNotFound, path)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotADirectory, path)
	}
	return r.walkLocked(path)
}

// Paths returns the registered directories in insertion order.
func (r *Registry) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

// Contains reports whether path is registered.
func (r *Registry) Contains(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[filepath.Clean(path)]
	return ok
}

// Len returns the number of registered directories.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// walkLocked registers every subdirectory of dir. Symlinked directories are
// not followed.
func (r *Registry) walkLocked(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		r.appendLocked(sub)
		if err := r.walkLocked(sub); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) appendLocked(path string) {
	if _, ok := r.index[path]; ok {
		return
	}
	r.index[path] = struct{}{}
	r.paths = append(r.paths, path)
	r.logger.Debug("temp dir registered", "path", path)
}
