// Package watcher provides a recursive file watcher with glob exclusion.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/romshark/debouncify/internal/fswalk"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// Watcher is a recursive file watcher.
type Watcher struct {
	lock        sync.Mutex
	baseDir     string
	watchedDirs map[string]struct{}
	exclude     map[string]glob.Glob
	onChange    func(ctx context.Context, e fsnotify.Event)
	watcher     *fsnotify.Watcher
	closed      bool
}

var ErrClosed = errors.New("closed")

// New creates a new file watcher that executes onChange for any
// remove/create/write/rename filesystem event on a path that isn't excluded.
// onChange will receive the ctx that was passed to Run.
// baseDir is used as the base path for relative exclude expressions.
func New(
	baseDir string,
	onChange func(ctx context.Context, e fsnotify.Event),
) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		baseDir:     baseDir,
		watchedDirs: make(map[string]struct{}),
		exclude:     make(map[string]glob.Glob),
		onChange:    onChange,
		watcher:     w,
	}, nil
}

// RangeWatchedDirs calls fn for every currently watched directory.
// Noop if the watcher is closed.
func (w *Watcher) RangeWatchedDirs(fn func(path string) (continueIter bool)) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return
	}
	for p := range w.watchedDirs {
		if !fn(p) {
			return
		}
	}
}

// Close stops watching everything and closes the watcher.
// Noop if the watcher is closed.
func (w *Watcher) Close() error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.watcher.Close()
}

// Run runs the watcher until ctx is canceled.
// Returns ErrClosed if already closed.
func (w *Watcher) Run(ctx context.Context) error {
	w.lock.Lock()
	if w.closed {
		w.lock.Unlock()
		return ErrClosed
	}
	w.lock.Unlock()

	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-w.watcher.Events:
			if !ok {
				return ErrClosed
			}
			if e.Op == 0 || e.Op == fsnotify.Chmod {
				continue
			}
			if w.IsExcluded(e.Name) {
				continue
			}
			if err := w.followDirs(e); err != nil {
				return err
			}
			w.onChange(ctx, e)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrClosed
			}
			if err != nil {
				return fmt.Errorf("watching: %w", err)
			}
		}
	}
}

// followDirs starts watching created directories
// and stops watching removed or renamed ones.
func (w *Watcher) followDirs(e fsnotify.Event) error {
	switch {
	case e.Has(fsnotify.Create):
		if fi, err := os.Stat(e.Name); err != nil || !fi.IsDir() {
			return nil
		}
		if err := w.Add(e.Name); err != nil {
			return fmt.Errorf("adding created directory: %w", err)
		}
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		// A new create notification will readd a renamed directory.
		if err := w.Remove(e.Name); err != nil {
			return fmt.Errorf("removing directory: %w", err)
		}
	}
	return nil
}

// Ignore adds an exclude glob filter and stops watching all currently
// watched directories that match the expression.
// Returns ErrClosed if the watcher is closed.
func (w *Watcher) Ignore(globExpression string) error {
	g, err := glob.Compile(globExpression)
	if err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if w.closed {
		return ErrClosed
	}

	w.exclude[globExpression] = g
	for dir := range w.watchedDirs {
		if dir == w.baseDir || !w.isExcluded(dir) {
			continue
		}
		if err := w.remove(dir); err != nil {
			return fmt.Errorf("removing %q: %w", dir, err)
		}
	}
	return nil
}

// Unignore removes an exclude glob filter.
// Noop if filter doesn't exist or the watcher is closed.
func (w *Watcher) Unignore(globExpression string) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return
	}
	delete(w.exclude, globExpression)
}

// IsExcluded returns true if path matches any exclude filter.
func (w *Watcher) IsExcluded(path string) bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.isExcluded(path)
}

func (w *Watcher) isExcluded(path string) bool {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, x := range w.exclude {
		if x.Match(rel) {
			return true
		}
	}
	return false
}

// Add starts watching the directory and all of its subdirectories recursively.
// Excluded subdirectories are skipped.
// Returns ErrClosed if the watcher is already closed.
func (w *Watcher) Add(dir string) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return ErrClosed
	}
	return fswalk.Dirs(dir, w.isExcluded, func(dir string) error {
		if _, ok := w.watchedDirs[dir]; ok {
			return nil // Directory already watched.
		}
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.watchedDirs[dir] = struct{}{}
		return nil
	})
}

// Remove stops watching the directory and all of its subdirectories recursively.
// Noop if dir isn't watched.
// Returns ErrClosed if the watcher is already closed.
func (w *Watcher) Remove(dir string) error {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.remove(dir)
}

func (w *Watcher) remove(dir string) error {
	if _, ok := w.watchedDirs[dir]; !ok {
		return nil
	}
	prefix := dir + string(filepath.Separator)
	for p := range w.watchedDirs {
		if p != dir && !strings.HasPrefix(p, prefix) {
			continue
		}
		delete(w.watchedDirs, p)
		if err := w.watcher.Remove(p); err != nil &&
			!errors.Is(err, fsnotify.ErrNonExistentWatch) {
			return err
		}
	}
	return nil
}
