// Package engine provides the core debouncify engine for programmatic use.
// It allows running debouncify as a library without the CLI.
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// DefaultDebounce is applied to watchers with a zero debounce duration.
const DefaultDebounce = 300 * time.Millisecond

// Config is the configuration for the debouncify engine.
type Config struct {
	// Dir is the root directory to watch recursively.
	Dir string

	// Exclude is a list of gobwas/glob expressions (relative to Dir)
	// excluded from watching entirely.
	Exclude []string

	// EventsHost is the host:port of the websocket events feed.
	// Empty disables the feed.
	EventsHost string

	// Watchers defines the commands to run when watched files change.
	Watchers []WatcherConfig
}

// WatcherConfig defines a file watcher with an associated command.
type WatcherConfig struct {
	// Name is the display name of the watcher.
	Name string

	// Cmd is the shell command to run when an included file changes.
	// Executed via "sh -c" in Dir.
	Cmd string

	// Include specifies doublestar patterns for what files to watch.
	Include []string

	// Exclude specifies doublestar patterns for what files to ignore
	// that would otherwise match Include.
	Exclude []string

	// Debounce defines how long to wait for more file changes
	// before executing Cmd. Zero means DefaultDebounce.
	Debounce time.Duration

	// Initial runs Cmd once on startup.
	Initial bool
}

// Matches returns true if path (relative to Dir) is included and not excluded.
func (w WatcherConfig) Matches(path string) bool {
	path = filepath.ToSlash(path)
	for _, pattern := range w.Include {
		if matched, _ := doublestar.Match(pattern, path); matched {
			for _, pattern := range w.Exclude {
				if matched, _ := doublestar.Match(pattern, path); matched {
					return false
				}
			}
			return true
		}
	}
	return false
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Dir == "" {
		return errors.New("engine: Dir is required")
	}
	if len(c.Watchers) < 1 {
		return errors.New("engine: at least one watcher is required")
	}
	for i, expr := range c.Exclude {
		if _, err := glob.Compile(expr); err != nil {
			return fmt.Errorf("engine: Exclude[%d] invalid glob %q: %w", i, expr, err)
		}
	}

	names := make(map[string]struct{}, len(c.Watchers))
	for i, w := range c.Watchers {
		if w.Name == "" {
			return fmt.Errorf("engine: Watchers[%d] has no name", i)
		}
		if _, ok := names[w.Name]; ok {
			return fmt.Errorf("engine: Watchers[%d] duplicate name %q", i, w.Name)
		}
		names[w.Name] = struct{}{}
		if w.Cmd == "" {
			return fmt.Errorf("engine: Watchers[%d] %q has no cmd", i, w.Name)
		}
		if len(w.Include) < 1 {
			return fmt.Errorf("engine: Watchers[%d] %q includes nothing", i, w.Name)
		}
		if w.Debounce < 0 {
			return fmt.Errorf("engine: Watchers[%d] %q has negative debounce", i, w.Name)
		}
		for j, pattern := range w.Include {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf(
					"engine: Watchers[%d].Include[%d] invalid glob pattern %q",
					i, j, pattern,
				)
			}
		}
		for j, pattern := range w.Exclude {
			if !doublestar.ValidatePattern(pattern) {
				return fmt.Errorf(
					"engine: Watchers[%d].Exclude[%d] invalid glob pattern %q",
					i, j, pattern,
				)
			}
		}
	}
	return nil
}

// cmdFromString extracts the command name (first word) from a shell command string.
func cmdFromString(s string) string {
	for i, c := range s {
		if c == ' ' || c == '\t' {
			return s[:i]
		}
	}
	return s
}

// applyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) applyDefaults() {
	for i := range c.Watchers {
		if c.Watchers[i].Debounce == 0 {
			c.Watchers[i].Debounce = DefaultDebounce
		}
	}
}
