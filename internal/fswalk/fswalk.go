// Package fswalk provides recursive file system iteration.
package fswalk

import (
	"io/fs"
	"path/filepath"
)

// Files recursively iterates over all files in dir and applies fn to each file.
// Directories for which skip returns true are not descended into.
// skip may be nil.
func Files(dir string, skip func(path string) bool, fn func(path string) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && skip != nil && skip(path) {
				return filepath.SkipDir
			}
			return nil
		}
		return fn(path)
	})
}

// Dirs recursively iterates over all directories in dir, including dir itself,
// and applies fn to each. Directories for which skip returns true are
// skipped together with their subdirectories. dir itself is never skipped.
// skip may be nil.
func Dirs(dir string, skip func(path string) bool, fn func(path string) error) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skip != nil && skip(path) {
			return filepath.SkipDir
		}
		return fn(path)
	})
}
