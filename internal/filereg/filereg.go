// Package filereg keeps track of file contents by checksum to tell
// actual content changes apart from writes that changed nothing.
package filereg

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Registry keeps track of given files with their checksum.
type Registry struct {
	lock           sync.Mutex
	hasher         *xxhash.Digest
	checksumByPath map[string]uint64
}

func NewRegistry() *Registry {
	return &Registry{
		hasher:         xxhash.New(),
		checksumByPath: make(map[string]uint64),
	}
}

// Update reads the file and stores its checksum.
// Returns changed=true if filePath wasn't registered before
// or its checksum differs from the registered one.
func (r *Registry) Update(filePath string) (changed bool, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	r.lock.Lock()
	defer r.lock.Unlock()

	r.hasher.Reset()
	if _, err := io.Copy(r.hasher, file); err != nil {
		return false, fmt.Errorf("copying to xxhash: %w", err)
	}
	checksum := r.hasher.Sum64()

	current, ok := r.checksumByPath[filePath]
	if ok && current == checksum {
		return false, nil
	}
	r.checksumByPath[filePath] = checksum
	return true, nil
}

// Deregister removes filePath from the registry.
// Returns true if it was registered.
func (r *Registry) Deregister(filePath string) (ok bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	_, ok = r.checksumByPath[filePath]
	delete(r.checksumByPath, filePath)
	return ok
}

func (r *Registry) Get(filePath string) (checksum uint64, ok bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	s, ok := r.checksumByPath[filePath]
	return s, ok
}

// Len returns the number of registered files.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.checksumByPath)
}
