// Package syncstrset provides a concurrency-safe string set.
package syncstrset

import (
	"slices"
	"sync"
)

// Set is a concurrency-safe string set.
// The zero value is not ready to use, use New instead.
type Set struct {
	lock sync.Mutex
	m    map[string]struct{}
}

func New() *Set { return &Set{m: map[string]struct{}{}} }

// Len returns the number of stored strings.
func (s *Set) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.m)
}

// Store adds a string to the set.
func (s *Set) Store(key string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.m[key] = struct{}{}
}

// Drain removes all strings from the set and returns them sorted.
// Returns nil if the set is empty.
func (s *Set) Drain() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.m) < 1 {
		return nil
	}
	keys := make([]string, 0, len(s.m))
	for k := range s.m {
		keys = append(keys, k)
	}
	clear(s.m)
	slices.Sort(keys)
	return keys
}
