// Package statetrack tracks the run status of watchers
// and notifies listeners on every change.
package statetrack

import (
	"fmt"
	"sync"
	"time"

	"github.com/romshark/debouncify/internal/broadcaster"
)

type Status int8

const (
	StatusIdle Status = iota
	StatusPending
	StatusRunning
	StatusOK
	StatusFailed
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	}
	return fmt.Sprintf("Status(%d)", int8(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Watcher is the state of a single watcher.
type Watcher struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Runs   uint64 `json:"runs"`

	// Scheduled is the number of debounced executions scheduled so far.
	// Each run coalesces all executions scheduled since the previous one.
	Scheduled uint64 `json:"scheduled"`

	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

type Tracker struct {
	watchers    []Watcher
	lock        sync.Mutex
	broadcaster *broadcaster.Broadcaster[struct{}]
}

// NewTracker creates a tracker with one idle watcher per name.
// Watchers are indexed in the order of names.
func NewTracker(names ...string) *Tracker {
	w := make([]Watcher, len(names))
	for i, n := range names {
		w[i].Name = n
	}
	return &Tracker{
		watchers:    w,
		broadcaster: broadcaster.NewSignal(),
	}
}

// Len returns the number of tracked watchers.
func (t *Tracker) Len() int { return len(t.watchers) }

// Get gets the current state of the watcher at index.
func (t *Tracker) Get(index int) Watcher {
	t.lock.Lock()
	defer t.lock.Unlock()
	return t.watchers[index]
}

// Snapshot returns a copy of the state of all watchers.
func (t *Tracker) Snapshot() []Watcher {
	t.lock.Lock()
	defer t.lock.Unlock()
	return append([]Watcher(nil), t.watchers...)
}

// ErrIndex returns the index of the first failed watcher or -1.
func (t *Tracker) ErrIndex() int {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i, w := range t.watchers {
		if w.Status == StatusFailed {
			return i
		}
	}
	return -1
}

// NumListeners returns the number of currently active listeners.
func (t *Tracker) NumListeners() int { return t.broadcaster.Len() }

// AddListener adds a listener channel.
// c will be written struct{}{} to when a state change happens.
func (t *Tracker) AddListener(c chan<- struct{}) { t.broadcaster.AddListener(c) }

// RemoveListener removes a listener channel.
func (t *Tracker) RemoveListener(c chan<- struct{}) { t.broadcaster.RemoveListener(c) }

// SetStatus sets the status of the watcher at index.
// Entering StatusRunning increments the number of runs.
func (t *Tracker) SetStatus(index int, s Status) {
	t.lock.Lock()
	defer t.lock.Unlock()
	w := &t.watchers[index]
	if w.Status == s {
		return // State didn't change, ignore.
	}
	w.Status = s
	if s == StatusRunning {
		w.Runs++
	}
	t.broadcaster.BroadcastNonblock(struct{}{})
}

// SetScheduled sets the number of scheduled executions of the watcher at index.
func (t *Tracker) SetScheduled(index int, n uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()
	w := &t.watchers[index]
	if w.Scheduled == n {
		return // State didn't change, ignore.
	}
	w.Scheduled = n
	t.broadcaster.BroadcastNonblock(struct{}{})
}

// Finish sets the result of the latest run of the watcher at index.
func (t *Tracker) Finish(index int, s Status, output string, took time.Duration) {
	t.lock.Lock()
	defer t.lock.Unlock()
	w := &t.watchers[index]
	w.Status, w.Output, w.Duration = s, output, took
	t.broadcaster.BroadcastNonblock(struct{}{})
}

// Reset resets all watchers to idle and notifies all listeners.
func (t *Tracker) Reset() {
	t.lock.Lock()
	defer t.lock.Unlock()
	for i := range t.watchers {
		t.watchers[i] = Watcher{Name: t.watchers[i].Name}
	}
	t.broadcaster.BroadcastNonblock(struct{}{})
}
