// Package onchange binds debounced actions to value changes.
//
// An [Adapter] observes a [Source] and, for every change, cancels the pending
// execution and schedules the action with the old and the new value.
// Rapid changes therefore produce at most one execution per quiet period.
package onchange

import (
	"context"
	"sync"
	"time"

	"github.com/romshark/debouncify/debounce"
)

// Option configures an adapter.
type Option func(*options)

type options struct {
	initial bool
	handle  *debounce.Handle
}

// Initial makes the adapter schedule the action once on attachment,
// passing the current value as both old and new value.
func Initial() Option { return func(o *options) { o.initial = true } }

// WithHandle makes the adapter store its pending execution in h,
// which allows canceling it from outside of the adapter.
func WithHandle(h *debounce.Handle) Option {
	return func(o *options) { o.handle = h }
}

// Adapter runs a debounced action whenever its source changes.
type Adapter[T any] struct {
	delay  time.Duration
	action func(oldValue, newValue T)
	handle *debounce.Handle

	lock        sync.Mutex
	unsubscribe func() // Nil once detached.
}

// Attach subscribes to src and returns the attached adapter.
// action is executed once delay elapsed after the last change.
func Attach[T any](
	src Source[T], delay time.Duration, action func(oldValue, newValue T), opts ...Option,
) *Adapter[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.handle == nil {
		o.handle = new(debounce.Handle)
	}

	a := &Adapter[T]{delay: delay, action: action, handle: o.handle}

	a.lock.Lock()
	defer a.lock.Unlock()
	if o.initial {
		// Schedule before subscribing so that any change
		// notification supersedes the initial execution.
		v := src.Get()
		a.schedule(v, v)
	}
	a.unsubscribe = src.Subscribe(a.schedule)
	return a
}

func (a *Adapter[T]) schedule(oldValue, newValue T) {
	a.handle.Schedule(a.delay, func(context.Context) {
		a.action(oldValue, newValue)
	})
}

// Handle returns the cancellation handle of the adapter.
func (a *Adapter[T]) Handle() *debounce.Handle { return a.handle }

// Pending returns true if an execution is scheduled or running.
func (a *Adapter[T]) Pending() bool { return a.handle.Pending() }

// Cancel cancels the pending execution. No-op if nothing is pending.
func (a *Adapter[T]) Cancel() { a.handle.Cancel() }

// Detach stops observing the source and cancels the pending execution.
// No-op if already detached.
func (a *Adapter[T]) Detach() {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.unsubscribe == nil {
		return
	}
	a.unsubscribe()
	a.unsubscribe = nil
	a.handle.Cancel()
}
