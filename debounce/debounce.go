// Package debounce provides debounced actions: wrappers that collapse bursts
// of rapid calls into a single execution performed only after the caller
// has been quiet for a fixed delay.
//
// Every call cancels the previously pending execution and schedules a new one.
// Calls never block, the wrapped function always runs in its own goroutine.
// Cancellation is cooperative: an execution that has already started running
// can't be stopped, but its context is canceled.
package debounce

import (
	"context"
	"time"
)

// Option configures an action.
type Option func(*options)

type options struct{ handle *Handle }

// WithHandle makes the action read and write its pending execution
// through h instead of a privately owned handle.
// This allows h.Cancel to be called from outside of the action.
func WithHandle(h *Handle) Option {
	return func(o *options) { o.handle = h }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.handle == nil {
		o.handle = new(Handle)
	}
	return o
}

// Action is a debounced function accepting arguments of type A.
// Use a struct type for A to pass multiple arguments,
// or use [New0], [New2] or [New3].
type Action[A any] struct {
	delay  time.Duration
	fn     func(ctx context.Context, args A)
	handle *Handle
}

// New creates a new debounced action that will execute fn
// once delay elapsed after the last call.
// A negative delay is treated the same as zero.
func New[A any](fn func(args A), delay time.Duration, opts ...Option) *Action[A] {
	return NewContext(func(_ context.Context, args A) { fn(args) }, delay, opts...)
}

// NewContext is similar to New but fn receives a context that's canceled
// when the running execution is superseded by a later call or canceled.
func NewContext[A any](
	fn func(ctx context.Context, args A), delay time.Duration, opts ...Option,
) *Action[A] {
	o := applyOptions(opts)
	return &Action[A]{delay: delay, fn: fn, handle: o.handle}
}

// Call cancels any pending execution and schedules a new one with args.
// Call returns immediately.
func (a *Action[A]) Call(args A) {
	a.handle.Schedule(a.delay, func(ctx context.Context) { a.fn(ctx, args) })
}

// Cancel cancels the pending execution. No-op if nothing is pending.
func (a *Action[A]) Cancel() { a.handle.Cancel() }

// Pending returns true if an execution is scheduled or running.
func (a *Action[A]) Pending() bool { return a.handle.Pending() }

// Delay returns the debounce delay.
func (a *Action[A]) Delay() time.Duration { return a.delay }

// Handle returns the cancellation handle of the action.
func (a *Action[A]) Handle() *Handle { return a.handle }
