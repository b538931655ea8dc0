// Package ctxrun runs at most one goroutine at a time,
// canceling the context of the previous one when a new one starts.
package ctxrun

import (
	"context"
	"sync"
)

func New() *Runner { return new(Runner) }

// Runner runs a goroutine and cancels the context of any previous call to Go.
// The zero value is ready to use.
type Runner struct {
	lock    sync.Mutex
	counter uint64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Go cancels the context of the currently running goroutine (if any) and runs
// fn in a new goroutine without waiting for the previous one to return.
// Returns the sequence number of the run starting at 1.
func (r *Runner) Go(ctx context.Context, fn func(ctx context.Context)) (run uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.counter++
	id := r.counter

	if r.cancel != nil {
		r.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			cancel()
			r.lock.Lock()
			defer r.lock.Unlock()
			if r.counter == id {
				// No other run was started in the meanwhile.
				r.cancel = nil
			}
		}()

		fn(ctx)
	}()
	return id
}

// Cancel cancels the context of the currently running goroutine.
// No-op if nothing is running.
func (r *Runner) Cancel() {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Running returns true if the latest goroutine hasn't returned yet
// and wasn't canceled.
func (r *Runner) Running() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.cancel != nil
}

// Wait blocks until all goroutines started by Go returned.
func (r *Runner) Wait() { r.wg.Wait() }
