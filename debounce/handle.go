package debounce

import (
	"context"
	"sync"
	"time"
)

// Handle is a cancellation handle for at most one pending deferred execution.
// All operations on a Handle are serialized by its lock, which makes it safe
// for concurrent use. The zero value is ready to use.
//
// A Handle is usually owned by an [Action] but can be created by the caller
// and passed to [WithHandle] to cancel or inspect the pending execution from
// outside of the action.
type Handle struct {
	lock    sync.Mutex
	counter uint64
	pending *execution
}

type execution struct{ cancel context.CancelFunc }

// Schedule cancels the currently pending execution (if any) and schedules fn
// to run in a new goroutine once delay elapsed. It never waits for fn.
// The context passed to fn is canceled when the execution is superseded
// by another call to Schedule or by Cancel.
func (h *Handle) Schedule(delay time.Duration, fn func(ctx context.Context)) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.cancelPending()

	h.counter++
	ctx, cancel := context.WithCancel(context.Background())
	e := &execution{cancel: cancel}
	h.pending = e

	go h.run(ctx, e, delay, fn)
}

func (h *Handle) run(
	ctx context.Context, e *execution, delay time.Duration, fn func(context.Context),
) {
	defer e.cancel() // Release context resources.

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return // Canceled while waiting.
	case <-t.C:
	}

	h.lock.Lock()
	if h.pending != e {
		// Superseded or canceled after the timer fired
		// but before the lock was acquired.
		h.lock.Unlock()
		return
	}
	h.lock.Unlock()

	defer func() {
		h.lock.Lock()
		defer h.lock.Unlock()
		if h.pending == e {
			// No other execution was scheduled in the meanwhile.
			h.pending = nil
		}
	}()

	fn(ctx)
}

// Cancel cancels the pending execution.
// If the execution has already started running, it runs to completion
// but its context is canceled.
// No-op if nothing is pending.
func (h *Handle) Cancel() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.cancelPending()
}

func (h *Handle) cancelPending() {
	if h.pending == nil {
		return
	}
	h.pending.cancel()
	h.pending = nil
}

// Pending returns true if an execution is either waiting for its delay
// to elapse or currently running.
func (h *Handle) Pending() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.pending != nil
}

// Generation returns the number of executions scheduled so far.
func (h *Handle) Generation() uint64 {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.counter
}
