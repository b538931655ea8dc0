package ctxrun_test

import (
	"context"
	"testing"

	"github.com/romshark/debouncify/internal/ctxrun"
	"github.com/stretchr/testify/require"
)

func TestRunner(t *testing.T) {
	r := ctxrun.New()
	require.False(t, r.Running())

	blockFirstGoroutine := make(chan struct{})
	ctxErrBefore := make(chan error, 1)
	ctxErrAfter := make(chan error)
	run := r.Go(context.Background(), func(ctx context.Context) {
		// Will write to buffer and immediately continue.
		ctxErrBefore <- ctx.Err()
		// Will block until second call to Go and manual unblock
		<-blockFirstGoroutine
		ctxErrAfter <- ctx.Err()
	})
	require.Equal(t, uint64(1), run)

	require.NoError(t, <-ctxErrBefore)
	require.True(t, r.Running())

	ctxErrBefore2 := make(chan error, 1)
	run = r.Go(context.Background(), func(ctx context.Context) {
		ctxErrBefore2 <- ctx.Err()
	})
	require.Equal(t, uint64(2), run)

	// Unblock first goroutine to read its context error.
	blockFirstGoroutine <- struct{}{}

	require.NoError(t, <-ctxErrBefore2)
	require.Equal(t, context.Canceled, <-ctxErrAfter)

	r.Wait()
	require.False(t, r.Running())
}

func TestRunnerCancel(t *testing.T) {
	var r ctxrun.Runner
	r.Cancel() // No-op

	started := make(chan struct{})
	r.Go(context.Background(), func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	})
	<-started
	require.True(t, r.Running())

	r.Cancel()
	require.False(t, r.Running())
	r.Wait()
}

// TestRunnerPassCtx makes sure the context passed to Go is the same
// that's received in the function fn.
func TestRunnerPassCtx(t *testing.T) {
	r := ctxrun.New()

	type ctxKey int8
	const ctxKeyValue ctxKey = 1

	ctx := context.WithValue(context.Background(), ctxKeyValue, 42)

	ctxValue := make(chan int, 1)
	r.Go(ctx, func(ctx context.Context) {
		ctxValue <- ctx.Value(ctxKeyValue).(int)
	})

	require.Equal(t, 42, <-ctxValue)
	r.Wait()
}
