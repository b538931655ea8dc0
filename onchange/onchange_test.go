package onchange_test

import (
	"sync"
	"testing"
	"time"

	"github.com/romshark/debouncify/debounce"
	"github.com/romshark/debouncify/onchange"

	"github.com/stretchr/testify/require"
)

type change[T any] struct{ Old, New T }

type recorder[T any] struct {
	lock    sync.Mutex
	changes []change[T]
}

func (r *recorder[T]) record(oldValue, newValue T) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.changes = append(r.changes, change[T]{Old: oldValue, New: newValue})
}

func (r *recorder[T]) get() []change[T] {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]change[T](nil), r.changes...)
}

func TestValue(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue("initial")
	require.Equal(t, "initial", v.Get())

	var r recorder[string]
	unsubscribe := v.Subscribe(r.record)

	c := make(chan struct{}, 3)
	v.AddListener(c)

	require.False(t, v.Set("initial"), "equal value must not change")
	require.True(t, v.Set("a"))
	require.True(t, v.Set("b"))
	require.False(t, v.Set("b"))
	require.Equal(t, "b", v.Get())
	require.Len(t, c, 2)

	require.Equal(t, []change[string]{
		{Old: "initial", New: "a"},
		{Old: "a", New: "b"},
	}, r.get())

	unsubscribe()
	unsubscribe() // No-op
	v.RemoveListener(c)
	require.True(t, v.Set("c"))
	require.Len(t, r.get(), 2)
	require.Len(t, c, 2)
}

func TestValueUpdate(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue(uint64(0))
	var r recorder[uint64]
	v.Subscribe(r.record)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Update(func(c uint64) uint64 { return c + 1 })
		}()
	}
	wg.Wait()
	require.Equal(t, uint64(32), v.Get())
	require.Len(t, r.get(), 32)

	require.False(t, v.Update(func(c uint64) uint64 { return c }))
	require.Len(t, r.get(), 32)
}

func TestAdapterCoalesces(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue("")
	var r recorder[string]
	a := onchange.Attach[string](v, 100*time.Millisecond, r.record)
	t.Cleanup(a.Detach)

	for _, s := range []string{"H", "He", "Hel", "Hell", "Hello"} {
		v.Set(s)
		time.Sleep(10 * time.Millisecond)
	}
	require.Empty(t, r.get())
	require.True(t, a.Pending())

	time.Sleep(200 * time.Millisecond)
	require.Equal(t, []change[string]{{Old: "Hell", New: "Hello"}}, r.get())
	require.False(t, a.Pending())
}

func TestAdapterNoChangeNoAction(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue(42)
	var r recorder[int]
	a := onchange.Attach[int](v, 10*time.Millisecond, r.record)
	t.Cleanup(a.Detach)

	v.Set(42)
	require.False(t, a.Pending())
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, r.get())
}

func TestAdapterInitial(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue(1)
	var r recorder[int]
	a := onchange.Attach[int](v, 20*time.Millisecond, r.record, onchange.Initial())
	t.Cleanup(a.Detach)

	require.True(t, a.Pending())
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, []change[int]{{Old: 1, New: 1}}, r.get())

	v.Set(2)
	time.Sleep(80 * time.Millisecond)
	require.Equal(t, []change[int]{{Old: 1, New: 1}, {Old: 1, New: 2}}, r.get())
}

func TestAdapterInitialSupersededByChange(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue(1)
	var r recorder[int]
	a := onchange.Attach[int](v, 50*time.Millisecond, r.record, onchange.Initial())
	t.Cleanup(a.Detach)

	v.Set(2)
	time.Sleep(150 * time.Millisecond)
	require.Equal(t, []change[int]{{Old: 1, New: 2}}, r.get())
}

// eagerSource reports a change from initial to next
// right when a subscriber is registered.
type eagerSource struct {
	lock  sync.Mutex
	value int
	next  int
}

func (s *eagerSource) Get() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.value
}

func (s *eagerSource) Subscribe(fn func(oldValue, newValue int)) (unsubscribe func()) {
	s.lock.Lock()
	old := s.value
	s.value = s.next
	s.lock.Unlock()
	fn(old, s.next)
	return func() {}
}

func TestAdapterInitialChangeDuringSubscribe(t *testing.T) {
	t.Parallel()

	src := &eagerSource{value: 1, next: 2}
	var r recorder[int]
	a := onchange.Attach[int](src, 20*time.Millisecond, r.record, onchange.Initial())
	t.Cleanup(a.Detach)

	time.Sleep(80 * time.Millisecond)
	require.Equal(t, []change[int]{{Old: 1, New: 2}}, r.get())
}

func TestAdapterExternalHandle(t *testing.T) {
	t.Parallel()

	var h debounce.Handle
	v := onchange.NewValue("")
	var r recorder[string]
	a := onchange.Attach[string](v, 50*time.Millisecond, r.record,
		onchange.WithHandle(&h))
	t.Cleanup(a.Detach)
	require.Same(t, &h, a.Handle())

	v.Set("query")
	require.True(t, h.Pending())

	// Cancel from outside of the adapter, e.g. on an unrelated key press.
	h.Cancel()
	require.False(t, a.Pending())
	time.Sleep(100 * time.Millisecond)
	require.Empty(t, r.get())

	v.Set("query 2")
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, []change[string]{{Old: "query", New: "query 2"}}, r.get())
}

func TestAdapterCancel(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue(0)
	var r recorder[int]
	a := onchange.Attach[int](v, 30*time.Millisecond, r.record)
	t.Cleanup(a.Detach)

	v.Set(1)
	a.Cancel()
	a.Cancel() // No-op
	time.Sleep(80 * time.Millisecond)
	require.Empty(t, r.get())
}

func TestAdapterDetachCancelsPending(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue(0)
	var r recorder[int]
	a := onchange.Attach[int](v, 30*time.Millisecond, r.record)

	v.Set(1)
	require.True(t, a.Pending())
	a.Detach()
	require.False(t, a.Pending())
	a.Detach() // No-op

	v.Set(2) // Not observed anymore.
	require.False(t, a.Pending())
	time.Sleep(80 * time.Millisecond)
	require.Empty(t, r.get())
}

func TestAdapterConcurrentChanges(t *testing.T) {
	t.Parallel()

	v := onchange.NewValue(0)
	var r recorder[int]
	a := onchange.Attach[int](v, 50*time.Millisecond, r.record)
	t.Cleanup(a.Detach)

	var wg sync.WaitGroup
	for i := 1; i <= 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Set(i)
		}()
	}
	wg.Wait()

	time.Sleep(150 * time.Millisecond)
	changes := r.get()
	require.Len(t, changes, 1)
	require.Equal(t, v.Get(), changes[0].New)
}
