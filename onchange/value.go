package onchange

import (
	"sync"

	"github.com/romshark/debouncify/internal/broadcaster"
)

// Source is a change notification source for a value of type T.
type Source[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn to be called with the old and the new value
	// on every change. Calling unsubscribe stops further notifications.
	Subscribe(fn func(oldValue, newValue T)) (unsubscribe func())
}

// Value is a concurrency-safe tracked value.
type Value[T comparable] struct {
	lock        sync.Mutex
	value       T
	counter     uint64
	subscribers map[uint64]func(oldValue, newValue T)
	broadcaster *broadcaster.Broadcaster[struct{}]
}

var _ Source[int] = new(Value[int])

// NewValue creates a new tracked value with the given initial value.
func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{
		value:       initial,
		subscribers: map[uint64]func(oldValue, newValue T){},
		broadcaster: broadcaster.NewSignal(),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.value
}

// Set sets the value and notifies all subscribers and listeners.
// Returns changed=false and notifies nobody if newValue equals the current value.
//
// Subscribers are called synchronously in the order of calls to Set
// and must not call Set on the same value.
func (v *Value[T]) Set(newValue T) (changed bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.set(newValue)
}

// Update atomically sets the value to the result of fn applied
// to the current value and behaves like Set otherwise.
func (v *Value[T]) Update(fn func(current T) T) (changed bool) {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.set(fn(v.value))
}

func (v *Value[T]) set(newValue T) (changed bool) {
	if newValue == v.value {
		return false // State didn't change, ignore.
	}
	oldValue := v.value
	v.value = newValue
	for _, fn := range v.subscribers {
		fn(oldValue, newValue)
	}
	v.broadcaster.BroadcastNonblock(struct{}{})
	return true
}

// Subscribe registers fn to be called on every change.
func (v *Value[T]) Subscribe(fn func(oldValue, newValue T)) (unsubscribe func()) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.counter++
	id := v.counter
	v.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			v.lock.Lock()
			defer v.lock.Unlock()
			delete(v.subscribers, id)
		})
	}
}

// AddListener adds a listener channel.
// c will be written struct{}{} to when the value changes.
func (v *Value[T]) AddListener(c chan<- struct{}) { v.broadcaster.AddListener(c) }

// RemoveListener removes a listener channel.
func (v *Value[T]) RemoveListener(c chan<- struct{}) { v.broadcaster.RemoveListener(c) }
