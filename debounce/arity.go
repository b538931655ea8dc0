package debounce

import "time"

// Action0 is a debounced function without arguments.
type Action0 struct{ a *Action[struct{}] }

// New0 creates a debounced action for a function without arguments.
func New0(fn func(), delay time.Duration, opts ...Option) *Action0 {
	return &Action0{a: New(func(struct{}) { fn() }, delay, opts...)}
}

func (a *Action0) Call()                { a.a.Call(struct{}{}) }
func (a *Action0) Cancel()              { a.a.Cancel() }
func (a *Action0) Pending() bool        { return a.a.Pending() }
func (a *Action0) Delay() time.Duration { return a.a.Delay() }
func (a *Action0) Handle() *Handle      { return a.a.Handle() }

// Args2 carries the arguments of an [Action2].
type Args2[T1, T2 any] struct {
	A T1
	B T2
}

// Action2 is a debounced function accepting two arguments.
type Action2[A, B any] struct{ a *Action[Args2[A, B]] }

// New2 creates a debounced action for a function accepting two arguments.
func New2[A, B any](fn func(A, B), delay time.Duration, opts ...Option) *Action2[A, B] {
	return &Action2[A, B]{
		a: New(func(x Args2[A, B]) { fn(x.A, x.B) }, delay, opts...),
	}
}

func (a *Action2[A, B]) Call(x A, y B)        { a.a.Call(Args2[A, B]{A: x, B: y}) }
func (a *Action2[A, B]) Cancel()              { a.a.Cancel() }
func (a *Action2[A, B]) Pending() bool        { return a.a.Pending() }
func (a *Action2[A, B]) Delay() time.Duration { return a.a.Delay() }
func (a *Action2[A, B]) Handle() *Handle      { return a.a.Handle() }

// Args3 carries the arguments of an [Action3].
type Args3[T1, T2, T3 any] struct {
	A T1
	B T2
	C T3
}

// Action3 is a debounced function accepting three arguments.
type Action3[A, B, C any] struct{ a *Action[Args3[A, B, C]] }

// New3 creates a debounced action for a function accepting three arguments.
func New3[A, B, C any](
	fn func(A, B, C), delay time.Duration, opts ...Option,
) *Action3[A, B, C] {
	return &Action3[A, B, C]{
		a: New(func(x Args3[A, B, C]) { fn(x.A, x.B, x.C) }, delay, opts...),
	}
}

func (a *Action3[A, B, C]) Call(x A, y B, z C) {
	a.a.Call(Args3[A, B, C]{A: x, B: y, C: z})
}
func (a *Action3[A, B, C]) Cancel()              { a.a.Cancel() }
func (a *Action3[A, B, C]) Pending() bool        { return a.a.Pending() }
func (a *Action3[A, B, C]) Delay() time.Duration { return a.a.Delay() }
func (a *Action3[A, B, C]) Handle() *Handle      { return a.a.Handle() }
