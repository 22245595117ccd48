package props

import (
	"context"

	"github.com/outr/props/internal"
)

// Dependency is the identity of something a State can depend on. Two
// Observables compare equal as Dependency values iff they are the same
// Observable, regardless of the element type each was built with.
type Dependency = *internal.Observable

// Equal is a customization point for structural sameness when T does not
// satisfy comparable, or when == is not the desired notion of sameness.
type Equal[T any] func(a, b T) bool

// Invocation is the per-fire control token handed to every listener.
type Invocation struct {
	inv *internal.Invocation
}

func (i *Invocation) Stop() {
	i.inv.Stop()
}

func (i *Invocation) IsStopped() bool {
	return i.inv.IsStopped()
}

// ListenerHandle identifies a single attachment; detach compares by this
// handle's identity, never by the behavior it wraps.
type ListenerHandle struct {
	link *internal.Listener
}

// Listener is a named function-listener type, for callers who want to build
// one independent of any particular Attach call (Observe accepts these
// directly).
type Listener[T any] func(T, *Invocation)

// ChangeListener is invoked with the previous value (absent on the first
// fire) and the current value.
type ChangeListener[T any] func(prev Option[T], curr T)

// as performs the one type assertion the generic-over-untyped-core split
// requires.
func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	return v.(T)
}

// Observable is the multicast base every reactive node in this package
// embeds.
type Observable[T any] struct {
	obs *internal.Observable

	// onDispose, when set, is run before obs is disposed. Distinct and
	// DistinctFunc use it to detach the filter they registered on their
	// source, so a derived Observable doesn't outlive its own usefulness by
	// rooting a closure on the source forever.
	onDispose func()
}

func newObservable[T any]() *Observable[T] {
	return &Observable[T]{obs: internal.NewObservable()}
}

func wrapObservable[T any](o *internal.Observable) *Observable[T] {
	return &Observable[T]{obs: o}
}

// Identity exposes the underlying Observable's pointer identity, for
// comparing against a State's Observing() set.
func (o *Observable[T]) Identity() Dependency {
	return Dependency(o.obs)
}

// Attach adds f to the listener list, returning a handle that detaches it.
func (o *Observable[T]) Attach(f func(T, *Invocation)) *ListenerHandle {
	link := o.obs.Attach(func(value any, inv *internal.Invocation) {
		f(as[T](value), &Invocation{inv: inv})
	})
	return &ListenerHandle{link: link}
}

// Observe attaches an already-named Listener.
func (o *Observable[T]) Observe(l Listener[T]) *ListenerHandle {
	return o.Attach(l)
}

// On attaches a listener that ignores the fired value.
func (o *Observable[T]) On(body func()) *ListenerHandle {
	return o.Attach(func(T, *Invocation) { body() })
}

// Once attaches a listener that detaches itself, before running f, the
// first time condition holds for a fired value.
func (o *Observable[T]) Once(f func(T), condition func(T) bool) *ListenerHandle {
	var link *internal.Listener
	link = o.obs.Attach(func(value any, inv *internal.Invocation) {
		v := as[T](value)
		if !condition(v) {
			return
		}
		o.obs.Detach(link)
		f(v)
	})
	return &ListenerHandle{link: link}
}

// Changes attaches a wrapper that tracks the previous value and invokes f
// with (previous, current) pairs. The first fire is delivered with the
// previous value absent.
func (o *Observable[T]) Changes(f ChangeListener[T]) *ListenerHandle {
	var havePrev bool
	var prevVal T

	return o.Attach(func(v T, inv *Invocation) {
		var prev Option[T]
		if havePrev {
			prev = Some(prevVal)
		} else {
			prev = None[T]()
		}
		f(prev, v)
		prevVal = v
		havePrev = true
	})
}

// Future is a one-shot completion handle resolved by the next fire
// satisfying a condition.
type Future[T any] struct {
	ch chan T
}

// Future returns a handle resolved by the next fire satisfying condition.
func (o *Observable[T]) Future(condition func(T) bool) *Future[T] {
	fut := &Future[T]{ch: make(chan T, 1)}
	o.Once(func(v T) { fut.ch <- v }, condition)
	return fut
}

// Wait blocks until the Future resolves or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case v := <-f.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Detach removes a listener by its handle. Idempotent.
func (o *Observable[T]) Detach(h *ListenerHandle) {
	if h == nil {
		return
	}
	o.obs.Detach(h.link)
}

// Clear detaches every listener.
func (o *Observable[T]) Clear() {
	o.obs.Clear()
}

// Dispose clears every listener and marks the Observable inert. If this
// Observable derives from another one (Distinct, DistinctFunc), it also
// detaches the filter it registered on its source.
func (o *Observable[T]) Dispose() {
	if o.onDispose != nil {
		o.onDispose()
	}
	o.obs.Dispose()
}

// fire is the write primitive every endpoint in this package (Channel,
// State's own downstream notification) funnels through.
func (o *Observable[T]) fire(v T) error {
	return o.obs.Fire(v)
}

// Distinct returns a derived Observable that filters consecutive duplicate
// values using ==.
func Distinct[T comparable](o *Observable[T]) *Observable[T] {
	return DistinctFunc[T](o, func(a, b T) bool { return a == b })
}

// DistinctFunc returns a derived Observable that filters consecutive
// duplicate values using eq. Disposing the returned Observable also detaches
// the filter from o, so it doesn't keep o referencing out indefinitely.
func DistinctFunc[T any](o *Observable[T], eq Equal[T]) *Observable[T] {
	out := newObservable[T]()

	var havePrev bool
	var prevVal T
	handle := o.Attach(func(v T, inv *Invocation) {
		if havePrev && eq(prevVal, v) {
			return
		}
		prevVal = v
		havePrev = true
		out.fire(v)
	})
	out.onDispose = func() { o.Detach(handle) }

	return out
}
