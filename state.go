package props

import "github.com/outr/props/internal"

type stateOptions[T any] struct {
	distinct bool
	equal    Equal[T]
	cache    bool
}

// StateOption configures a State at construction.
type StateOption[T any] func(*stateOptions[T])

// WithDistinct suppresses fires whose new value equals the cached value,
// using == on T.
func WithDistinct[T comparable]() StateOption[T] {
	return func(o *stateOptions[T]) {
		o.distinct = true
		o.equal = func(a, b T) bool { return a == b }
	}
}

// WithEqual suppresses fires whose new value equals the cached value per
// eq, for types == does not apply to or where a different notion of
// sameness is wanted.
func WithEqual[T any](eq Equal[T]) StateOption[T] {
	return func(o *stateOptions[T]) {
		o.distinct = true
		o.equal = eq
	}
}

// NoCache disables caching: every read re-evaluates the expression instead
// of returning the value from the most recent evaluation.
func NoCache[T any]() StateOption[T] {
	return func(o *stateOptions[T]) {
		o.cache = false
	}
}

// State is a derived value defined by a zero-argument expression over other
// Observables. It discovers its dependencies by observing which Observables
// the expression reads, and automatically re-evaluates and re-fires when
// any of them change.
type State[T any] struct {
	*Observable[T]
	state *internal.State
}

// NewState constructs a State from fn and evaluates it once immediately. A
// panic raised by fn during this first evaluation propagates to the
// caller.
func NewState[T any](fn func() T, opts ...StateOption[T]) *State[T] {
	cfg := stateOptions[T]{cache: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	var equalAny func(a, b any) bool
	if cfg.equal != nil {
		equalAny = func(a, b any) bool { return cfg.equal(as[T](a), as[T](b)) }
	}

	inner := internal.NewState(func() any { return fn() }, cfg.distinct, equalAny, cfg.cache)

	return &State[T]{
		Observable: wrapObservable[T](inner.Observable),
		state:      inner,
	}
}

// Get reads the current value: the cached value if caching is enabled,
// otherwise a fresh evaluation.
func (s *State[T]) Get() T {
	return as[T](s.state.Get())
}

// Value is an alias for Get.
func (s *State[T]) Value() T {
	return s.Get()
}

// This reads the State's own value from within its own expression, by
// falling back one level on the previous-function stack. Use it from a
// closure that captures the *State[T] variable being constructed:
//
//	var v *props.StateChannel[int]
//	v = props.NewVar(0)
//	v.Set(func() int { return v.This() + 1 })
func (s *State[T]) This() T {
	return as[T](s.state.This())
}

// Observing returns the Observables currently read by this State's
// expression.
func (s *State[T]) Observing() []Dependency {
	deps := s.state.Dependencies()
	out := make([]Dependency, len(deps))
	for i, d := range deps {
		out[i] = Dependency(d)
	}
	return out
}

func (s *State[T]) replaceWith(fn func() T) error {
	return s.state.Replace(func() any { return fn() })
}

// Dispose detaches this State's monitor from every current dependency and
// clears its own listeners.
func (s *State[T]) Dispose() {
	s.state.Dispose()
}
