package internal

import (
	"sync"

	"github.com/petermattis/goid"
)

// State is the derived-value engine: a current expression, its cached
// value, the set of Observables it currently reads, and a stack of prior
// expressions used to resolve self-reference (This()).
type State struct {
	*Observable

	mu            sync.Mutex
	function      func() any
	cachedValue   any
	hasValue      bool
	previousStack []func() any
	recursionIdx  map[int64]int
	dependencies  map[*Observable]*Listener

	distinct     bool
	equal        func(a, b any) bool
	cacheEnabled bool

	replaceMu sync.Mutex
	monitor   ListenerFunc
}

// NewState constructs a State and performs its first evaluation. A panic
// from fn during this first evaluation propagates directly to the caller,
// mirroring a constructor-time programmer error rather than a runtime
// condition a caller would want to recover from.
func NewState(fn func() any, distinct bool, equal func(a, b any) bool, cacheEnabled bool) *State {
	s := &State{
		Observable:   NewObservable(),
		function:     fn,
		recursionIdx: make(map[int64]int),
		dependencies: make(map[*Observable]*Listener),
		distinct:     distinct,
		equal:        equal,
		cacheEnabled: cacheEnabled,
	}

	// The monitor fully re-evaluates and re-wires on every dependency fire,
	// not just on Replace, so a conditionally-read dependency (an If that
	// reads a different Observable each time) stays correct without a
	// manual Replace — mirrors the teacher's Computed.run(), which disposes
	// and re-links on every recompute rather than only at construction.
	s.monitor = func(value any, inv *Invocation) {
		s.replaceMu.Lock()
		err := s.evaluateAndWire()
		s.replaceMu.Unlock()
		if err != nil {
			panic(err)
		}
	}

	_ = s.evaluateAndWire()

	return s
}

// Get reads the current value, returning the cached value when caching is
// enabled and a value has already been produced.
func (s *State) Get() any {
	return s.readValue(true)
}

// This reads the State's own value from within its own expression. It is
// the same operation as Get: the previous-function stack and the
// recursion-replacement slot are what make self-reference resolve to the
// prior expression instead of recursing forever.
func (s *State) This() any {
	return s.Get()
}

// readValue is the public read path: every call references this State in
// whatever dependency context is currently installed, whether that's an
// outside expression reading this State as one of its dependencies, or a
// nested This() call from within this State's own expression. This is the
// only thing that should ever mark a State as self-referential — merely
// running the expression as the top-level evaluation pass (driveEvaluate,
// below) is not itself a read by anyone.
func (s *State) readValue(wantCache bool) any {
	ReferenceDependency(s.Observable)
	return s.evaluate(wantCache)
}

// driveEvaluate runs this State's own function as the top-level evaluation
// pass used by evaluateAndWire, without treating that evaluation as a read
// of this State. A nested This() call the expression makes along the way
// still goes through readValue and references this State normally, which
// is exactly the signal evaluateAndWire uses to detect self-reference.
func (s *State) driveEvaluate() any {
	return s.evaluate(false)
}

// evaluate implements the three-branch read algorithm: either consume one
// level of the recursion-replacement slot (a nested This() call) or
// install a fresh level from previousStack and evaluate normally.
func (s *State) evaluate(wantCache bool) any {
	gid := goid.Get()

	s.mu.Lock()
	idx, active := s.recursionIdx[gid]

	if active {
		if idx < 0 {
			s.mu.Unlock()
			panic(ErrRecursionExhausted)
		}

		s.recursionIdx[gid] = idx - 1
		fn := s.previousStack[idx]
		s.mu.Unlock()

		defer func() {
			s.mu.Lock()
			s.recursionIdx[gid] = idx
			s.mu.Unlock()
		}()

		return fn()
	}

	start := -1
	if n := len(s.previousStack); n > 0 {
		start = n - 1
	}
	s.recursionIdx[gid] = start

	if wantCache && s.cacheEnabled && s.hasValue {
		v := s.cachedValue
		delete(s.recursionIdx, gid)
		s.mu.Unlock()
		return v
	}

	fn := s.function
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.recursionIdx, gid)
		s.mu.Unlock()
	}()

	return fn()
}

// Replace installs newFn as the current expression, evaluates it, and
// rewires dependency subscriptions to match what it read. Mutually
// exclusive with other Replace calls on the same State. A panic raised
// while evaluating newFn is recovered and returned as an error instead of
// propagating, since a running State surviving one bad expression is the
// whole point of the engine.
func (s *State) Replace(newFn func() any) (err error) {
	s.replaceMu.Lock()
	defer s.replaceMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = &PanicError{Source: s.Observable, Value: r}
			}
		}
	}()

	s.mu.Lock()
	s.previousStack = append(s.previousStack, s.function)
	s.function = newFn
	s.mu.Unlock()

	return s.evaluateAndWire()
}

// evaluateAndWire evaluates the current function under a fresh dependency
// context, decides whether the previous-function stack survives (only when
// the expression read This()), diffs the captured reads against the
// existing dependency set, and commits the resulting value. Called both by
// Replace and, on every dependency fire, by the monitor, so conditional
// dependencies stay accurate without requiring a manual Replace.
func (s *State) evaluateAndWire() error {
	handle := PushDependencyContext()

	var newValue any
	var captured map[*Observable]struct{}
	func() {
		defer func() { captured = handle.Release() }()
		newValue = s.driveEvaluate()
	}()

	_, selfReferential := captured[s.Observable]

	s.mu.Lock()
	if !selfReferential {
		s.previousStack = nil
	}
	delete(captured, s.Observable)

	for dep, link := range s.dependencies {
		if _, ok := captured[dep]; !ok {
			dep.Detach(link)
			delete(s.dependencies, dep)
		}
	}
	for dep := range captured {
		if _, ok := s.dependencies[dep]; !ok {
			s.dependencies[dep] = dep.Attach(s.monitor)
		}
	}
	s.mu.Unlock()

	return s.commitValue(newValue)
}

func (s *State) commitValue(v any) error {
	s.mu.Lock()
	changed := true
	if s.distinct && s.hasValue && s.equal != nil {
		changed = !s.equal(s.cachedValue, v)
	}
	if changed || !s.hasValue {
		s.cachedValue = v
		s.hasValue = true
	}
	s.mu.Unlock()

	if !changed {
		return nil
	}
	return s.Fire(v)
}

// Dependencies returns the Observables currently read by the State's
// expression.
func (s *State) Dependencies() []*Observable {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Observable, 0, len(s.dependencies))
	for dep := range s.dependencies {
		out = append(out, dep)
	}
	return out
}

// Dispose detaches the monitor from every current dependency in addition to
// clearing the State's own listeners.
func (s *State) Dispose() {
	s.mu.Lock()
	deps := s.dependencies
	s.dependencies = make(map[*Observable]*Listener)
	s.mu.Unlock()

	for dep, link := range deps {
		dep.Detach(link)
	}

	s.Observable.Dispose()
}
