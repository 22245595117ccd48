package internal

import (
	"sync"

	"github.com/petermattis/goid"
)

// Runtime holds the dependency-tracking state for a single goroutine. Go has
// no native thread-local storage, so goroutine id (via goid, the same
// mechanism the teacher library uses to key its own per-goroutine scheduler
// state) stands in for "thread" throughout this package.
type Runtime struct {
	mu       sync.Mutex
	depStack []*depFrame
}

type depFrame struct {
	set map[*Observable]struct{}
}

var runtimes sync.Map // int64 (goid) -> *Runtime

func getRuntime() *Runtime {
	gid := goid.Get()

	if r, ok := runtimes.Load(gid); ok {
		return r.(*Runtime)
	}

	r := &Runtime{}
	runtimes.Store(gid, r)
	return r
}

// ContextHandle is returned by PushDependencyContext; releasing it restores
// the previous context and yields the set of Observables referenced while it
// was installed.
type ContextHandle struct {
	r *Runtime
}

// PushDependencyContext installs a fresh, empty capture set as the current
// dependency context for the calling goroutine.
func PushDependencyContext() *ContextHandle {
	r := getRuntime()

	r.mu.Lock()
	r.depStack = append(r.depStack, &depFrame{set: make(map[*Observable]struct{})})
	r.mu.Unlock()

	return &ContextHandle{r: r}
}

// Release pops the context installed by the matching PushDependencyContext
// call and returns everything referenced while it was active. Safe to call
// exactly once, from a defer, on every exit path (including panics).
func (h *ContextHandle) Release() map[*Observable]struct{} {
	r := h.r

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.depStack)
	frame := r.depStack[n-1]
	r.depStack = r.depStack[:n-1]

	return frame.set
}

// ReferenceDependency records o as read by the currently evaluating
// expression, if any. It is a no-op when no context is installed.
func ReferenceDependency(o *Observable) {
	r := getRuntime()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.depStack) == 0 {
		return
	}

	r.depStack[len(r.depStack)-1].set[o] = struct{}{}
}

// CurrentDependencySet returns the capture set of the innermost installed
// dependency context, or ErrNoContext if none is installed.
func CurrentDependencySet() (map[*Observable]struct{}, error) {
	r := getRuntime()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.depStack) == 0 {
		return nil, ErrNoContext
	}

	return r.depStack[len(r.depStack)-1].set, nil
}
