package props

import "github.com/outr/props/internal"

// ErrNoContext and ErrRecursionExhausted are the two internal-misuse error
// kinds surfaced by this package; use errors.Is to test for them.
var (
	ErrNoContext          = internal.ErrNoContext
	ErrRecursionExhausted = internal.ErrRecursionExhausted
)

// PanicError wraps a value recovered from a panic raised inside a listener
// body or a State's expression.
type PanicError = internal.PanicError

// CurrentlyTracking returns the Observables referenced so far by the
// expression currently being evaluated on the calling goroutine, or
// ErrNoContext when called outside of any expression evaluation.
func CurrentlyTracking() ([]Dependency, error) {
	set, err := internal.CurrentDependencySet()
	if err != nil {
		return nil, err
	}

	out := make([]Dependency, 0, len(set))
	for dep := range set {
		out = append(out, Dependency(dep))
	}
	return out, nil
}
