package props

import "sync/atomic"

// BindSet controls which side of a new Binding is synchronized first.
type BindSet int

const (
	BindNone BindSet = iota
	BindLeftToRight
	BindRightToLeft
)

// Binding is a two-way link between two StateChannels. A write to either
// side converts and writes through to the other, guarded by a re-entry
// flag so the symmetric listener never writes back during the same outer
// write.
type Binding[A, B any] struct {
	left  *StateChannel[A]
	right *StateChannel[B]

	leftHandle, rightHandle *ListenerHandle
	changing                atomic.Bool
}

// Bind establishes a two-way edge between left and right, converting values
// with toRight/toLeft. setNow controls the initial synchronization
// direction.
func Bind[A, B any](left *StateChannel[A], right *StateChannel[B], toRight func(A) B, toLeft func(B) A, setNow BindSet) *Binding[A, B] {
	b := &Binding[A, B]{left: left, right: right}

	switch setNow {
	case BindLeftToRight:
		right.SetStatic(toRight(left.Get()))
	case BindRightToLeft:
		left.SetStatic(toLeft(right.Get()))
	}

	b.leftHandle = left.Attach(func(v A, inv *Invocation) {
		if !b.changing.CompareAndSwap(false, true) {
			return
		}
		defer b.changing.Store(false)
		right.SetStatic(toRight(v))
	})

	b.rightHandle = right.Attach(func(v B, inv *Invocation) {
		if !b.changing.CompareAndSwap(false, true) {
			return
		}
		defer b.changing.Store(false)
		left.SetStatic(toLeft(v))
	})

	return b
}

// Dispose detaches both paired listeners.
func (b *Binding[A, B]) Dispose() {
	b.left.Detach(b.leftHandle)
	b.right.Detach(b.rightHandle)
}
