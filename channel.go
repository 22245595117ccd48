package props

// Channel is a write-only entry point: Fire simply multicasts its argument.
// It holds no state of its own and never registers as a dependency on read,
// because there is nothing to read.
type Channel[T any] struct {
	*Observable[T]
}

func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{Observable: newObservable[T]()}
}

// Fire sends v to every attached listener.
func (c *Channel[T]) Fire(v T) error {
	return c.fire(v)
}
