package props

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelAttachDetach(t *testing.T) {
	t.Run("delivers in attachment order", func(t *testing.T) {
		ch := NewChannel[int]()
		var log []string

		ch.Attach(func(v int, inv *Invocation) { log = append(log, "first") })
		ch.Attach(func(v int, inv *Invocation) { log = append(log, "second") })

		require.NoError(t, ch.Fire(1))
		assert.Equal(t, []string{"first", "second"}, log)
	})

	t.Run("detach is idempotent", func(t *testing.T) {
		ch := NewChannel[int]()
		var count int
		h := ch.Attach(func(v int, inv *Invocation) { count++ })

		ch.Detach(h)
		ch.Detach(h)
		ch.Detach(nil)

		require.NoError(t, ch.Fire(1))
		assert.Equal(t, 0, count)
	})

	t.Run("clear removes every listener", func(t *testing.T) {
		ch := NewChannel[int]()
		var count int
		ch.Attach(func(v int, inv *Invocation) { count++ })
		ch.Attach(func(v int, inv *Invocation) { count++ })

		ch.Clear()
		require.NoError(t, ch.Fire(1))
		assert.Equal(t, 0, count)
	})

	t.Run("dispose is infallible and inert to further attach", func(t *testing.T) {
		ch := NewChannel[int]()
		var count int
		ch.Attach(func(v int, inv *Invocation) { count++ })

		ch.Dispose()
		ch.Attach(func(v int, inv *Invocation) { count++ })

		require.NoError(t, ch.Fire(1))
		assert.Equal(t, 0, count)
	})

	t.Run("stop halts delivery to later listeners for that fire only", func(t *testing.T) {
		ch := NewChannel[int]()
		var log []string

		ch.Attach(func(v int, inv *Invocation) {
			log = append(log, "a")
			inv.Stop()
		})
		ch.Attach(func(v int, inv *Invocation) { log = append(log, "b") })

		require.NoError(t, ch.Fire(1))
		require.NoError(t, ch.Fire(2))

		assert.Equal(t, []string{"a", "a"}, log)
	})
}

func TestOnce(t *testing.T) {
	t.Run("detaches before invoking body", func(t *testing.T) {
		ch := NewChannel[int]()
		var fired []int

		ch.Once(func(v int) { fired = append(fired, v) }, func(v int) bool { return v >= 2 })

		require.NoError(t, ch.Fire(1))
		require.NoError(t, ch.Fire(2))
		require.NoError(t, ch.Fire(3))

		assert.Equal(t, []int{2}, fired)
	})
}

func TestChanges(t *testing.T) {
	t.Run("first fire delivers previous absent", func(t *testing.T) {
		ch := NewChannel[int]()

		type pair struct {
			prev    Option[int]
			present bool
			curr    int
		}
		var pairs []pair

		ch.Changes(func(prev Option[int], curr int) {
			v, ok := prev.Get()
			pairs = append(pairs, pair{prev: prev, present: ok, curr: curr + v*0})
		})

		require.NoError(t, ch.Fire(1))
		require.NoError(t, ch.Fire(2))

		require.Len(t, pairs, 2)
		assert.False(t, pairs[0].present)
		assert.True(t, pairs[1].present)
		v, _ := pairs[1].prev.Get()
		assert.Equal(t, 1, v)
	})
}

func TestFuture(t *testing.T) {
	t.Run("resolves on matching fire", func(t *testing.T) {
		ch := NewChannel[int]()
		fut := ch.Future(func(v int) bool { return v >= 5 })

		require.NoError(t, ch.Fire(1))
		require.NoError(t, ch.Fire(5))

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		v, err := fut.Wait(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, v)
	})

	t.Run("returns context error when cancelled first", func(t *testing.T) {
		ch := NewChannel[int]()
		fut := ch.Future(func(v int) bool { return v >= 5 })

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := fut.Wait(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		require.NoError(t, ch.Fire(5))
	})
}

func TestDistinct(t *testing.T) {
	t.Run("filters consecutive duplicates", func(t *testing.T) {
		ch := NewChannel[int]()
		distinct := Distinct[int](ch.Observable)

		var seen []int
		distinct.Attach(func(v int, inv *Invocation) { seen = append(seen, v) })

		require.NoError(t, ch.Fire(1))
		require.NoError(t, ch.Fire(1))
		require.NoError(t, ch.Fire(2))
		require.NoError(t, ch.Fire(2))
		require.NoError(t, ch.Fire(1))

		assert.Equal(t, []int{1, 2, 1}, seen)
	})

	t.Run("DistinctFunc uses a custom equivalence", func(t *testing.T) {
		ch := NewChannel[string]()
		sameLength := DistinctFunc[string](ch.Observable, func(a, b string) bool {
			return len(a) == len(b)
		})

		var seen []string
		sameLength.Attach(func(v string, inv *Invocation) { seen = append(seen, v) })

		require.NoError(t, ch.Fire("ab"))
		require.NoError(t, ch.Fire("cd"))
		require.NoError(t, ch.Fire("xyz"))

		assert.Equal(t, []string{"ab", "xyz"}, seen)
	})
}

func TestDistinctDisposeDetachesSource(t *testing.T) {
	t.Run("disposing the derived observable detaches its listener from the source", func(t *testing.T) {
		ch := NewChannel[int]()
		baseline := ch.Identity().Len()

		distinct := Distinct[int](ch.Observable)
		assert.Equal(t, baseline+1, ch.Identity().Len())

		var seen []int
		distinct.Attach(func(v int, inv *Invocation) { seen = append(seen, v) })

		require.NoError(t, ch.Fire(1))
		assert.Equal(t, []int{1}, seen)

		distinct.Dispose()
		assert.Equal(t, baseline, ch.Identity().Len(), "Dispose should detach the filter this Observable registered on its source")

		require.NoError(t, ch.Fire(2))
		assert.Equal(t, []int{1}, seen, "no listener should remain to react to further source fires")
	})
}

func TestFirePanicRecovery(t *testing.T) {
	t.Run("joins listener panics without stopping other listeners", func(t *testing.T) {
		ch := NewChannel[int]()
		var ran []string

		ch.Attach(func(v int, inv *Invocation) {
			ran = append(ran, "first")
			panic(errors.New("boom"))
		})
		ch.Attach(func(v int, inv *Invocation) { ran = append(ran, "second") })

		err := ch.Fire(1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
		assert.Equal(t, []string{"first", "second"}, ran)
	})
}

func TestCurrentlyTracking(t *testing.T) {
	t.Run("outside an evaluation returns ErrNoContext", func(t *testing.T) {
		_, err := CurrentlyTracking()
		assert.ErrorIs(t, err, ErrNoContext)
	})
}
