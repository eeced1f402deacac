package sources

import (
	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
)

// FromSlice returns a source enqueuing one item per pull, and closing the
// stream along with the last one.
func FromSlice[T any](items []T) streams.UnderlyingSource[T] {
	next := 0

	return streams.UnderlyingSource[T]{
		Pull: func(c *streams.Controller[T]) (*promises.Promise[any], error) {
			if next < len(items) {
				if err := c.Enqueue(items[next]); err != nil {
					return nil, err
				}
				next++
			}

			if next == len(items) {
				return nil, c.Close()
			}
			return nil, nil
		},
		Cancel: func(any) (*promises.Promise[any], error) {
			next = len(items)
			return nil, nil
		},
	}
}
