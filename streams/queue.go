package streams

import (
	"fmt"
	"math"
)

type valueWithSize[T any] struct {
	value T
	size  float64
}

// sizedQueue is a FIFO of chunks along with the running total of their sizes.
type sizedQueue[T any] struct {
	items     []valueWithSize[T]
	totalSize float64
}

// push implements the [EnqueueValueWithSize] abstract operation.
//
// [EnqueueValueWithSize]: https://streams.spec.whatwg.org/#enqueue-value-with-size
func (q *sizedQueue[T]) push(value T, size float64) error {
	if math.IsNaN(size) || math.IsInf(size, 0) || size < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}

	q.items = append(q.items, valueWithSize[T]{value: value, size: size})
	q.totalSize += size
	return nil
}

// shift implements the [DequeueValue] abstract operation. It must not be
// called on an empty queue.
//
// [DequeueValue]: https://streams.spec.whatwg.org/#dequeue-value
func (q *sizedQueue[T]) shift() T {
	head := q.items[0]
	var zero valueWithSize[T]
	q.items[0] = zero
	q.items = q.items[1:]

	q.totalSize -= head.size
	// Floating point rounding can leave a tiny negative remainder behind.
	if q.totalSize < 0 || len(q.items) == 0 {
		q.totalSize = 0
	}

	return head.value
}

func (q *sizedQueue[T]) len() int {
	return len(q.items)
}

// reset implements the [ResetQueue] abstract operation.
//
// [ResetQueue]: https://streams.spec.whatwg.org/#reset-queue
func (q *sizedQueue[T]) reset() {
	q.items = nil
	q.totalSize = 0
}
