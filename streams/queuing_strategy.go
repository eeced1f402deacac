package streams

import (
	"math"

	"gopkg.in/guregu/null.v3"
)

// SizeAlgorithm computes the size of a chunk, used to determine backpressure.
type SizeAlgorithm[T any] func(chunk T) (float64, error)

// QueuingStrategy represents a queuing strategy as defined by the [Streams standard].
//
// [Streams standard]: https://streams.spec.whatwg.org/#qs
type QueuingStrategy[T any] struct {
	// HighWaterMark is the total size of chunks that can be contained in the internal
	// queue before backpressure is applied. It defaults to 1 when not set.
	HighWaterMark null.Float

	// Size (optional) is a function taking a chunk and returning its size.
	//
	// The result is used to determine backpressure. This function has to be idempotent and
	// not cause side effects. When nil, every chunk has a size of 1.
	Size SizeAlgorithm[T]
}

// extractHighWaterMark implements the [ExtractHighWaterMark] algorithm.
//
// [ExtractHighWaterMark]: https://streams.spec.whatwg.org/#validate-and-normalize-high-water-mark
func (qs QueuingStrategy[T]) extractHighWaterMark(defaultHWM float64) (float64, error) {
	if !qs.HighWaterMark.Valid {
		return defaultHWM, nil
	}

	hwm := qs.HighWaterMark.Float64
	if math.IsNaN(hwm) || hwm < 0 {
		return 0, ErrInvalidHighWaterMark
	}

	return hwm, nil
}

// extractSizeAlgorithm implements the [ExtractSizeAlgorithm] algorithm.
//
// [ExtractSizeAlgorithm]: https://streams.spec.whatwg.org/#make-size-algorithm-from-size-function
func (qs QueuingStrategy[T]) extractSizeAlgorithm() SizeAlgorithm[T] {
	if qs.Size == nil {
		return func(T) (float64, error) { return 1, nil }
	}

	return qs.Size
}

// CountQueuingStrategy counts the number of chunks that have been accumulated
// so far, waiting until this number reaches the given high-water mark.
//
// See https://streams.spec.whatwg.org/#count-queuing-strategy.
func CountQueuingStrategy[T any](highWaterMark float64) QueuingStrategy[T] {
	return QueuingStrategy[T]{
		HighWaterMark: null.FloatFrom(highWaterMark),
		Size:          func(T) (float64, error) { return 1, nil },
	}
}

// ByteLengthQueuingStrategy weighs each chunk by its length in bytes.
//
// See https://streams.spec.whatwg.org/#blqs-class.
func ByteLengthQueuingStrategy[T ~[]byte | ~string](highWaterMark float64) QueuingStrategy[T] {
	return QueuingStrategy[T]{
		HighWaterMark: null.FloatFrom(highWaterMark),
		Size:          func(chunk T) (float64, error) { return float64(len(chunk)), nil },
	}
}
