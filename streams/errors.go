package streams

import "fmt"

var (
	// ErrStreamLocked is returned when acquiring a reader on, or canceling, a stream
	// that is already locked to a reader.
	ErrStreamLocked = newError(TypeError, "stream is locked")

	// ErrPendingReads is returned when releasing a reader that still has
	// outstanding read requests.
	ErrPendingReads = newError(TypeError, "reader has pending read requests")

	// ErrAlreadyClosed is returned when closing or enqueueing into a closed stream.
	ErrAlreadyClosed = newError(TypeError, "stream is already closed")

	// ErrCloseRequested is returned when closing or enqueueing into a stream that
	// was already requested to close.
	ErrCloseRequested = newError(TypeError, "stream is already requested to close")

	// ErrInvalidState is returned when erroring a stream that is no longer readable.
	ErrInvalidState = newError(TypeError, "stream is not readable")

	// ErrInvalidSize is the reason a stream errors with when a chunk's size is
	// not a finite, non-negative number.
	ErrInvalidSize = newError(RangeError, "chunk size is not a finite non-negative number")

	// ErrInvalidHighWaterMark is returned when constructing a stream with a
	// negative or NaN high water mark.
	ErrInvalidHighWaterMark = newError(RangeError, "high water mark is not a non-negative number")

	// ErrReaderReleased is the reason a released reader's closed promise rejects with.
	ErrReaderReleased = newError(TypeError, "reader released")

	// ErrNoStream is returned when using a reader that no longer owns a stream.
	ErrNoStream = newError(TypeError, "reader is not attached to a stream")
)

type errorKind uint8

const (
	// TypeError is raised when an operation is not permitted in the current state
	TypeError errorKind = iota + 1

	// RangeError is raised when a value is not within the expected range
	RangeError

	// AssertionError is raised when an internal invariant does not hold
	AssertionError
)

func (k errorKind) String() string {
	switch k {
	case TypeError:
		return "TypeError"
	case RangeError:
		return "RangeError"
	case AssertionError:
		return "AssertionError"
	default:
		return fmt.Sprintf("errorKind(%d)", uint8(k))
	}
}

type streamError struct {
	// Name contains the name of the error
	Name string `json:"name"`

	// Message contains the error message
	Message string `json:"message"`

	// kind contains the kind of error
	kind errorKind
}

// Ensure that the streamError type implements the Go `error` interface
var _ error = (*streamError)(nil)

func newError(k errorKind, message string) *streamError {
	return &streamError{
		Name:    k.String(),
		Message: message,
		kind:    k,
	}
}

func (e *streamError) Error() string {
	return e.Name + ": " + e.Message
}
