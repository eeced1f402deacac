package streams

import (
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/k6streams/promises"
)

// Controller is the producer-facing view of a ReadableStream, allowing an
// underlying source to control the stream's state and internal queue.
//
// A stream creates its controller once, and hands it to the source's hooks.
//
// [ReadableStreamDefaultController]: https://streams.spec.whatwg.org/#rs-default-controller-class
type Controller[T any] struct {
	stream *ReadableStream[T]
}

// DesiredSize returns the desired size to fill the stream's internal queue.
//
// It can be negative, if the queue is over-full. It is null once the stream
// is no longer readable.
func (controller *Controller[T]) DesiredSize() null.Float {
	return controller.stream.desiredSize()
}

// Enqueue enqueues the given chunk in the associated stream.
//
// The chunk goes straight to the oldest pending read request if there is one.
// If computing the size of the chunk fails, the stream is errored and the
// failure is returned.
func (controller *Controller[T]) Enqueue(chunk T) error {
	stream := controller.stream
	if err := stream.canCloseOrEnqueue(); err != nil {
		return err
	}

	if stream.isLocked() && stream.getNumReadRequests() > 0 {
		stream.fulfillReadRequest(chunk, false)
	} else {
		size, err := stream.size(chunk)
		if err != nil {
			stream.error(err)
			return err
		}

		if err := stream.queue.push(chunk, size); err != nil {
			stream.error(err)
			return err
		}
	}

	stream.callPullIfNeeded()
	return nil
}

// Close closes the associated stream.
//
// Consumers will still be able to read any previously-enqueued chunks from the
// stream, and the stream only becomes closed once they are all read.
func (controller *Controller[T]) Close() error {
	stream := controller.stream
	if err := stream.canCloseOrEnqueue(); err != nil {
		return err
	}

	stream.closeRequested = true
	if stream.queue.len() == 0 {
		stream.close()
	}

	return nil
}

// Error errors the associated stream, so that any further interaction with it
// fails with the given error.
func (controller *Controller[T]) Error(e error) error {
	stream := controller.stream
	if stream.state != ReadableStreamStateReadable {
		return ErrInvalidState
	}

	stream.error(e)
	return nil
}

// canCloseOrEnqueue implements the [ReadableStreamDefaultControllerCanCloseOrEnqueue]
// algorithm, returning the error explaining why it cannot.
//
// [ReadableStreamDefaultControllerCanCloseOrEnqueue]: https://streams.spec.whatwg.org/#readable-stream-default-controller-can-close-or-enqueue
func (stream *ReadableStream[T]) canCloseOrEnqueue() error {
	switch {
	case stream.state == ReadableStreamStateErrored:
		return stream.storedError
	case stream.state == ReadableStreamStateClosed:
		return ErrAlreadyClosed
	case stream.closeRequested:
		return ErrCloseRequested
	default:
		return nil
	}
}

// pullState tracks whether the source's pull hook is running, and whether
// another pull was requested in the meantime.
type pullState uint8

const (
	pullIdle pullState = iota
	pullPulling
	pullPullingAgain
)

// shouldCallPull implements the [ReadableStreamDefaultControllerShouldCallPull] algorithm.
//
// [ReadableStreamDefaultControllerShouldCallPull]: https://streams.spec.whatwg.org/#readable-stream-default-controller-should-call-pull
func (stream *ReadableStream[T]) shouldCallPull() bool {
	if stream.canCloseOrEnqueue() != nil {
		return false
	}

	if !stream.started {
		return false
	}

	if stream.isLocked() && stream.getNumReadRequests() > 0 {
		return true
	}

	return stream.highWaterMark-stream.queue.totalSize > 0
}

// callPullIfNeeded implements the [ReadableStreamDefaultControllerCallPullIfNeeded] algorithm.
//
// At most one pull is in flight at any time: requests made while one is
// running are coalesced into a single follow-up pull.
//
// [ReadableStreamDefaultControllerCallPullIfNeeded]: https://streams.spec.whatwg.org/#readable-stream-default-controller-call-pull-if-needed
func (stream *ReadableStream[T]) callPullIfNeeded() {
	if !stream.shouldCallPull() {
		return
	}

	if stream.pull != pullIdle {
		stream.pull = pullPullingAgain
		return
	}

	stream.pull = pullPulling

	var pullResult *promises.Promise[any]
	if stream.source.Pull != nil {
		p, err := stream.source.Pull(stream.controller)
		if err != nil {
			p = promises.Rejected[any](stream.vu, err)
		}
		pullResult = p
	}

	settled(stream.vu, pullResult).Then(
		func(any) {
			again := stream.pull == pullPullingAgain
			stream.pull = pullIdle
			if again {
				stream.callPullIfNeeded()
			}
		},
		func(err error) {
			stream.pull = pullIdle
			stream.logger.WithError(err).Debug("Underlying source pull failed")
			stream.errorIfReadable(err)
		},
	)
}
