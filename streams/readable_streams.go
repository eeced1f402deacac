// Package streams implements a backpressure-aware readable stream engine
// modeled after the WHATWG [Streams Standard].
//
// A ReadableStream buffers chunks supplied by an underlying source through its
// Controller, and hands them out to the single DefaultReader currently locking it.
// Every stream is bound to a single-threaded event loop: all of its methods must
// be called from the loop goroutine, and every deferred result is a promise
// settled on that loop.
//
// [Streams Standard]: https://streams.spec.whatwg.org/
package streams

import (
	"github.com/sirupsen/logrus"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/k6streams/promises"
)

// VU is the execution context a stream is bound to: the event loop settling
// its promises, and the logger it reports to.
type VU interface {
	promises.Loop
	Logger() logrus.FieldLogger
}

// ReadableStreamState represents the current state of a ReadableStream
type ReadableStreamState string

const (
	// ReadableStreamStateReadable indicates that the stream is readable, and that more data may be read from the stream.
	ReadableStreamStateReadable ReadableStreamState = "readable"

	// ReadableStreamStateClosed indicates that the stream is closed and cannot be read from.
	ReadableStreamStateClosed ReadableStreamState = "closed"

	// ReadableStreamStateErrored indicates that the stream has been aborted (errored).
	ReadableStreamStateErrored ReadableStreamState = "errored"
)

// ReadableStream is a concrete instance of the general [readable stream] concept.
//
// It is adaptable to any chunk type, and maintains an internal queue to keep track of
// data supplied by the underlying source but not yet read by any consumer.
//
// [readable stream]: https://streams.spec.whatwg.org/#rs-class
type ReadableStream[T any] struct {
	// state holds the current state of the stream
	state ReadableStreamState

	// storedError holds the error that caused the stream to be errored
	storedError error

	// disturbed is true when the stream has been read from or canceled
	disturbed bool

	queue         sizedQueue[T]
	highWaterMark float64
	size          SizeAlgorithm[T]

	started        bool
	closeRequested bool
	pull           pullState

	// reader holds the current reader of the stream if the stream is locked to a reader
	// or nil otherwise.
	reader *DefaultReader[T]

	// controller is created along with the stream, and never replaced.
	controller *Controller[T]

	source UnderlyingSource[T]

	vu     VU
	logger logrus.FieldLogger
}

// NewReadableStream creates a readable stream fed by the given underlying source.
//
// The source's Start hook is invoked before NewReadableStream returns. An error is
// only returned for an invalid queuing strategy; failures of the source itself
// error the stream instead.
func NewReadableStream[T any](
	vu VU, source UnderlyingSource[T], strategy QueuingStrategy[T],
) (*ReadableStream[T], error) {
	highWaterMark, err := strategy.extractHighWaterMark(1)
	if err != nil {
		return nil, err
	}

	stream := &ReadableStream[T]{
		state:         ReadableStreamStateReadable,
		highWaterMark: highWaterMark,
		size:          strategy.extractSizeAlgorithm(),
		source:        source,
		vu:            vu,
		logger:        vu.Logger(),
	}
	stream.controller = &Controller[T]{stream: stream}

	stream.start()

	return stream, nil
}

// State returns the current state of the stream.
func (stream *ReadableStream[T]) State() ReadableStreamState {
	return stream.state
}

// Locked reports whether the stream is locked to a reader.
func (stream *ReadableStream[T]) Locked() bool {
	return stream.isLocked()
}

// Disturbed reports whether the stream has ever been read from or canceled.
func (stream *ReadableStream[T]) Disturbed() bool {
	return stream.disturbed
}

// Cancel cancels an unlocked stream, discarding any buffered chunk. A locked
// stream must be canceled through its reader.
func (stream *ReadableStream[T]) Cancel(reason any) *promises.Promise[struct{}] {
	if stream.isLocked() {
		return promises.Rejected[struct{}](stream.vu, ErrStreamLocked)
	}

	return stream.cancel(reason)
}

// GetReader implements the [getReader] operation, acquiring an exclusive
// default reader on the stream.
//
// [getReader]: https://streams.spec.whatwg.org/#rs-get-reader
func (stream *ReadableStream[T]) GetReader() (*DefaultReader[T], error) {
	reader := &DefaultReader[T]{vu: stream.vu}
	if err := reader.setup(stream); err != nil {
		return nil, err
	}

	return reader, nil
}

// isLocked implements the Streams standard's [IsReadableStreamLocked()] abstract operation.
//
// [IsReadableStreamLocked()]: https://streams.spec.whatwg.org/#is-readable-stream-locked
func (stream *ReadableStream[T]) isLocked() bool {
	return stream.reader != nil
}

// start runs the source's start hook and arms the first pull once it settles.
func (stream *ReadableStream[T]) start() {
	var startResult *promises.Promise[any]
	if stream.source.Start != nil {
		p, err := stream.source.Start(stream.controller)
		if err != nil {
			stream.errorIfReadable(err)
			return
		}
		startResult = p
	}

	settled(stream.vu, startResult).Then(
		func(any) {
			stream.started = true
			stream.callPullIfNeeded()
		},
		func(err error) {
			stream.errorIfReadable(err)
		},
	)
}

// cancel implements the Streams standard's [ReadableStreamCancel()] abstract operation.
//
// [ReadableStreamCancel()]: https://streams.spec.whatwg.org/#readable-stream-cancel
func (stream *ReadableStream[T]) cancel(reason any) *promises.Promise[struct{}] {
	stream.disturbed = true

	switch stream.state {
	case ReadableStreamStateClosed:
		return promises.Resolved(stream.vu, struct{}{})
	case ReadableStreamStateErrored:
		return promises.Rejected[struct{}](stream.vu, stream.storedError)
	}

	stream.queue.reset()
	stream.close()
	stream.logger.WithField("reason", reason).Debug("Readable stream canceled")

	var cancelResult *promises.Promise[any]
	if stream.source.Cancel != nil {
		p, err := stream.source.Cancel(reason)
		if err != nil {
			p = promises.Rejected[any](stream.vu, err)
		}
		cancelResult = p
	}

	return promises.Then(settled(stream.vu, cancelResult), func(any) (struct{}, error) {
		return struct{}{}, nil
	}, nil)
}

// close implements the Streams standard's [ReadableStreamClose()] abstract operation.
//
// [ReadableStreamClose()]: https://streams.spec.whatwg.org/#readable-stream-close
func (stream *ReadableStream[T]) close() {
	if stream.state != ReadableStreamStateReadable {
		panic(newError(AssertionError, "cannot close a stream that is not readable"))
	}

	stream.state = ReadableStreamStateClosed

	reader := stream.reader
	if reader == nil {
		return
	}

	reader.resolveClosed(struct{}{})

	readRequests := reader.readRequests
	reader.readRequests = nil
	for _, readRequest := range readRequests {
		readRequest.closeSteps()
	}
}

// error implements the Streams standard's [ReadableStreamError] abstract operation,
// along with the queue reset of [ReadableStreamDefaultControllerError].
//
// [ReadableStreamError]: https://streams.spec.whatwg.org/#readable-stream-error
// [ReadableStreamDefaultControllerError]: https://streams.spec.whatwg.org/#readable-stream-default-controller-error
func (stream *ReadableStream[T]) error(e error) {
	if stream.state != ReadableStreamStateReadable {
		panic(newError(AssertionError, "cannot error a stream that is not readable"))
	}

	stream.queue.reset()
	stream.state = ReadableStreamStateErrored
	stream.storedError = e
	stream.logger.WithError(e).Debug("Readable stream errored")

	reader := stream.reader
	if reader == nil {
		return
	}

	reader.rejectClosed(e)
	reader.errorReadRequests(e)
}

// errorIfReadable errors the stream unless it already reached a terminal state.
func (stream *ReadableStream[T]) errorIfReadable(e error) {
	if stream.state != ReadableStreamStateReadable {
		return
	}

	stream.error(e)
}

// addReadRequest implements the Streams standard's [ReadableStreamAddReadRequest()] abstract operation.
//
// [ReadableStreamAddReadRequest()]: https://streams.spec.whatwg.org/#readable-stream-add-read-request
func (stream *ReadableStream[T]) addReadRequest(readRequest readRequest[T]) {
	stream.reader.readRequests = append(stream.reader.readRequests, readRequest)
}

// fulfillReadRequest implements the [ReadableStreamFulfillReadRequest()] algorithm.
//
// [ReadableStreamFulfillReadRequest()]: https://streams.spec.whatwg.org/#readable-stream-fulfill-read-request
func (stream *ReadableStream[T]) fulfillReadRequest(chunk T, done bool) {
	reader := stream.reader
	if reader == nil || len(reader.readRequests) == 0 {
		panic(newError(AssertionError, "stream has no pending read request"))
	}

	request := reader.readRequests[0]
	reader.readRequests[0] = readRequest[T]{}
	reader.readRequests = reader.readRequests[1:]

	if done {
		request.closeSteps()
	} else {
		request.chunkSteps(chunk)
	}
}

// getNumReadRequests implements the [ReadableStreamGetNumReadRequests()] algorithm,
// returning 0 for an unlocked stream.
//
// [ReadableStreamGetNumReadRequests()]: https://streams.spec.whatwg.org/#readable-stream-get-num-read-requests
func (stream *ReadableStream[T]) getNumReadRequests() int {
	if stream.reader == nil {
		return 0
	}

	return len(stream.reader.readRequests)
}

// desiredSize implements the [ReadableStreamDefaultControllerGetDesiredSize] algorithm.
//
// [ReadableStreamDefaultControllerGetDesiredSize]: https://streams.spec.whatwg.org/#readable-stream-default-controller-get-desired-size
func (stream *ReadableStream[T]) desiredSize() null.Float {
	if stream.state != ReadableStreamStateReadable {
		return null.Float{}
	}

	return null.FloatFrom(stream.highWaterMark - stream.queue.totalSize)
}

// pullSteps implements the [ReadableStreamDefaultController] [[PullSteps]] internal method.
//
// [ReadableStreamDefaultController]: https://streams.spec.whatwg.org/#rs-default-controller-private-pull
func (stream *ReadableStream[T]) pullSteps(readRequest readRequest[T]) {
	if stream.queue.len() > 0 {
		chunk := stream.queue.shift()

		if stream.closeRequested && stream.queue.len() == 0 {
			stream.close()
		} else {
			stream.callPullIfNeeded()
		}

		readRequest.chunkSteps(chunk)
		return
	}

	stream.addReadRequest(readRequest)
	stream.callPullIfNeeded()
}

// settled turns an optional hook result into a promise, a nil result being an
// immediate success.
func settled(sched promises.Scheduler, p *promises.Promise[any]) *promises.Promise[any] {
	if p == nil {
		return promises.Resolved[any](sched, nil)
	}
	return p
}
