package streams

import "github.com/liuxd6825/k6streams/promises"

// ReadResult is the result of a read operation.
//
// Done is true, and Value the zero T, once the stream has no more chunks.
type ReadResult[T any] struct {
	Value T
	Done  bool
}

// readRequest is a struct containing three algorithms to perform in reaction to filling the readable stream's
// internal queue or changing its state
type readRequest[T any] struct {
	// chunkSteps is an algorithm taking a chunk, called when a chunk is available for reading.
	chunkSteps func(chunk T)

	// closeSteps is an algorithm taking no arguments, called when no chunks are available because
	// the stream is closed.
	closeSteps func()

	// errorSteps is an algorithm taking an error, called when no chunks are available because
	// the stream is errored.
	errorSteps func(e error)
}

// DefaultReader represents a default reader designed to be vended by a [ReadableStream].
//
// While it owns a stream, it is the only consumer of that stream's chunks.
type DefaultReader[T any] struct {
	// stream is the [ReadableStream] this reader is locking, or nil once released.
	stream *ReadableStream[T]

	// readRequests holds a list of read requests, used when a consumer requests
	// chunks sooner than they are available.
	readRequests []readRequest[T]

	closed        *promises.Promise[struct{}]
	resolveClosed func(struct{})
	rejectClosed  func(error)

	vu VU
}

// Read returns a promise providing access to the next chunk in the stream's internal queue.
func (reader *DefaultReader[T]) Read() *promises.Promise[ReadResult[T]] {
	if reader.stream == nil {
		return promises.Rejected[ReadResult[T]](reader.vu, ErrNoStream)
	}

	promise, resolve, reject := promises.New[ReadResult[T]](reader.vu)

	reader.read(readRequest[T]{
		chunkSteps: func(chunk T) {
			resolve(ReadResult[T]{Value: chunk})
		},
		closeSteps: func() {
			resolve(ReadResult[T]{Done: true})
		},
		errorSteps: reject,
	})

	return promise
}

// Cancel returns a promise that resolves when the stream is canceled.
//
// Calling this method signals a loss of interest in the stream by a consumer. The
// supplied reason will be given to the underlying source, which may or may not use it.
func (reader *DefaultReader[T]) Cancel(reason any) *promises.Promise[struct{}] {
	if reader.stream == nil {
		return promises.Rejected[struct{}](reader.vu, ErrNoStream)
	}

	return reader.stream.cancel(reason)
}

// Closed returns a promise fulfilled when the stream closes, and rejected
// when it errors or the reader's lock is released.
func (reader *DefaultReader[T]) Closed() *promises.Promise[struct{}] {
	return reader.closed
}

// Release releases the reader's lock on the stream, leaving the stream itself
// untouched. It fails while read requests are pending.
//
// Releasing an already released reader is a no-op.
func (reader *DefaultReader[T]) Release() error {
	stream := reader.stream
	if stream == nil {
		return nil
	}

	if len(reader.readRequests) > 0 {
		return ErrPendingReads
	}

	if stream.state == ReadableStreamStateReadable {
		reader.rejectClosed(ErrReaderReleased)
	} else {
		reader.closed, reader.resolveClosed, reader.rejectClosed = promises.New[struct{}](reader.vu)
		reader.rejectClosed(ErrReaderReleased)
	}

	stream.reader = nil
	reader.stream = nil

	return nil
}

// setup implements the [SetUpReadableStreamDefaultReader] algorithm.
//
// [SetUpReadableStreamDefaultReader]: https://streams.spec.whatwg.org/#set-up-readable-stream-default-reader
func (reader *DefaultReader[T]) setup(stream *ReadableStream[T]) error {
	if stream.isLocked() {
		return ErrStreamLocked
	}

	reader.stream = stream
	stream.reader = reader

	reader.closed, reader.resolveClosed, reader.rejectClosed = promises.New[struct{}](reader.vu)
	switch stream.state {
	case ReadableStreamStateClosed:
		reader.resolveClosed(struct{}{})
	case ReadableStreamStateErrored:
		reader.rejectClosed(stream.storedError)
	}

	return nil
}

// errorReadRequests implements the [ReadableStreamDefaultReaderErrorReadRequests] algorithm.
//
// [ReadableStreamDefaultReaderErrorReadRequests]: https://streams.spec.whatwg.org/#abstract-opdef-readablestreamdefaultreadererrorreadrequests
func (reader *DefaultReader[T]) errorReadRequests(e error) {
	readRequests := reader.readRequests
	reader.readRequests = nil

	for _, request := range readRequests {
		request.errorSteps(e)
	}
}

// read implements the [ReadableStreamDefaultReaderRead] algorithm.
//
// [ReadableStreamDefaultReaderRead]: https://streams.spec.whatwg.org/#readable-stream-default-reader-read
func (reader *DefaultReader[T]) read(request readRequest[T]) {
	stream := reader.stream
	stream.disturbed = true

	switch stream.state {
	case ReadableStreamStateClosed:
		request.closeSteps()
	case ReadableStreamStateErrored:
		request.errorSteps(stream.storedError)
	default:
		stream.pullSteps(request)
	}
}
