package streams

import "github.com/liuxd6825/k6streams/promises"

// UnderlyingSource represents the underlying source of a ReadableStream, and defines how
// the underlying data is pulled from the source.
//
// Every hook is optional. A hook reports a synchronous failure by returning an error,
// and an asynchronous outcome by returning a promise; a nil promise with a nil error
// means the hook succeeded right away.
//
// [specification]: https://streams.spec.whatwg.org/#dictdef-underlyingsource
type UnderlyingSource[T any] struct {
	// Start is called immediately during the creation of a ReadableStream.
	//
	// Typically, this is used to adapt a push source by setting up relevant event listeners.
	// If the setup process is asynchronous, it can return a promise to signal success or
	// failure; a rejected promise will error the stream.
	Start UnderlyingSourceStartCallback[T]

	// Pull is called whenever the stream's internal queue of chunks becomes not full,
	// i.e. whenever the queue's desired size becomes positive, or a read is waiting.
	//
	// It will not be called until Start successfully completes, and never while a
	// previous call's promise is still pending.
	Pull UnderlyingSourcePullCallback[T]

	// Cancel is called when the stream's or reader's Cancel method is called.
	//
	// It takes as its argument the same value as was passed to those methods by the consumer,
	// and is generally used to release access to the underlying resource. Its outcome is
	// communicated via the promise returned by the Cancel method that was called.
	Cancel UnderlyingSourceCancelCallback
}

// UnderlyingSourceStartCallback is a function that is called immediately during the creation of a ReadableStream.
type UnderlyingSourceStartCallback[T any] func(controller *Controller[T]) (*promises.Promise[any], error)

// UnderlyingSourcePullCallback is a function that is called whenever the stream's internal queue of chunks
// becomes not full, i.e. whenever the queue's desired size becomes positive.
type UnderlyingSourcePullCallback[T any] func(controller *Controller[T]) (*promises.Promise[any], error)

// UnderlyingSourceCancelCallback is a function that is called when the stream's or reader's `cancel()` method is
// called.
type UnderlyingSourceCancelCallback func(reason any) (*promises.Promise[any], error)
