package streams

import "github.com/liuxd6825/k6streams/promises"

// ForEach reads every chunk from the reader, in order, passing each to fn.
//
// The returned promise is fulfilled once the stream is done. If fn fails, the
// stream is canceled with that error and the promise rejects with it once the
// cancellation settled. If the stream errors, the promise rejects with the
// stored error.
func ForEach[T any](reader *DefaultReader[T], fn func(chunk T) error) *promises.Promise[struct{}] {
	p, resolve, reject := promises.New[struct{}](reader.vu)

	var next func()
	next = func() {
		reader.Read().Then(
			func(result ReadResult[T]) {
				if result.Done {
					resolve(struct{}{})
					return
				}

				if err := fn(result.Value); err != nil {
					reader.Cancel(err).Then(
						func(struct{}) { reject(err) },
						func(cancelErr error) {
							reader.vu.Logger().WithError(cancelErr).Debug("Canceling the stream after a consumer failure failed")
							reject(err)
						},
					)
					return
				}

				next()
			},
			reject,
		)
	}
	next()

	return p
}

// ReadAll locks the stream, and collects all of its chunks. The lock is
// released once the stream is done or errored.
func ReadAll[T any](stream *ReadableStream[T]) *promises.Promise[[]T] {
	reader, err := stream.GetReader()
	if err != nil {
		return promises.Rejected[[]T](stream.vu, err)
	}

	var chunks []T
	done := ForEach(reader, func(chunk T) error {
		chunks = append(chunks, chunk)
		return nil
	})

	return promises.Then(done,
		func(struct{}) ([]T, error) {
			return chunks, reader.Release()
		},
		func(err error) ([]T, error) {
			_ = reader.Release()
			return chunks, err
		},
	)
}
