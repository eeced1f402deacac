package streams

import (
	"github.com/sirupsen/logrus"

	"github.com/liuxd6825/k6streams/promises"
)

// CancelReasons is the reason a teed stream is canceled with, once both of
// its branches have been canceled.
type CancelReasons [2]any

// Tee implements the [tee] operation, forking the stream into two branches
// that share a single reader on it.
//
// Both branches receive the very same chunk values. The stream itself stays
// locked to the shared reader, and is only canceled once both branches are.
// A branch canceled alone has its cancellation settle once the stream is
// closed or errored.
//
// [tee]: https://streams.spec.whatwg.org/#rs-tee
func (stream *ReadableStream[T]) Tee() (*ReadableStream[T], *ReadableStream[T], error) {
	reader, err := stream.GetReader()
	if err != nil {
		return nil, nil, err
	}

	t := &tee[T]{reader: reader, logger: stream.logger}
	t.cancelPromise, t.resolveCancel, t.rejectCancel = promises.New[any](stream.vu)

	t.branch1, err = NewReadableStream(stream.vu, UnderlyingSource[T]{
		Pull:   t.pull,
		Cancel: t.cancel1,
	}, QueuingStrategy[T]{})
	if err != nil {
		return nil, nil, err
	}

	t.branch2, err = NewReadableStream(stream.vu, UnderlyingSource[T]{
		Pull:   t.pull,
		Cancel: t.cancel2,
	}, QueuingStrategy[T]{})
	if err != nil {
		return nil, nil, err
	}

	reader.Closed().Then(nil, func(err error) {
		if t.closedOrErrored {
			return
		}
		t.branch1.errorIfReadable(err)
		t.branch2.errorIfReadable(err)
		t.closedOrErrored = true
		t.settleCancel()
	})

	return t.branch1, t.branch2, nil
}

// tee holds the state shared by the two branches of a teed stream.
type tee[T any] struct {
	reader *DefaultReader[T]

	branch1, branch2 *ReadableStream[T]

	closedOrErrored bool
	reading         bool
	readAgain       bool

	canceled1, canceled2 bool
	reason1, reason2     any

	cancelPromise *promises.Promise[any]
	resolveCancel func(any)
	rejectCancel  func(error)

	logger logrus.FieldLogger
}

// pull reads a single chunk from the shared reader, and forwards it to every
// branch that was not canceled. At most one read is in flight at a time.
func (t *tee[T]) pull(*Controller[T]) (*promises.Promise[any], error) {
	if t.reading {
		t.readAgain = true
		return nil, nil
	}
	if t.closedOrErrored {
		return nil, nil
	}

	t.reading = true

	return promises.Then(t.reader.Read(),
		func(result ReadResult[T]) (any, error) {
			if result.Done {
				t.reading = false
				if !t.closedOrErrored {
					closeBranch(t.branch1)
					closeBranch(t.branch2)
					t.closedOrErrored = true
					t.settleCancel()
				}
				return nil, nil
			}

			t.readAgain = false
			if !t.canceled1 {
				_ = t.branch1.controller.Enqueue(result.Value)
			}
			if !t.canceled2 {
				_ = t.branch2.controller.Enqueue(result.Value)
			}

			t.reading = false
			if t.readAgain {
				t.readAgain = false
				_, _ = t.pull(nil)
			}

			return nil, nil
		},
		// Rejections reach the branches through the reader's closed promise.
		func(error) (any, error) {
			t.reading = false
			return nil, nil
		},
	), nil
}

func (t *tee[T]) cancel1(reason any) (*promises.Promise[any], error) {
	t.canceled1, t.reason1 = true, reason
	if t.canceled2 {
		t.cancelUpstream()
	}

	return t.cancelPromise, nil
}

func (t *tee[T]) cancel2(reason any) (*promises.Promise[any], error) {
	t.canceled2, t.reason2 = true, reason
	if t.canceled1 {
		t.cancelUpstream()
	}

	return t.cancelPromise, nil
}

func (t *tee[T]) cancelUpstream() {
	t.logger.Debug("Both tee branches canceled, canceling the teed stream")

	t.reader.Cancel(CancelReasons{t.reason1, t.reason2}).Then(
		func(struct{}) { t.resolveCancel(nil) },
		t.rejectCancel,
	)
}

// settleCancel fulfills the cancel promise of a lone canceled branch once the
// teed stream is done, since the upstream is then never canceled.
func (t *tee[T]) settleCancel() {
	if !t.canceled1 || !t.canceled2 {
		t.resolveCancel(nil)
	}
}

// closeBranch closes a branch unless it was already closed, errored, or
// requested to close.
func closeBranch[T any](branch *ReadableStream[T]) {
	if branch.canCloseOrEnqueue() != nil {
		return
	}
	_ = branch.controller.Close()
}
