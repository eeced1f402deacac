package sources

import (
	"sync"

	"github.com/mstoykov/k6-taskqueue-lib/taskqueue"

	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
)

// FromChannel returns a push source enqueuing every value received on ch,
// and closing the stream once ch is closed.
//
// Values are forwarded from a goroutine started along with the stream, and
// enqueued on the loop in the order they were received. The loop is kept
// alive until ch is closed or the stream is canceled; canceling only stops
// the forwarding, ch is left for its owner to close.
func FromChannel[T any](vu streams.VU, ch <-chan T) streams.UnderlyingSource[T] {
	stop := make(chan struct{})
	var stopOnce sync.Once

	return streams.UnderlyingSource[T]{
		Start: func(c *streams.Controller[T]) (*promises.Promise[any], error) {
			tq := taskqueue.New(vu.RegisterCallback)

			go func() {
				defer tq.Close()

				for {
					select {
					case <-stop:
						return
					case v, ok := <-ch:
						if !ok {
							tq.Queue(func() error {
								_ = c.Close()
								return nil
							})
							return
						}

						tq.Queue(func() error {
							if err := c.Enqueue(v); err != nil {
								vu.Logger().WithError(err).Debug("Dropping a value received on a channel")
							}
							return nil
						})
					}
				}
			}()

			return nil, nil
		},
		Cancel: func(any) (*promises.Promise[any], error) {
			stopOnce.Do(func() { close(stop) })
			return nil, nil
		},
	}
}
