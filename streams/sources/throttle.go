package sources

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
)

// Throttle limits the rate at which src is pulled: every pull waits for a
// token of limiter, off the loop goroutine, before being delegated to src.
//
// The wait is abandoned, and the stream errored, when ctx is done.
func Throttle[T any](
	ctx context.Context, vu streams.VU, src streams.UnderlyingSource[T], limiter *rate.Limiter,
) streams.UnderlyingSource[T] {
	if src.Pull == nil {
		return src
	}

	throttled := src
	throttled.Pull = func(c *streams.Controller[T]) (*promises.Promise[any], error) {
		waited := promises.Async(vu, func() (struct{}, error) {
			return struct{}{}, limiter.Wait(ctx)
		})

		p, resolve, reject := promises.New[any](vu)
		waited.Then(
			func(struct{}) {
				pulled, err := src.Pull(c)
				switch {
				case err != nil:
					reject(err)
				case pulled == nil:
					resolve(nil)
				default:
					pulled.Then(resolve, reject)
				}
			},
			reject,
		)

		return p, nil
	}

	return throttled
}
