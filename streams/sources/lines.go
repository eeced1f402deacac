package sources

import (
	"bufio"
	"errors"
	"io"

	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
)

// MaxLineSize is the longest line Lines and File accept.
const MaxLineSize = 1024 * 1024

// Lines returns a source enqueuing the lines of r, without their line
// terminator. Every pull scans a single line off the loop goroutine.
//
// Reaching the end of r closes the stream, and a read failure errors it. If r
// is an io.Closer, it is closed once the stream is done with it.
func Lines(vu streams.VU, r io.Reader) streams.UnderlyingSource[string] {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	return scanSource(vu, r, func() (string, bool, error) {
		if scanner.Scan() {
			return scanner.Text(), true, nil
		}
		return "", false, scanner.Err()
	})
}

// scanSource builds a pull source out of a blocking scan function, which
// reports false once there is nothing left to read.
func scanSource[T any](vu streams.VU, r io.Reader, scan func() (T, bool, error)) streams.UnderlyingSource[T] {
	type scanned struct {
		value T
		ok    bool
	}

	var done bool
	release := func() error {
		if done {
			return nil
		}
		done = true

		if closer, ok := r.(io.Closer); ok {
			return closer.Close()
		}
		return nil
	}

	return streams.UnderlyingSource[T]{
		Pull: func(c *streams.Controller[T]) (*promises.Promise[any], error) {
			if done {
				return nil, nil
			}

			p := promises.Async(vu, func() (scanned, error) {
				v, ok, err := scan()
				return scanned{value: v, ok: ok}, err
			})

			return promises.Then(p,
				func(s scanned) (any, error) {
					if done {
						return nil, nil
					}
					if !s.ok {
						return nil, errors.Join(release(), c.Close())
					}
					return nil, c.Enqueue(s.value)
				},
				func(err error) (any, error) {
					_ = release()
					return nil, err
				},
			), nil
		},
		Cancel: func(reason any) (*promises.Promise[any], error) {
			vu.Logger().WithField("reason", reason).Debug("Line source canceled")
			return nil, release()
		},
	}
}
