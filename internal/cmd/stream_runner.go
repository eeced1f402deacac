package cmd

import (
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/fatih/color"
	"golang.org/x/time/rate"

	"github.com/liuxd6825/k6streams/errext"
	"github.com/liuxd6825/k6streams/errext/exitcodes"
	"github.com/liuxd6825/k6streams/internal/cmd/state"
	"github.com/liuxd6825/k6streams/internal/eventloop"
	"github.com/liuxd6825/k6streams/promises"
	"github.com/liuxd6825/k6streams/streams"
	"github.com/liuxd6825/k6streams/streams/sources"
)

// streamRuntime is the execution context of the streams of a command: the
// event loop they run on, and the logger they report to.
type streamRuntime struct {
	*eventloop.EventLoop

	gs   *state.GlobalState
	conf Config
}

var _ streams.VU = &streamRuntime{}

func newStreamRuntime(gs *state.GlobalState, conf Config) *streamRuntime {
	return &streamRuntime{
		EventLoop: eventloop.New(gs.Logger),
		gs:        gs,
		conf:      conf,
	}
}

// strategy returns the queuing strategy set by the configuration.
func strategy[T any](conf Config) streams.QueuingStrategy[T] {
	return streams.CountQueuingStrategy[T](conf.HighWaterMark.Float64)
}

// throttle limits src to the configured rate, if any.
func throttle[T any](rt *streamRuntime, src streams.UnderlyingSource[T]) streams.UnderlyingSource[T] {
	if rt.conf.Rate.Float64 <= 0 {
		return src
	}

	limiter := rate.NewLimiter(rate.Limit(rt.conf.Rate.Float64), int(rt.conf.Burst.Int64))
	return sources.Throttle(rt.gs.Ctx, rt, src, limiter)
}

// openInput opens the file at path for reading, "-" being the standard input.
func openInput(gs *state.GlobalState, path string, d sources.Decompression) (io.Reader, error) {
	if path == "-" {
		return gs.Stdin, nil
	}

	r, err := sources.OpenFile(gs.FS, path, d)
	if err != nil {
		return nil, errext.WithExitCodeIfNone(fmt.Errorf("couldn't open the input: %w", err), exitcodes.CannotOpenInput)
	}
	return r, nil
}

// lineStream creates a throttled stream of the lines of the file at path.
func lineStream(rt *streamRuntime, path string) (*streams.ReadableStream[string], error) {
	d, err := sources.ParseDecompression(rt.conf.Decompress.String)
	if err != nil {
		return nil, err
	}
	r, err := openInput(rt.gs, path, d)
	if err != nil {
		return nil, err
	}

	return streams.NewReadableStream(rt, throttle(rt, sources.Lines(rt, r)), strategy[string](rt.conf))
}

// consumption starts consuming streams on the loop. It returns a promise
// settled once they are all done, and a function canceling them.
type consumption func(rt *streamRuntime) (done *promises.Promise[struct{}], cancel func(reason error), err error)

// run runs start on a new event loop until the consumption settles.
//
// A SIGINT or SIGTERM cancels the consumption, in which case an
// *errext.InterruptError is returned. A second signal exits the process.
func run(gs *state.GlobalState, conf Config, start consumption) error {
	rt := newStreamRuntime(gs, conf)

	sigC := make(chan os.Signal, 2)
	gs.SignalNotify(sigC, os.Interrupt, syscall.SIGTERM)
	defer gs.SignalStop(sigC)

	var result error
	err := rt.Start(func() error {
		done, cancel, err := start(rt)
		if err != nil {
			return err
		}

		signaled := rt.RegisterCallback()
		finished := make(chan struct{})
		done.Then(
			func(struct{}) { close(finished) },
			func(err error) {
				if result == nil {
					result = err
				}
				close(finished)
			},
		)

		go func() {
			select {
			case <-finished:
				signaled(func() error { return nil })
				return
			case sig := <-sigC:
				signaled(func() error {
					gs.Logger.WithField("signal", sig.String()).Debug("Stopping after receiving a signal")
					interrupt := &errext.InterruptError{Reason: errext.ReasonSignal}
					result = interrupt
					cancel(interrupt)
					return nil
				})
			}

			select {
			case <-finished:
			case sig := <-sigC:
				gs.Logger.WithField("signal", sig.String()).Error("Aborting without waiting for the streams")
				gs.OSExit(int(exitcodes.Interrupted))
			}
		}()

		return nil
	})
	if err != nil {
		return err
	}

	if result != nil && !errext.IsInterruptError(result) {
		result = errext.WithExitCodeIfNone(result, exitcodes.StreamErrored)
	}
	return result
}

// summary reports the amount of data a command went through.
type summary struct {
	Chunks int
	Bytes  int
}

func (s *summary) add(n int) {
	s.Chunks++
	s.Bytes += n
}

func (s summary) print(gs *state.GlobalState, label string) {
	if gs.Flags.Quiet {
		return
	}

	value := color.New(color.FgCyan)
	if gs.Flags.NoColor || !gs.Stderr.IsTTY {
		value.DisableColor()
	} else {
		value.EnableColor()
	}

	_, _ = fmt.Fprintf(gs.Stderr, "%s: %s chunks, %s bytes\n",
		label, value.Sprint(s.Chunks), value.Sprint(s.Bytes))
}
