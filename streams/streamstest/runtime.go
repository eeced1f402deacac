// Package streamstest provides a runtime to drive streams deterministically in tests.
package streamstest

import (
	"testing"

	"github.com/liuxd6825/k6streams/internal/eventloop"
	"github.com/liuxd6825/k6streams/internal/testutils"
)

// Runtime bundles an event loop with a recording logger. It satisfies the
// streams.VU interface.
type Runtime struct {
	*eventloop.EventLoop

	LogHook *testutils.LogHook
}

// NewRuntime creates a Runtime whose loop logs at debug level into its LogHook.
func NewRuntime(t testing.TB) *Runtime {
	t.Helper()

	logger, hook := testutils.NewLogger()
	return &Runtime{
		EventLoop: eventloop.New(logger.WithField("test", t.Name())),
		LogHook:   hook,
	}
}

// Run runs every step as a separate callback on the loop, in order. All the
// jobs queued by a step, promise reactions included, are run before the next
// step starts. Run returns once the loop is idle, or on the first step error.
func (r *Runtime) Run(steps ...func() error) error {
	if len(steps) == 0 {
		return nil
	}

	return r.Start(r.chain(steps))
}

func (r *Runtime) chain(steps []func() error) func() error {
	return func() error {
		if err := steps[0](); err != nil {
			return err
		}
		if len(steps) > 1 {
			r.RegisterCallback()(r.chain(steps[1:]))
		}
		return nil
	}
}
