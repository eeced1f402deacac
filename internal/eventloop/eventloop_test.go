package eventloop

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestBasicEventLoop(t *testing.T) {
	t.Parallel()
	loop := New(nil)
	var ran int
	f := func() error { //nolint:unparam
		ran++
		return nil
	}
	require.NoError(t, loop.Start(f))
	require.Equal(t, 1, ran)
	require.NoError(t, loop.Start(f))
	require.Equal(t, 2, ran)
	require.Error(t, loop.Start(func() error {
		_ = f()
		loop.RegisterCallback()(f)
		return errors.New("something")
	}))
	require.Equal(t, 3, ran)
}

func TestEventLoopRegistered(t *testing.T) {
	t.Parallel()
	loop := New(nil)
	var ran int
	f := func() error {
		ran++
		r := loop.RegisterCallback()
		go func() {
			time.Sleep(100 * time.Millisecond)
			r(func() error {
				ran++
				return nil
			})
		}()
		return nil
	}
	start := time.Now()
	require.NoError(t, loop.Start(f))
	took := time.Since(start)
	require.Equal(t, 2, ran)
	require.LessOrEqual(t, 100*time.Millisecond, took)
}

func TestEventLoopWaitOnRegistered(t *testing.T) {
	t.Parallel()
	var ran int
	loop := New(nil)
	f := func() error {
		ran++
		r := loop.RegisterCallback()
		go func() {
			time.Sleep(100 * time.Millisecond)
			r(func() error {
				ran++
				return nil
			})
		}()
		return fmt.Errorf("expected")
	}
	require.Error(t, loop.Start(f))
	loop.WaitOnRegistered()
	require.Equal(t, 1, ran)
}

func TestEventLoopRegisterCallbackTwicePanics(t *testing.T) {
	t.Parallel()
	loop := New(nil)
	require.NoError(t, loop.Start(func() error {
		enqueue := loop.RegisterCallback()
		enqueue(func() error { return nil })
		require.Panics(t, func() { enqueue(func() error { return nil }) })
		return nil
	}))
}

func TestEventLoopJobsDrainBeforeNextCallback(t *testing.T) {
	t.Parallel()
	loop := New(nil)
	var order []string
	require.NoError(t, loop.Start(func() error {
		loop.RegisterCallback()(func() error {
			order = append(order, "second callback")
			return nil
		})
		loop.EnqueueJob(func() {
			order = append(order, "job 1")
			loop.EnqueueJob(func() {
				order = append(order, "job 3")
			})
		})
		loop.EnqueueJob(func() {
			order = append(order, "job 2")
		})
		order = append(order, "first callback")
		return nil
	}))
	require.Equal(t, []string{"first callback", "job 1", "job 2", "job 3", "second callback"}, order)
}

func TestEventLoopErrorKeepsRemainingQueue(t *testing.T) {
	t.Parallel()
	loop := New(nil)
	var ran []int
	boom := errors.New("boom")
	err := loop.Start(func() error {
		loop.RegisterCallback()(func() error {
			ran = append(ran, 1)
			return boom
		})
		loop.RegisterCallback()(func() error {
			ran = append(ran, 2)
			return nil
		})
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{1}, ran)

	require.NoError(t, loop.Start(func() error {
		ran = append(ran, 0)
		return nil
	}))
	require.Equal(t, []int{1, 0, 2}, ran, "the next Start runs the remaining callbacks after its own")
}
