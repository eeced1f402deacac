// Package tests contains integration tests of the k6streams command line,
// along with the helpers for running it against a mocked global state.
package tests

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/k6streams/internal/cmd/state"
	"github.com/liuxd6825/k6streams/internal/testutils"
)

// GlobalTestState wraps a GlobalState with in-memory outputs, and records
// the exit code and the signal subscriptions of a command.
type GlobalTestState struct {
	*state.GlobalState

	Cancel func()

	Stdout, Stderr *SafeBuffer
	LoggerHook     *testutils.LogHook

	// Signals receives the channels the command subscribed to signals with.
	Signals chan chan<- os.Signal

	ExpectedExitCode int
}

// NewGlobalTestState returns a GlobalTestState with an in-memory file
// system, working in /test/.
func NewGlobalTestState(tb testing.TB) *GlobalTestState {
	ctx, cancel := context.WithCancel(context.Background())
	tb.Cleanup(cancel)

	fs := afero.NewMemMapFs()
	cwd := "/test/"
	require.NoError(tb, fs.MkdirAll(cwd, 0o755))

	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetOutput(io.Discard)
	hook := testutils.NewLogHook()
	logger.AddHook(hook)

	ts := &GlobalTestState{
		Cancel:     cancel,
		Stdout:     &SafeBuffer{},
		Stderr:     &SafeBuffer{},
		LoggerHook: hook,
		Signals:    make(chan chan<- os.Signal, 1),
	}

	osExitCalled := false
	defaultOsExitHandle := func(exitCode int) {
		cancel()
		osExitCalled = true
		assert.Equal(tb, ts.ExpectedExitCode, exitCode)
	}

	tb.Cleanup(func() {
		if ts.ExpectedExitCode > 0 {
			// Ensure that, if we expected to receive an error, our `os.Exit()` mock
			// function was actually called.
			assert.Truef(tb, osExitCalled, "expected exit code %d, but the os.Exit() mock was not called", ts.ExpectedExitCode)
		}
	})

	outMutex := &sync.Mutex{}
	defaultFlags := state.GetDefaultGlobalOptions("/.config")
	ts.GlobalState = &state.GlobalState{
		Ctx:          ctx,
		FS:           fs,
		Getwd:        func() (string, error) { return cwd, nil },
		BinaryName:   "k6streams",
		CmdArgs:      []string{},
		Env:          map[string]string{},
		DefaultFlags: defaultFlags,
		Flags:        defaultFlags,
		OutMutex:     outMutex,
		Stdout:       &state.ConsoleWriter{Writer: ts.Stdout, Mutex: outMutex},
		Stderr:       &state.ConsoleWriter{Writer: ts.Stderr, Mutex: outMutex},
		Stdin:        &bytes.Buffer{},
		OSExit:       defaultOsExitHandle,
		SignalNotify: func(c chan<- os.Signal, _ ...os.Signal) {
			select {
			case ts.Signals <- c:
			default:
			}
		},
		SignalStop:     func(chan<- os.Signal) {},
		Logger:         logger,
		FallbackLogger: logger,
	}

	return ts
}

// SafeBuffer is a bytes.Buffer safe for concurrent use.
type SafeBuffer struct {
	mu sync.RWMutex
	b  bytes.Buffer
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.b.String()
}

func (b *SafeBuffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.b.Bytes()
}
