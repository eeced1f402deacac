package errext

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/k6streams/errext/exitcodes"
)

func assertHasHint(t *testing.T, err error, hint string) {
	t.Helper()
	var typederr HasHint
	require.ErrorAs(t, err, &typederr)
	assert.Equal(t, typederr.Hint(), hint)
	assert.Contains(t, err.Error(), typederr.Error())
}

func assertHasExitCode(t *testing.T, err error, exitcode exitcodes.ExitCode) {
	t.Helper()
	var typederr HasExitCode
	require.ErrorAs(t, err, &typederr)
	assert.Equal(t, typederr.ExitCode(), exitcode)
	assert.Equal(t, exitcode, ExitCodeOf(err, exitcodes.GenericError))
}

func TestErrextHelpers(t *testing.T) {
	t.Parallel()

	const testExitCode exitcodes.ExitCode = 13
	assert.Nil(t, WithHint(nil, "test hint"))
	assert.Nil(t, WithExitCodeIfNone(nil, testExitCode))

	errBase := errors.New("base error")
	errBaseWithHint := WithHint(errBase, "test hint")
	assertHasHint(t, errBaseWithHint, "test hint")
	errBaseWithTwoHints := WithHint(errBaseWithHint, "better hint")
	assertHasHint(t, errBaseWithTwoHints, "better hint (test hint)")

	errWrapperWithHints := fmt.Errorf("wrapper error: %w", errBaseWithTwoHints)
	assertHasHint(t, errWrapperWithHints, "better hint (test hint)")

	errWithExitCode := WithExitCodeIfNone(errWrapperWithHints, testExitCode)
	assertHasHint(t, errWithExitCode, "better hint (test hint)")
	assertHasExitCode(t, errWithExitCode, testExitCode)

	errWithExitCodeAgain := WithExitCodeIfNone(errWithExitCode, exitcodes.GoPanic)
	assertHasExitCode(t, errWithExitCodeAgain, testExitCode)

	assert.Equal(t, exitcodes.GenericError, ExitCodeOf(errBase, exitcodes.GenericError))
}

func TestInterruptError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("stream canceled: %w", &InterruptError{Reason: ReasonSignal})
	assert.True(t, IsInterruptError(err))
	assert.False(t, IsInterruptError(errors.New("nope")))
	assert.False(t, IsInterruptError(nil))
	assertHasExitCode(t, err, exitcodes.Interrupted)
}

func TestFormat(t *testing.T) {
	t.Parallel()

	msg, fields := Format(nil)
	assert.Empty(t, msg)
	assert.Nil(t, fields)

	err := WithExitCodeIfNone(WithHint(errors.New("bad config"), "check the file"), exitcodes.InvalidConfig)
	msg, fields = Format(err)
	assert.Equal(t, "bad config", msg)
	assert.Equal(t, map[string]interface{}{
		"hint":      "check the file",
		"exit_code": int(exitcodes.InvalidConfig),
	}, fields)
}
