package errext

import (
	"errors"

	"github.com/liuxd6825/k6streams/errext/exitcodes"
)

// InterruptError is the error a stream is canceled with when the process is
// asked to stop.
type InterruptError struct {
	Reason string
}

var _ HasExitCode = &InterruptError{}

// Error returns the reason of the interruption.
func (i *InterruptError) Error() string {
	return i.Reason
}

// ExitCode returns the status code used when the process exits.
func (i *InterruptError) ExitCode() exitcodes.ExitCode {
	return exitcodes.Interrupted
}

// ReasonSignal is the reason used when interrupted by an OS signal.
const ReasonSignal = "interrupted by signal"

// IsInterruptError returns true if err is, or wraps, an *InterruptError.
func IsInterruptError(err error) bool {
	if err == nil {
		return false
	}
	var intErr *InterruptError
	return errors.As(err, &intErr)
}
