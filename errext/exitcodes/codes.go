// Package exitcodes contains the constants representing the possible k6streams exit codes.
package exitcodes

// ExitCode is just a type representing a process exit code for k6streams
type ExitCode uint8

// list of exit codes used by k6streams, kept in the range k6 uses for its own
const (
	GenericError    ExitCode = 1
	InvalidConfig   ExitCode = 104
	StreamErrored   ExitCode = 105
	CannotOpenInput ExitCode = 106
	OutputFailed    ExitCode = 107
	Interrupted     ExitCode = 108
	GoPanic         ExitCode = 109
)
