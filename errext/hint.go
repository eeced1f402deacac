// Package errext contains extensions for normal Go errors that are used by the
// k6streams command: user hints, exit codes and interruptions.
package errext

import "errors"

// HasHint is a wrapper around an error with an attached user hint, giving
// extra human-readable information about the error, like how to fix it.
type HasHint interface {
	error
	Hint() string
}

// WithHint attaches a hint to err, unless err is nil. A hint already carried
// by err is kept, as in "new hint (old hint)".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil
	}
	return withHint{err, hint}
}

type withHint struct {
	error
	hint string
}

func (wh withHint) Unwrap() error {
	return wh.error
}

func (wh withHint) Hint() string {
	hint := wh.hint
	var oldhint HasHint
	if errors.As(wh.error, &oldhint) {
		hint = hint + " (" + oldhint.Hint() + ")"
	}

	return hint
}

var _ HasHint = withHint{}
