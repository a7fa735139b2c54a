package domain

import "errors"

// ErrInvalidArgument marks caller errors: malformed identifiers and records
// violating the event invariants.
var ErrInvalidArgument = errors.New("invalid argument")

// InvalidArgumentError describes which input was rejected. Its message is
// meant to be shown to the caller as is.
type InvalidArgumentError struct {
	Field  string
	Reason string
}

func (e *InvalidArgumentError) Error() string { return e.Reason }

func (e *InvalidArgumentError) Unwrap() error { return ErrInvalidArgument }

// IsInvalidArgument reports whether err was caused by caller input.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
