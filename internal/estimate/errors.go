package estimate

import (
	"errors"
	"fmt"
)

// ErrInvalidSelection indicates a selection does not fit the job type's options.
var ErrInvalidSelection = errors.New("invalid selection")

// SelectionError describes which pick was rejected and why.
type SelectionError struct {
	OptionID string
	Pick     Pick
	Reason   string
}

// Error implements the error interface.
func (e *SelectionError) Error() string {
	return fmt.Sprintf("%s: option %q = %s: %s", ErrInvalidSelection, e.OptionID, e.Pick, e.Reason)
}

// Unwrap returns ErrInvalidSelection for errors.Is() compatibility.
func (e *SelectionError) Unwrap() error {
	return ErrInvalidSelection
}
