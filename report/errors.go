package report

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingInput is returned when a request lacks a month, year or source.
	ErrMissingInput = errors.New("missing input")

	// ErrGenerationInProgress is returned when a report with the same filename
	// is already being generated.
	ErrGenerationInProgress = errors.New("report generation already in progress")
)

// OutputConflictError is returned when a report already exists and
// overwriting it was not confirmed. The existing file is left untouched.
type OutputConflictError struct {
	Path string
}

func (e *OutputConflictError) Error() string {
	return fmt.Sprintf("report %s already exists and was not overwritten", e.Path)
}

// StageError wraps a failure with the generation state it happened in.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
