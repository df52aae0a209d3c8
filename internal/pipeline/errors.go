package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a run failed.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation_error"
	KindToolUnavailable ErrorKind = "tool_unavailable"
	KindEmptyOutput     ErrorKind = "empty_output"
	KindStageTimeout    ErrorKind = "stage_timeout"
	KindInternal        ErrorKind = "internal_invariant_violation"
	KindCancelled       ErrorKind = "cancelled"
)

// ValidationError rejects a bad request before any run is created.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid request: %v", e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// StageError carries the originating stage and error kind of a failure.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError builds a StageError wrapping err.
func NewStageError(stage Stage, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// ClassifyStageError normalizes an agent error into a StageError for the
// given stage. Context errors map to timeout/cancel kinds; anything already
// classified keeps its kind.
func ClassifyStageError(stage Stage, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewStageError(stage, KindStageTimeout, err)
	case errors.Is(err, context.Canceled):
		return NewStageError(stage, KindCancelled, err)
	default:
		// Unclassified agent errors come from external calls.
		return NewStageError(stage, KindToolUnavailable, err)
	}
}
