package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport matches any TransportError via errors.Is
	ErrTransport = errors.New("transport error")

	// ErrProtocol matches any ProtocolViolation via errors.Is
	ErrProtocol = errors.New("protocol violation")

	// ErrDataShape matches any DataShapeError via errors.Is
	ErrDataShape = errors.New("data shape error")

	// ErrValidation matches any ValidationError via errors.Is
	ErrValidation = errors.New("validation error")
)

// TransportError is a non-success response (or no response at all) from a remote call
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrTransport, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.URL != "" {
		msg += " (" + e.URL + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ProtocolViolation is a remote response that breaks the job status contract
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("%s: %s", ErrProtocol, e.Reason)
}

func (e *ProtocolViolation) Is(target error) bool {
	return target == ErrProtocol
}

// DataShapeError is a payload that decoded but is missing required structure
type DataShapeError struct {
	Reason string
	Err    error
}

func (e *DataShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDataShape, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDataShape, e.Reason)
}

func (e *DataShapeError) Unwrap() error {
	return e.Err
}

func (e *DataShapeError) Is(target error) bool {
	return target == ErrDataShape
}

// ValidationError is an input rejected before any network call
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrValidation, e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// Pipeline stages, used to tell the user where a run failed
const (
	StageValidate = "validate"
	StageDefaults = "defaults"
	StageSubmit   = "submit"
	StagePoll     = "poll"
	StageExtract  = "extract"
	StageBudget   = "budget"
	StagePopulate = "populate"
	StagePersist  = "persist"
)

// StageError records which pipeline stage produced err
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + " stage failed: " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// AtStage wraps err with its stage; nil stays nil
func AtStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage recorded in err, or "" if there is none
func StageOf(err error) string {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return ""
}
