package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobAlreadyClaimed is returned when the job has left PENDING before this worker claimed it
	ErrJobAlreadyClaimed = errors.New("job already claimed or not in PENDING status")

	// ErrInvalidRequest is returned when the stored generation request cannot be decoded
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrGenerationFailed is returned when the pipeline aborted; the job is marked FAILED
	ErrGenerationFailed = errors.New("dungeon generation failed")

	// ErrJobNotOwned is returned when the job was taken over by another worker or is no longer RUNNING
	ErrJobNotOwned = errors.New("job is not running under this worker")
)

// JobError is the reason a delivery was not acknowledged
type JobError struct {
	JobID string
	// Stage is the pipeline stage the job was marked FAILED at; empty if it never ran
	Stage string
	// Transient errors are redelivered, all others are dropped
	Transient bool
	Err       error
}

func (e *JobError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("job %s failed at %s: %v", e.JobID, e.Stage, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as worth another delivery
func NewTransientError(jobID string, err error) error {
	return &JobError{JobID: jobID, Transient: true, Err: err}
}

// NewFinalError records that the job stopped for good at stage
func NewFinalError(jobID, stage string, err error) error {
	return &JobError{JobID: jobID, Stage: stage, Err: err}
}

// IsTransient reports whether err asks for the delivery to be requeued
func IsTransient(err error) bool {
	var jobErr *JobError
	return errors.As(err, &jobErr) && jobErr.Transient
}
