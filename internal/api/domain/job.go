package domain

import (
	"errors"
)

const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// Image kinds served per job
const (
	ImageMap = "map"
	ImageKey = "key"
)

var (
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotTerminal is returned when deleting a job that is still pending or running
	ErrJobNotTerminal = errors.New("job is not in a terminal state")

	// ErrImageNotReady is returned for images of jobs that have not completed
	ErrImageNotReady = errors.New("image not available")
)

// IsTerminal reports whether status is final
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}
