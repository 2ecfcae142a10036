package domain

import (
	"encoding/json"
)

// Job status constants
const (
	JobStatusPending   = "PENDING"
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"
)

// Job is a claimed dungeon job
type Job struct {
	JobID    string
	Request  json.RawMessage
	Status   string
	WorkerID string
}

// Outcome is what a finished job stores
type Outcome struct {
	Name      string
	Seed      string
	RemoteID  string
	Result    []byte
	MapImage  []byte
	KeyImage  []byte
	RoomCount int
	TotalXP   int
}

// Acknowledger settles one delivery with the broker
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// JobMessage represents a job message from RabbitMQ
type JobMessage struct {
	JobID    string       `json:"job_id"`
	Delivery Acknowledger `json:"-"`
}
