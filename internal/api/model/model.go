package model

import (
	"database/sql"
	"time"
)

// DungeonJob is a dungeon_jobs row without its images
type DungeonJob struct {
	JobID        string         `db:"job_id"`
	Status       string         `db:"status"`
	Request      []byte         `db:"request"`
	Name         sql.NullString `db:"name"`
	Seed         sql.NullString `db:"seed"`
	RemoteID     sql.NullString `db:"remote_id"`
	WorkerID     sql.NullString `db:"worker_id"`
	Result       []byte         `db:"result"`
	RoomCount    sql.NullInt64  `db:"room_count"`
	TotalXP      sql.NullInt64  `db:"total_xp"`
	ErrorStage   sql.NullString `db:"error_stage"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	StartedAt    sql.NullTime   `db:"started_at"`
	CompletedAt  sql.NullTime   `db:"completed_at"`
}
