package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/api/domain"
	"github.com/cuongbtq/dungeon-forge/internal/api/model"
	"github.com/jmoiron/sqlx"
)

const jobColumns = `
	job_id, status, request, name, seed, remote_id, worker_id,
	result, room_count, total_xp, error_stage, error_message,
	created_at, updated_at, started_at, completed_at`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{
		db: db,
	}
}

// CreateJob inserts a PENDING job
func (s *Storage) CreateJob(ctx context.Context, job *model.DungeonJob) error {
	query := `
		INSERT INTO dungeon_jobs (
			job_id, status, request, name, seed, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.Status,
		// jsonb takes text; pq would send []byte as bytea
		string(job.Request),
		job.Name,
		job.Seed,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.DungeonJob, error) {
	var job model.DungeonJob
	query := `SELECT ` + jobColumns + ` FROM dungeon_jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns up to PageSize+1 jobs, newest first, so callers can tell whether another page exists
func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.DungeonJob, error) {
	query := `SELECT ` + jobColumns + ` FROM dungeon_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.DungeonJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// GetImage returns the map or key PNG of a completed job
func (s *Storage) GetImage(ctx context.Context, jobID, kind string) ([]byte, error) {
	var column string
	switch kind {
	case domain.ImageMap:
		column = "map_image"
	case domain.ImageKey:
		column = "key_image"
	default:
		return nil, fmt.Errorf("unknown image kind %q", kind)
	}

	var row struct {
		Status string `db:"status"`
		Image  []byte `db:"image"`
	}
	query := `SELECT status, ` + column + ` AS image FROM dungeon_jobs WHERE job_id = $1`

	err := s.db.GetContext(ctx, &row, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s image: %w", kind, err)
	}
	if row.Status != domain.JobStatusCompleted || len(row.Image) == 0 {
		return nil, domain.ErrImageNotReady
	}

	return row.Image, nil
}

// FailJob marks a PENDING job FAILED, e.g. when it never reached the queue
func (s *Storage) FailJob(ctx context.Context, jobID, stage, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE dungeon_jobs
		SET status = $2, error_stage = $3, error_message = $4, completed_at = NOW(), updated_at = NOW()
		WHERE job_id = $1 AND status = $5
	`, jobID, domain.JobStatusFailed, stage, message, domain.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark job failed: %w", err)
	}
	return nil
}

// DeleteJob removes a COMPLETED or FAILED job
func (s *Storage) DeleteJob(ctx context.Context, jobID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM dungeon_jobs WHERE job_id = $1 AND status IN ($2, $3)`,
		jobID, domain.JobStatusCompleted, domain.JobStatusFailed,
	)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	// nothing deleted: tell a missing job from a live one
	var status string
	err = s.db.GetContext(ctx, &status, `SELECT status FROM dungeon_jobs WHERE job_id = $1`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get job status: %w", err)
	}
	return domain.ErrJobNotTerminal
}
