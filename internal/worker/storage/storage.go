package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/worker/domain"
	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for the worker
type Storage struct {
	db         *sqlx.DB
	logger     *slog.Logger
	staleAfter time.Duration
}

// NewStorage creates a new Storage instance.
// A RUNNING job whose heartbeat is older than staleAfter may be claimed again; zero disables that.
func NewStorage(db *sqlx.DB, logger *slog.Logger, staleAfter time.Duration) *Storage {
	return &Storage{
		db:         db,
		logger:     logger,
		staleAfter: staleAfter,
	}
}

// ClaimJob moves a PENDING job to RUNNING for workerID using optimistic locking.
// A RUNNING job with a stale heartbeat is taken over; its previous worker is presumed dead.
// A job that is missing or claimed by a live worker yields ErrJobAlreadyClaimed.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	query := `
		UPDATE dungeon_jobs
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND (status = $4
		       OR ($5::float8 > 0 AND status = $1 AND last_heartbeat_at < NOW() - make_interval(secs => $5::float8)))
		RETURNING job_id, request
	`

	var job domain.Job
	var request []byte
	err := s.db.QueryRowContext(ctx, query,
		domain.JobStatusRunning,
		workerID,
		jobID,
		domain.JobStatusPending,
		s.staleAfter.Seconds(),
	).Scan(
		&job.JobID,
		&request,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	job.Request = request
	job.Status = domain.JobStatusRunning
	job.WorkerID = workerID

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
	)

	return &job, nil
}

// CompleteJob stores the outcome of a job RUNNING under workerID and marks it COMPLETED
func (s *Storage) CompleteJob(ctx context.Context, jobID, workerID string, outcome *domain.Outcome) error {
	query := `
		UPDATE dungeon_jobs
		SET status = $1,
		    name = $2,
		    seed = $3,
		    remote_id = $4,
		    result = $5,
		    map_image = $6,
		    key_image = $7,
		    room_count = $8,
		    total_xp = $9,
		    error_stage = NULL,
		    error_message = NULL,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $10 AND status = $11 AND worker_id = $12
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		outcome.Name,
		outcome.Seed,
		outcome.RemoteID,
		// jsonb takes text; pq would send []byte as bytea
		string(outcome.Result),
		outcome.MapImage,
		outcome.KeyImage,
		outcome.RoomCount,
		outcome.TotalXP,
		jobID,
		domain.JobStatusRunning,
		workerID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", domain.JobStatusCompleted),
		slog.Int("rooms", outcome.RoomCount),
	)

	return nil
}

// FailJob marks a job RUNNING under workerID FAILED with the stage and message of its error
func (s *Storage) FailJob(ctx context.Context, jobID, workerID, stage, message string) error {
	query := `
		UPDATE dungeon_jobs
		SET status = $1,
		    error_stage = NULLIF($2, ''),
		    error_message = $3,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $4 AND status = $5 AND worker_id = $6
	`

	result, err := s.db.ExecContext(ctx, query, domain.JobStatusFailed, stage, message, jobID, domain.JobStatusRunning, workerID)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("status", domain.JobStatusFailed),
		slog.String("stage", stage),
	)

	return nil
}

// UpdateJobHeartbeat updates the last_heartbeat_at timestamp for a job RUNNING under workerID
func (s *Storage) UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error {
	query := `
		UPDATE dungeon_jobs
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1 AND status = $2 AND worker_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, jobID, domain.JobStatusRunning, workerID)
	if err != nil {
		return fmt.Errorf("failed to update job heartbeat: %w", err)
	}
	return requireRow(result)
}

// requireRow maps an update that matched nothing to ErrJobNotOwned
func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrJobNotOwned
	}
	return nil
}
