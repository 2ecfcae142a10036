package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dungeon "github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/output"
	"github.com/cuongbtq/dungeon-forge/internal/worker/domain"
)

// settleTimeout bounds the final status write once the job context is gone
const settleTimeout = 10 * time.Second

// processJob claims a job, runs the pipeline and records the outcome
func (w *Worker) processJob(ctx context.Context, msg *domain.JobMessage) error {
	logger := w.logger.With(slog.String("job_id", msg.JobID))
	logger.Info("Processing job")

	// Step 1: Claim job (PENDING → RUNNING)
	job, err := w.store.ClaimJob(ctx, msg.JobID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrJobAlreadyClaimed) {
			logger.Warn("Job already claimed, skipping")
			return domain.NewFinalError(msg.JobID, "", err)
		}
		return domain.NewTransientError(msg.JobID, fmt.Errorf("failed to claim job: %w", err))
	}

	// Step 2: Decode the stored request
	var req dungeon.GenerationRequest
	if err := json.Unmarshal(job.Request, &req); err != nil {
		w.fail(ctx, logger, job.JobID, dungeon.StageValidate, fmt.Sprintf("invalid request JSON: %s", err))
		return domain.NewFinalError(job.JobID, dungeon.StageValidate, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
	}

	// Step 3: Bound the run
	jobCtx := ctx
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	heartbeatDone := make(chan struct{})
	go w.sendJobHeartbeat(jobCtx, job.JobID, heartbeatDone)
	defer close(heartbeatDone)

	// Step 4: Generate
	result, err := w.runner.Run(jobCtx, req)
	if err != nil {
		stage := dungeon.StageOf(err)
		logger.Error("Dungeon generation failed",
			slog.String("stage", stage),
			slog.String("error", err.Error()),
		)
		w.fail(ctx, logger, job.JobID, stage, err.Error())
		return domain.NewFinalError(job.JobID, stage, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err))
	}

	// Step 5: Persist
	settleCtx, settleCancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer settleCancel()

	outcome, err := newOutcome(result)
	if err == nil {
		err = w.store.CompleteJob(settleCtx, job.JobID, w.workerID, outcome)
	}
	if errors.Is(err, domain.ErrJobNotOwned) {
		logger.Warn("Job was taken over by another worker, discarding result")
		return domain.NewFinalError(job.JobID, dungeon.StagePersist, err)
	}
	if err != nil {
		w.fail(ctx, logger, job.JobID, dungeon.StagePersist, err.Error())
		return domain.NewFinalError(job.JobID, dungeon.StagePersist, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err))
	}

	logger.Info("Job completed successfully",
		slog.Int("rooms", outcome.RoomCount),
		slog.Int("total_xp", outcome.TotalXP),
	)
	return nil
}

// fail marks the job FAILED even when ctx is already canceled
func (w *Worker) fail(ctx context.Context, logger *slog.Logger, jobID, stage, message string) {
	settleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if err := w.store.FailJob(settleCtx, jobID, w.workerID, stage, message); err != nil {
		logger.Error("Failed to update job status to FAILED",
			slog.String("error", err.Error()),
		)
	}
}

func newOutcome(result *dungeon.DungeonResult) (*domain.Outcome, error) {
	document, err := output.Encode(result, false)
	if err != nil {
		return nil, err
	}
	return &domain.Outcome{
		Name:      result.Request.Name,
		Seed:      result.Request.Seed,
		RemoteID:  result.Handle.ID,
		Result:    document,
		MapImage:  result.MapImage,
		KeyImage:  result.KeyImage,
		RoomCount: len(result.Rooms),
		TotalXP:   result.TotalXP(),
	}, nil
}

// sendJobHeartbeat periodically updates the job's heartbeat timestamp
func (w *Worker) sendJobHeartbeat(ctx context.Context, jobID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ctx.Done():
			return

		case <-ticker.C:
			if err := w.store.UpdateJobHeartbeat(ctx, jobID, w.workerID); err != nil {
				w.logger.Warn("Failed to update job heartbeat",
					slog.String("job_id", jobID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
