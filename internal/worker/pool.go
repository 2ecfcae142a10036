package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/dungeon-forge/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	logger := w.logger.With(slog.String("worker_name", workerName))
	logger.Debug("Worker goroutine started")

	for {
		select {
		case <-w.stopChan:
			logger.Debug("Worker goroutine stopping - stopChan closed")
			return

		case <-ctx.Done():
			logger.Debug("Worker goroutine stopping - context canceled")
			return

		case msg, ok := <-w.jobsChan:
			if !ok {
				logger.Debug("Worker goroutine stopping - jobsChan closed")
				return
			}
			w.handleMessage(ctx, logger, msg)
		}
	}
}

// handleMessage processes one job and settles its delivery
func (w *Worker) handleMessage(ctx context.Context, logger *slog.Logger, msg *domain.JobMessage) {
	logger = logger.With(slog.String("job_id", msg.JobID))

	err := w.processJob(ctx, msg)
	if msg.Delivery == nil {
		return
	}

	// another worker owns the job; this delivery is a duplicate
	if errors.Is(err, domain.ErrJobAlreadyClaimed) || errors.Is(err, domain.ErrJobNotOwned) {
		logger.Info("Dropping duplicate delivery")
		err = nil
	}

	if err != nil {
		requeue := domain.IsTransient(err)
		logger.Error("Job processing failed",
			slog.String("error", err.Error()),
			slog.Bool("requeue", requeue),
		)
		if nackErr := msg.Delivery.Nack(false, requeue); nackErr != nil {
			logger.Error("Failed to NACK message", slog.String("error", nackErr.Error()))
		}
		return
	}

	if ackErr := msg.Delivery.Ack(false); ackErr != nil {
		logger.Error("Failed to ACK message", slog.String("error", ackErr.Error()))
	}
}
