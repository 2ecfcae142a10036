package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	dungeon "github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultHeartbeatInterval = 30 * time.Second

// JobStore persists the lifecycle of dungeon jobs
type JobStore interface {
	ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error)
	CompleteJob(ctx context.Context, jobID, workerID string, outcome *domain.Outcome) error
	FailJob(ctx context.Context, jobID, workerID, stage, message string) error
	UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error
}

// Runner generates one dungeon
type Runner interface {
	Run(ctx context.Context, req dungeon.GenerationRequest) (*dungeon.DungeonResult, error)
}

// Broker delivers job messages
type Broker interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             JobStore
	Runner            Runner
	Broker            Broker
	WorkerID          string
	QueueName         string
	Concurrency       int
	PrefetchCount     int
	JobTimeout        time.Duration
	HeartbeatInterval time.Duration
}

// Worker consumes dungeon jobs and runs the generation pipeline for each
type Worker struct {
	logger            *slog.Logger
	store             JobStore
	runner            Runner
	broker            Broker
	workerID          string
	queueName         string
	concurrency       int
	prefetchCount     int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration

	jobsChan chan *domain.JobMessage
	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) (*Worker, error) {
	if cfg.Store == nil || cfg.Runner == nil || cfg.Broker == nil {
		return nil, fmt.Errorf("worker requires a store, a runner and a broker")
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("worker concurrency must be greater than 0")
	}

	workerID := cfg.WorkerID
	if workerID == "" {
		workerID = "worker-" + uuid.NewString()[:8]
	}
	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = cfg.Concurrency
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		logger:            logger.With(slog.String("worker_id", workerID)),
		store:             cfg.Store,
		runner:            cfg.Runner,
		broker:            cfg.Broker,
		workerID:          workerID,
		queueName:         cfg.QueueName,
		concurrency:       cfg.Concurrency,
		prefetchCount:     prefetch,
		jobTimeout:        cfg.JobTimeout,
		heartbeatInterval: heartbeat,
		jobsChan:          make(chan *domain.JobMessage),
		stopChan:          make(chan struct{}),
	}, nil
}

// ID returns the worker id recorded on claimed jobs
func (w *Worker) ID() string {
	return w.workerID
}

// Start consumes jobs until ctx is canceled or the delivery channel closes
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("job_timeout", w.jobTimeout),
	)

	// Step 1: Subscribe to the queue
	deliveries, err := w.setupConsumer()
	if err != nil {
		return err
	}

	// Step 2: Spawn the pool; in-flight jobs outlive ctx and Stop waits for them
	w.spawnWorkerPool(context.WithoutCancel(ctx))

	// Step 3: Dispatch until the broker or ctx ends
	w.startMessageDispatcher(ctx, deliveries)
	close(w.jobsChan)

	return nil
}

// Stop signals the pool to stop after in-flight jobs and waits for it
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}
