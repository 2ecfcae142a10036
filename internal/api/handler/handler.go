package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/api/model"
	"github.com/cuongbtq/dungeon-forge/internal/api/storage"
	dungeon "github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// Store persists dungeon jobs
type Store interface {
	CreateJob(ctx context.Context, job *model.DungeonJob) error
	GetJobByID(ctx context.Context, jobID string) (*model.DungeonJob, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.DungeonJob, error)
	GetImage(ctx context.Context, jobID, kind string) ([]byte, error)
	FailJob(ctx context.Context, jobID, stage, message string) error
	DeleteJob(ctx context.Context, jobID string) error
}

// Publisher enqueues job messages
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Store     Store
	Publisher Publisher
	Health    HealthChecker
	// Defaults is the base request that API bodies override
	Defaults dungeon.GenerationRequest
	Now      func() time.Time
}

// JobHandler handles dungeon job HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	store     Store
	publisher Publisher
	defaults  dungeon.GenerationRequest
	now       func() time.Time
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &JobHandler{
		logger:    deps.Logger,
		store:     deps.Store,
		publisher: deps.Publisher,
		defaults:  deps.Defaults,
		now:       now,
	}
}
