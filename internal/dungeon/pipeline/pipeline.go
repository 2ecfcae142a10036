// Package pipeline runs one dungeon generation from request to budgeted rooms
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/budget"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/catalog"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/extractor"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/poller"
)

// encounterSeedSuffix keeps creature picks off the tier draw sequence
const encounterSeedSuffix = ":encounters"

// Remote submits generation jobs and supplies default names
type Remote interface {
	Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error)
	RandomName(ctx context.Context) (string, error)
}

// JobPoller waits for a submitted job to finish
type JobPoller interface {
	Poll(ctx context.Context, handle domain.JobHandle) (*poller.Result, error)
}

// ArtifactExtractor downloads the artifacts of a finished job
type ArtifactExtractor interface {
	Extract(ctx context.Context, handle domain.JobHandle, mapRef, keyRef string) (*extractor.Extraction, error)
}

// EncounterBudgeter assigns a difficulty tier and XP budget to every room
type EncounterBudgeter interface {
	Assign(level, partySize int, rooms []domain.Room, src budget.Source) ([]domain.Room, error)
}

// EncounterPopulator fills budgeted rooms with creatures
type EncounterPopulator interface {
	Populate(level int, rooms []domain.Room, src catalog.Source) ([]domain.Room, error)
}

// Config holds the pipeline collaborators
type Config struct {
	Remote    Remote
	Poller    JobPoller
	Extractor ArtifactExtractor
	Budgeter  EncounterBudgeter
	// Populator is optional; rooms keep only their budget without it
	Populator EncounterPopulator
	// PollTimeout bounds the poll stage; zero leaves it to the caller's context
	PollTimeout time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

// Pipeline is a sequential generation run
type Pipeline struct {
	remote      Remote
	poller      JobPoller
	extractor   ArtifactExtractor
	budgeter    EncounterBudgeter
	populator   EncounterPopulator
	pollTimeout time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// New creates a new Pipeline
func New(cfg *Config) (*Pipeline, error) {
	if cfg.Remote == nil {
		return nil, fmt.Errorf("remote client is required")
	}
	if cfg.Poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.Budgeter == nil {
		return nil, fmt.Errorf("budgeter is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		remote:      cfg.Remote,
		poller:      cfg.Poller,
		extractor:   cfg.Extractor,
		budgeter:    cfg.Budgeter,
		populator:   cfg.Populator,
		pollTimeout: cfg.PollTimeout,
		now:         now,
		logger:      logger,
	}, nil
}

// Run validates req, fills in name and seed, and drives the remote job to budgeted rooms.
// Every failure is a *domain.StageError naming the stage that failed.
func (p *Pipeline) Run(ctx context.Context, req domain.GenerationRequest) (*domain.DungeonResult, error) {
	start := time.Now()

	// Step 1: Validate before any network call
	if err := req.Validate(); err != nil {
		return nil, domain.AtStage(domain.StageValidate, err)
	}

	// Step 2: Default name and seed, recorded on the request
	req, err := p.applyDefaults(ctx, req)
	if err != nil {
		return nil, domain.AtStage(domain.StageDefaults, err)
	}

	// Step 3: Submit
	handle, err := p.remote.Submit(ctx, req)
	if err != nil {
		return nil, domain.AtStage(domain.StageSubmit, err)
	}
	logger := p.logger.With(slog.String("job_id", handle.ID))
	logger.Info("Generation submitted",
		slog.String("name", req.Name),
		slog.String("seed", req.Seed),
	)

	// Step 4: Poll until done
	polled, err := p.poll(ctx, handle)
	if err != nil {
		return nil, domain.AtStage(domain.StagePoll, err)
	}
	logger.Info("Generation finished", slog.Int("poll_attempts", polled.Attempts))

	// Step 5: Extract images and rooms
	extraction, err := p.extractor.Extract(ctx, handle, polled.MapRef, polled.KeyRef)
	if err != nil {
		return nil, domain.AtStage(domain.StageExtract, err)
	}

	// Step 6: Budget, seeding the source exactly once
	rooms, err := p.budgeter.Assign(req.Level, req.PartySize, extraction.Rooms, budget.NewSource(req.Seed))
	if err != nil {
		return nil, domain.AtStage(domain.StageBudget, err)
	}

	// Step 7: Populate when a catalog is configured
	if p.populator != nil {
		rooms, err = p.populator.Populate(req.Level, rooms, budget.NewSource(req.Seed+encounterSeedSuffix))
		if err != nil {
			return nil, domain.AtStage(domain.StagePopulate, err)
		}
	}

	result := &domain.DungeonResult{
		Request:  req,
		Handle:   handle,
		MapImage: extraction.MapImage,
		KeyImage: extraction.KeyImage,
		Dungeon:  extraction.Dungeon,
		Rooms:    rooms,
	}

	logger.Info("Dungeon ready",
		slog.Int("rooms", len(rooms)),
		slog.Int("total_xp", result.TotalXP()),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (p *Pipeline) applyDefaults(ctx context.Context, req domain.GenerationRequest) (domain.GenerationRequest, error) {
	if strings.TrimSpace(req.Name) == "" {
		name, err := p.remote.RandomName(ctx)
		if err != nil {
			return req, fmt.Errorf("default dungeon name: %w", err)
		}
		req.Name = name
	}
	if strings.TrimSpace(req.Seed) == "" {
		req.Seed = strconv.FormatInt(p.now().Unix(), 10)
	}
	return req, nil
}

func (p *Pipeline) poll(ctx context.Context, handle domain.JobHandle) (*poller.Result, error) {
	if p.pollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.pollTimeout)
		defer cancel()
	}
	return p.poller.Poll(ctx, handle)
}
