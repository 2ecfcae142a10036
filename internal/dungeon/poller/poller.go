// Package poller drives a remote generation job to a terminal state
package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// State is the poll loop state
type State string

// Poll loop states
const (
	StateRequested State = "REQUESTED"
	StatePolling   State = "POLLING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

const (
	// DefaultInterval is the fixed wait between status checks
	DefaultInterval = time.Second
	// DefaultMaxAttempts bounds the number of status fetches
	DefaultMaxAttempts = 300
)

// ErrAttemptsExhausted is returned when the job is still pending after the attempt bound
var ErrAttemptsExhausted = errors.New("job still pending after maximum poll attempts")

// StatusFetcher queries a job status once
type StatusFetcher interface {
	FetchStatus(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error)
}

// StatusFetcherFunc adapts a function to StatusFetcher
type StatusFetcherFunc func(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error)

// FetchStatus calls f
func (f StatusFetcherFunc) FetchStatus(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error) {
	return f(ctx, handle)
}

// Config holds poller configuration
type Config struct {
	Fetcher     StatusFetcher
	Interval    time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

// Poller repeatedly fetches a job status until it is done or failed
type Poller struct {
	fetcher     StatusFetcher
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

// Result is the outcome of one poll run
type Result struct {
	State    State
	Attempts int
	HTML     string
	MapRef   string
	KeyRef   string
}

// New creates a new Poller. Zero interval and attempt bound take the defaults.
func New(cfg *Config) (*Poller, error) {
	if cfg.Fetcher == nil {
		return nil, fmt.Errorf("status fetcher is required")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Poller{
		fetcher:     cfg.Fetcher,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      logger,
	}, nil
}

// Poll fetches the status of handle until Done, a failure, the attempt bound, or ctx ends.
// Pending is the only status that is retried; transport errors end the run immediately.
func (p *Poller) Poll(ctx context.Context, handle domain.JobHandle) (*Result, error) {
	result := &Result{State: StateRequested}

	if !handle.Valid() {
		result.State = StateFailed
		return result, &domain.ProtocolViolation{Reason: "job handle is missing auth or id"}
	}

	for {
		result.Attempts++
		status, err := p.fetcher.FetchStatus(ctx, handle)
		if result.State == StateRequested {
			p.transition(result, handle, StatePolling)
		}
		if err != nil {
			p.transition(result, handle, StateFailed)
			return result, fmt.Errorf("status fetch %d: %w", result.Attempts, err)
		}

		switch s := status.(type) {
		case domain.Pending:
			p.logger.Debug("Job pending",
				slog.String("job_id", handle.ID),
				slog.Int("attempt", result.Attempts),
				slog.String("note", s.Note),
			)

		case domain.Done:
			refs, err := ImageRefs(s.HTML)
			if err != nil {
				p.transition(result, handle, StateFailed)
				return result, err
			}
			result.HTML = s.HTML
			result.MapRef = refs[0]
			result.KeyRef = refs[1]
			p.transition(result, handle, StateDone)
			return result, nil

		default:
			p.transition(result, handle, StateFailed)
			return result, &domain.ProtocolViolation{Reason: fmt.Sprintf("unrecognized job status %T", status)}
		}

		if result.Attempts >= p.maxAttempts {
			p.transition(result, handle, StateFailed)
			return result, fmt.Errorf("%w (%d attempts)", ErrAttemptsExhausted, result.Attempts)
		}

		if err := p.wait(ctx); err != nil {
			p.transition(result, handle, StateFailed)
			return result, fmt.Errorf("polling abandoned after %d attempts: %w", result.Attempts, err)
		}
	}
}

func (p *Poller) wait(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Poller) transition(result *Result, handle domain.JobHandle, next State) {
	if result.State.Terminal() {
		return
	}
	p.logger.Debug("Poll state changed",
		slog.String("job_id", handle.ID),
		slog.String("from", string(result.State)),
		slog.String("to", string(next)),
		slog.Int("attempts", result.Attempts),
	)
	result.State = next
}
