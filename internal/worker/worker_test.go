package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	dungeon "github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJobID = "1b0f3c2e-6a53-4c1e-9d1f-2a3b4c5d6e7f"

type failure struct {
	stage   string
	message string
}

type fakeStore struct {
	mu          sync.Mutex
	request     json.RawMessage
	claimErr    error
	completeErr error
	claimed     []string
	completed   map[string]*domain.Outcome
	failed      map[string]failure
	writers     []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		request:   json.RawMessage(`{"name":"Vault","seed":"7","level":2,"party_size":4}`),
		completed: map[string]*domain.Outcome{},
		failed:    map[string]failure{},
	}
}

func (s *fakeStore) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	s.claimed = append(s.claimed, jobID)
	return &domain.Job{JobID: jobID, Request: s.request, Status: domain.JobStatusRunning, WorkerID: workerID}, nil
}

func (s *fakeStore) CompleteJob(ctx context.Context, jobID, workerID string, outcome *domain.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writers = append(s.writers, workerID)
	if s.completeErr != nil {
		return s.completeErr
	}
	s.completed[jobID] = outcome
	return nil
}

func (s *fakeStore) FailJob(ctx context.Context, jobID, workerID, stage, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writers = append(s.writers, workerID)
	s.failed[jobID] = failure{stage: stage, message: message}
	return nil
}

func (s *fakeStore) UpdateJobHeartbeat(ctx context.Context, jobID, workerID string) error {
	return nil
}

type fakeRunner struct {
	err  error
	seen []dungeon.GenerationRequest
	mu   sync.Mutex
}

func (r *fakeRunner) Run(ctx context.Context, req dungeon.GenerationRequest) (*dungeon.DungeonResult, error) {
	r.mu.Lock()
	r.seen = append(r.seen, req)
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return &dungeon.DungeonResult{
		Request:  req,
		Handle:   dungeon.JobHandle{Auth: "a", ID: "99"},
		MapImage: []byte("map"),
		KeyImage: []byte("key"),
		Rooms: []dungeon.Room{
			{Fields: map[string]json.RawMessage{"id": json.RawMessage(`1`)}, Budget: &dungeon.EncounterBudget{Tier: 2, XP: 40}},
			{Fields: map[string]json.RawMessage{"id": json.RawMessage(`2`)}},
		},
	}, nil
}

type fakeBroker struct {
	deliveries chan amqp.Delivery
	qosErr     error
	prefetch   int
}

func (b *fakeBroker) Qos(prefetchCount int) error {
	b.prefetch = prefetchCount
	return b.qosErr
}

func (b *fakeBroker) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	return b.deliveries, nil
}

// recordingAck implements both the broker-level and the delivery-level acknowledger
type recordingAck struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeued int
}

func (a *recordingAck) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *recordingAck) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type messageAck struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *messageAck) Ack(multiple bool) error {
	a.acked = true
	return nil
}

func (a *messageAck) Nack(multiple, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func newTestWorker(t *testing.T, store *fakeStore, runner *fakeRunner, broker *fakeBroker) *Worker {
	t.Helper()
	if broker == nil {
		broker = &fakeBroker{}
	}
	w, err := NewWorker(&Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:       store,
		Runner:      runner,
		Broker:      broker,
		WorkerID:    "worker-test",
		Concurrency: 2,
		JobTimeout:  time.Minute,
	})
	require.NoError(t, err)
	return w
}

func TestNewWorker(t *testing.T) {
	_, err := NewWorker(&Config{Concurrency: 1})
	assert.Error(t, err)

	_, err = NewWorker(&Config{Store: newFakeStore(), Runner: &fakeRunner{}, Broker: &fakeBroker{}})
	assert.Error(t, err)

	w, err := NewWorker(&Config{Store: newFakeStore(), Runner: &fakeRunner{}, Broker: &fakeBroker{}, Concurrency: 3})
	require.NoError(t, err)
	assert.Contains(t, w.ID(), "worker-")
	assert.Equal(t, 3, w.prefetchCount)
	assert.Equal(t, defaultHeartbeatInterval, w.heartbeatInterval)
}

func TestDecodeMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"job_id":"` + testJobID + `"}`},
		{name: "not json", body: `job`, wantErr: true},
		{name: "missing job id", body: `{}`, wantErr: true},
		{name: "job id not a uuid", body: `{"job_id":"42"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := decodeMessage([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testJobID, msg.JobID)
		})
	}
}

func TestProcessJob_Success(t *testing.T) {
	store := newFakeStore()
	runner := &fakeRunner{}
	w := newTestWorker(t, store, runner, nil)

	err := w.processJob(context.Background(), &domain.JobMessage{JobID: testJobID})
	require.NoError(t, err)

	require.Len(t, runner.seen, 1)
	assert.Equal(t, "Vault", runner.seen[0].Name)
	assert.Equal(t, 2, runner.seen[0].Level)

	outcome := store.completed[testJobID]
	require.NotNil(t, outcome)
	assert.Equal(t, "Vault", outcome.Name)
	assert.Equal(t, "7", outcome.Seed)
	assert.Equal(t, "99", outcome.RemoteID)
	assert.Equal(t, 2, outcome.RoomCount)
	assert.Equal(t, 40, outcome.TotalXP)
	assert.Equal(t, []byte("map"), outcome.MapImage)
	assert.Equal(t, []string{"worker-test"}, store.writers)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(outcome.Result, &doc))
	assert.Contains(t, doc, "rooms")
	assert.NotContains(t, doc, "map_image")
}

func TestProcessJob_Failures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(store *fakeStore, runner *fakeRunner)
		wantErr     error
		wantRequeue bool
		wantStage   string
	}{
		{
			name:    "already claimed",
			setup:   func(store *fakeStore, runner *fakeRunner) { store.claimErr = domain.ErrJobAlreadyClaimed },
			wantErr: domain.ErrJobAlreadyClaimed,
		},
		{
			name:        "claim database error",
			setup:       func(store *fakeStore, runner *fakeRunner) { store.claimErr = errors.New("connection reset") },
			wantRequeue: true,
		},
		{
			name:      "stored request is not json",
			setup:     func(store *fakeStore, runner *fakeRunner) { store.request = json.RawMessage(`{`) },
			wantErr:   domain.ErrInvalidRequest,
			wantStage: dungeon.StageValidate,
		},
		{
			name: "pipeline failure",
			setup: func(store *fakeStore, runner *fakeRunner) {
				runner.err = dungeon.AtStage(dungeon.StagePoll, &dungeon.TransportError{Op: "fetch status", StatusCode: 502})
			},
			wantErr:   domain.ErrGenerationFailed,
			wantStage: dungeon.StagePoll,
		},
		{
			name:      "persist failure",
			setup:     func(store *fakeStore, runner *fakeRunner) { store.completeErr = errors.New("disk full") },
			wantErr:   domain.ErrGenerationFailed,
			wantStage: dungeon.StagePersist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			runner := &fakeRunner{}
			tt.setup(store, runner)
			w := newTestWorker(t, store, runner, nil)

			err := w.processJob(context.Background(), &domain.JobMessage{JobID: testJobID})

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
			assert.Equal(t, tt.wantRequeue, domain.IsTransient(err))

			var jobErr *domain.JobError
			require.True(t, errors.As(err, &jobErr))
			assert.Equal(t, testJobID, jobErr.JobID)
			assert.Equal(t, tt.wantStage, jobErr.Stage)
			assert.Contains(t, jobErr.Error(), testJobID)
			if tt.wantStage != "" {
				assert.Equal(t, tt.wantStage, store.failed[testJobID].stage)
			} else {
				assert.NotContains(t, store.failed, testJobID)
			}
		})
	}
}

func TestProcessJob_TakenOverBeforePersist(t *testing.T) {
	store := newFakeStore()
	store.completeErr = domain.ErrJobNotOwned
	w := newTestWorker(t, store, &fakeRunner{}, nil)

	err := w.processJob(context.Background(), &domain.JobMessage{JobID: testJobID})

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrJobNotOwned))
	assert.False(t, domain.IsTransient(err))
	assert.NotContains(t, store.failed, testJobID)
	assert.Equal(t, []string{"worker-test"}, store.writers)

	ack := &messageAck{}
	w.handleMessage(context.Background(), w.logger, &domain.JobMessage{JobID: testJobID, Delivery: ack})
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestHandleMessage_SettlesDelivery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ack := &messageAck{}
	w := newTestWorker(t, newFakeStore(), &fakeRunner{}, nil)
	w.handleMessage(context.Background(), logger, &domain.JobMessage{JobID: testJobID, Delivery: ack})
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)

	store := newFakeStore()
	store.claimErr = errors.New("connection reset")
	ack = &messageAck{}
	w = newTestWorker(t, store, &fakeRunner{}, nil)
	w.handleMessage(context.Background(), logger, &domain.JobMessage{JobID: testJobID, Delivery: ack})
	assert.True(t, ack.nacked)
	assert.True(t, ack.requeued)

	ack = &messageAck{}
	w = newTestWorker(t, newFakeStore(), &fakeRunner{err: errors.New("boom")}, nil)
	w.handleMessage(context.Background(), logger, &domain.JobMessage{JobID: testJobID, Delivery: ack})
	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)

	// a duplicate of a job another worker holds is acknowledged, not dead-lettered
	store = newFakeStore()
	store.claimErr = domain.ErrJobAlreadyClaimed
	ack = &messageAck{}
	w = newTestWorker(t, store, &fakeRunner{}, nil)
	w.handleMessage(context.Background(), logger, &domain.JobMessage{JobID: testJobID, Delivery: ack})
	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestWorker_StartDrainsQueue(t *testing.T) {
	ack := &recordingAck{}
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 3)}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{"job_id":"` + testJobID + `"}`)}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`not json`)}
	broker.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"job_id":"c9a7e1d4-0b2f-4e8a-9c3d-5f6a7b8c9d0e"}`)}
	close(broker.deliveries)

	store := newFakeStore()
	w := newTestWorker(t, store, &fakeRunner{}, broker)

	require.NoError(t, w.Start(context.Background()))
	w.Stop()

	assert.Equal(t, 2, broker.prefetch)
	assert.Equal(t, 2, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 0, ack.requeued)
	assert.Len(t, store.completed, 2)
}

func TestWorker_StartQosError(t *testing.T) {
	broker := &fakeBroker{qosErr: errors.New("channel closed")}
	w := newTestWorker(t, newFakeStore(), &fakeRunner{}, broker)

	assert.Error(t, w.Start(context.Background()))
}
