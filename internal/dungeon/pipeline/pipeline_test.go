package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/budget"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/extractor"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/poller"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	remote    *mockRemote
	poller    *mockPoller
	extractor *mockExtractor
	budgeter  *spyBudgeter
	populator *mockPopulator
}

func newFixture(rooms int) *fixture {
	return &fixture{
		remote: &mockRemote{handle: domain.JobHandle{Auth: "auth", ID: "99"}, name: "The Drowned Crypt"},
		poller: &mockPoller{result: &poller.Result{State: poller.StateDone, Attempts: 3, MapRef: "/m.png", KeyRef: "/k.png"}},
		extractor: &mockExtractor{extraction: &extractor.Extraction{
			MapImage: []byte("map"),
			KeyImage: []byte("key"),
			Rooms:    testRooms(rooms),
		}},
		budgeter: &spyBudgeter{inner: budget.NewBudgeter(nil)},
	}
}

func (f *fixture) pipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := &Config{
		Remote:    f.remote,
		Poller:    f.poller,
		Extractor: f.extractor,
		Budgeter:  f.budgeter,
		Now:       func() time.Time { return time.Unix(1700000000, 0) },
	}
	if f.populator != nil {
		cfg.Populator = f.populator
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestNew_RequiresCollaborators(t *testing.T) {
	f := newFixture(1)
	_, err := New(&Config{Poller: f.poller, Extractor: f.extractor, Budgeter: f.budgeter})
	assert.Error(t, err)
	_, err = New(&Config{Remote: f.remote, Extractor: f.extractor, Budgeter: f.budgeter})
	assert.Error(t, err)
	_, err = New(&Config{Remote: f.remote, Poller: f.poller, Budgeter: f.budgeter})
	assert.Error(t, err)
	_, err = New(&Config{Remote: f.remote, Poller: f.poller, Extractor: f.extractor})
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	f := newFixture(3)
	req := domain.DefaultRequest()
	req.Seed = "42"
	req.PartySize = 4

	result, err := f.pipeline(t).Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "The Drowned Crypt", result.Request.Name)
	assert.Equal(t, "42", result.Request.Seed)
	assert.Equal(t, domain.JobHandle{Auth: "auth", ID: "99"}, result.Handle)
	assert.Equal(t, "/m.png", f.extractor.mapRef)
	assert.Equal(t, "/k.png", f.extractor.keyRef)
	assert.Equal(t, []byte("map"), result.MapImage)
	require.Len(t, result.Rooms, 3)

	// the tier sequence matches a fresh source for the same seed
	want, err := budget.NewBudgeter(nil).Assign(1, 4, testRooms(3), budget.NewSource("42"))
	require.NoError(t, err)
	assert.Equal(t, budget.Tiers(want), budget.Tiers(result.Rooms))
	for _, room := range result.Rooms {
		assert.Nil(t, room.Encounter)
	}

	require.Len(t, f.remote.submitted, 1)
	assert.Equal(t, "The Drowned Crypt", f.remote.submitted[0].Name)
}

func TestRun_Reproducible(t *testing.T) {
	req := domain.DefaultRequest()
	req.Name = "Fixed"
	req.Seed = "42"

	first, err := newFixture(5).pipeline(t).Run(context.Background(), req)
	require.NoError(t, err)
	second, err := newFixture(5).pipeline(t).Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, budget.Tiers(first.Rooms), budget.Tiers(second.Rooms))
}

func TestRun_DefaultsSeedFromClock(t *testing.T) {
	f := newFixture(1)
	req := domain.DefaultRequest()
	req.Name = "Named"

	result, err := f.pipeline(t).Run(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "1700000000", result.Request.Seed)
	assert.Equal(t, 0, f.remote.nameCalls, "a supplied name skips the name service")
}

func TestRun_WithPopulator(t *testing.T) {
	f := newFixture(2)
	f.populator = &mockPopulator{}

	result, err := f.pipeline(t).Run(context.Background(), domain.DefaultRequest())

	require.NoError(t, err)
	assert.Equal(t, 1, f.populator.calls)
	for _, room := range result.Rooms {
		require.NotNil(t, room.Budget)
		require.NotNil(t, room.Encounter)
	}
}

func TestRun_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *domain.GenerationRequest)
	}{
		{name: "level zero", mutate: func(r *domain.GenerationRequest) { r.Level = 0 }},
		{name: "level 21", mutate: func(r *domain.GenerationRequest) { r.Level = 21 }},
		{name: "party of zero", mutate: func(r *domain.GenerationRequest) { r.PartySize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(3)
			req := domain.DefaultRequest()
			tt.mutate(&req)

			_, err := f.pipeline(t).Run(context.Background(), req)

			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrValidation))
			assert.Equal(t, domain.StageValidate, domain.StageOf(err))
			assert.Empty(t, f.remote.submitted)
			assert.Equal(t, 0, f.remote.nameCalls)
			assert.Equal(t, 0, f.poller.calls)
			assert.Equal(t, 0, f.budgeter.calls)
		})
	}
}

func TestRun_StageErrors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(f *fixture)
		wantStage string
		target    error
	}{
		{
			name:      "name service down",
			mutate:    func(f *fixture) { f.remote.nameErr = &domain.TransportError{Op: "fetch random name", StatusCode: 500} },
			wantStage: domain.StageDefaults,
			target:    domain.ErrTransport,
		},
		{
			name:      "submit rejected",
			mutate:    func(f *fixture) { f.remote.submitErr = &domain.TransportError{Op: "submit generation", StatusCode: 503} },
			wantStage: domain.StageSubmit,
			target:    domain.ErrTransport,
		},
		{
			name:      "poll protocol violation",
			mutate:    func(f *fixture) { f.poller.result, f.poller.err = nil, &domain.ProtocolViolation{Reason: "bad status"} },
			wantStage: domain.StagePoll,
			target:    domain.ErrProtocol,
		},
		{
			name:      "rooms missing",
			mutate:    func(f *fixture) { f.extractor.extraction, f.extractor.err = nil, &domain.DataShapeError{Reason: "no rooms"} },
			wantStage: domain.StageExtract,
			target:    domain.ErrDataShape,
		},
		{
			name: "populate fails",
			mutate: func(f *fixture) {
				f.populator = &mockPopulator{err: errors.New("catalog exhausted")}
			},
			wantStage: domain.StagePopulate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(2)
			tt.mutate(f)

			_, err := f.pipeline(t).Run(context.Background(), domain.DefaultRequest())

			require.Error(t, err)
			assert.Equal(t, tt.wantStage, domain.StageOf(err))
			assert.Contains(t, err.Error(), tt.wantStage+" stage failed")
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target))
			}
		})
	}
}

func TestRun_EmptyRoomsAfterEntrance(t *testing.T) {
	f := newFixture(0)

	result, err := f.pipeline(t).Run(context.Background(), domain.DefaultRequest())

	require.NoError(t, err)
	assert.Empty(t, result.Rooms)
	assert.Equal(t, 0, result.TotalXP())
}

func TestRun_PollTimeout(t *testing.T) {
	f := newFixture(1)
	var deadline time.Time
	var hasDeadline bool
	p, err := New(&Config{
		Remote: f.remote,
		Poller: pollFunc(func(ctx context.Context, handle domain.JobHandle) (*poller.Result, error) {
			deadline, hasDeadline = ctx.Deadline()
			<-ctx.Done()
			return &poller.Result{State: poller.StateFailed}, ctx.Err()
		}),
		Extractor:   f.extractor,
		Budgeter:    f.budgeter,
		PollTimeout: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = p.Run(context.Background(), domain.DefaultRequest())

	require.Error(t, err)
	assert.True(t, hasDeadline)
	assert.False(t, deadline.IsZero())
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, domain.StagePoll, domain.StageOf(err))
	assert.Equal(t, 0, f.budgeter.calls)
}

type pollFunc func(ctx context.Context, handle domain.JobHandle) (*poller.Result, error)

func (f pollFunc) Poll(ctx context.Context, handle domain.JobHandle) (*poller.Result, error) {
	return f(ctx, handle)
}
