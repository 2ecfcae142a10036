package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/budget"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/catalog"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/extractor"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/poller"
)

type mockRemote struct {
	handle    domain.JobHandle
	submitErr error
	name      string
	nameErr   error

	submitted []domain.GenerationRequest
	nameCalls int
}

func (m *mockRemote) Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error) {
	m.submitted = append(m.submitted, req)
	if m.submitErr != nil {
		return domain.JobHandle{}, m.submitErr
	}
	return m.handle, nil
}

func (m *mockRemote) RandomName(ctx context.Context) (string, error) {
	m.nameCalls++
	return m.name, m.nameErr
}

type mockPoller struct {
	result *poller.Result
	err    error
	calls  int
}

func (m *mockPoller) Poll(ctx context.Context, handle domain.JobHandle) (*poller.Result, error) {
	m.calls++
	return m.result, m.err
}

type mockExtractor struct {
	extraction *extractor.Extraction
	err        error
	mapRef     string
	keyRef     string
}

func (m *mockExtractor) Extract(ctx context.Context, handle domain.JobHandle, mapRef, keyRef string) (*extractor.Extraction, error) {
	m.mapRef, m.keyRef = mapRef, keyRef
	return m.extraction, m.err
}

type mockPopulator struct {
	err   error
	calls int
}

func (m *mockPopulator) Populate(level int, rooms []domain.Room, src catalog.Source) ([]domain.Room, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for i := range rooms {
		rooms[i].Encounter = &domain.Encounter{Creatures: []domain.Creature{{Name: "Goblin", Level: level - 1, XP: 30}}, SpentXP: 30}
	}
	return rooms, nil
}

// spyBudgeter wraps the real budgeter and records its inputs
type spyBudgeter struct {
	inner     *budget.Budgeter
	calls     int
	roomCount int
}

func (s *spyBudgeter) Assign(level, partySize int, rooms []domain.Room, src budget.Source) ([]domain.Room, error) {
	s.calls++
	s.roomCount = len(rooms)
	return s.inner.Assign(level, partySize, rooms, src)
}

func testRooms(n int) []domain.Room {
	rooms := make([]domain.Room, n)
	for i := range rooms {
		rooms[i] = domain.Room{Fields: map[string]json.RawMessage{"id": json.RawMessage(fmt.Sprint(i + 1))}}
	}
	return rooms
}
