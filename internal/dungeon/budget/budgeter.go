// Package budget assigns a difficulty tier and XP budget to every room
package budget

import (
	"fmt"
	"log/slog"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// Source is the random source the budgeter draws tiers from
type Source interface {
	Intn(n int) int
}

// tierCount is the number of tiers drawn uniformly per room
const tierCount = domain.MaxTier + 1

// xpTable holds base XP and per-extra-player XP for each tier
var xpTable = [tierCount]struct {
	base      int
	perPlayer int
}{
	{base: 60, perPlayer: 20},
	{base: 80, perPlayer: 20},
	{base: 120, perPlayer: 30},
	{base: 160, perPlayer: 40},
}

// XPBudget returns the XP budget of tier for a party of partySize
func XPBudget(tier, partySize int) (int, error) {
	if tier < domain.MinTier || tier > domain.MaxTier {
		return 0, fmt.Errorf("tier %d out of range [%d,%d]", tier, domain.MinTier, domain.MaxTier)
	}
	if err := domain.ValidatePartySize(partySize); err != nil {
		return 0, err
	}
	row := xpTable[tier]
	return row.base + (partySize-domain.BaselinePartySize)*row.perPlayer, nil
}

// Budgeter assigns encounter budgets to rooms
type Budgeter struct {
	logger *slog.Logger
}

// NewBudgeter creates a new Budgeter
func NewBudgeter(logger *slog.Logger) *Budgeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Budgeter{logger: logger}
}

// Assign draws one tier per room, in room order, from src and sets each room's budget.
// level is validated but does not change the budget. rooms is updated in place and returned.
func (b *Budgeter) Assign(level, partySize int, rooms []domain.Room, src Source) ([]domain.Room, error) {
	if level < domain.MinLevel || level > domain.MaxLevel {
		return nil, domain.NewValidationError("level", level, "must be between 1 and 20")
	}
	if err := domain.ValidatePartySize(partySize); err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return rooms, nil
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required")
	}

	for i := range rooms {
		tier := src.Intn(tierCount)
		xp, err := XPBudget(tier, partySize)
		if err != nil {
			return nil, err
		}
		rooms[i].Budget = &domain.EncounterBudget{Tier: tier, XP: xp}
	}

	b.logger.Debug("Rooms budgeted",
		slog.Int("rooms", len(rooms)),
		slog.Int("party_size", partySize),
		slog.Int("level", level),
	)

	return rooms, nil
}

// Tiers returns the tier sequence of rooms, -1 for unbudgeted rooms
func Tiers(rooms []domain.Room) []int {
	tiers := make([]int, len(rooms))
	for i, room := range rooms {
		if room.Budget == nil {
			tiers[i] = -1
			continue
		}
		tiers[i] = room.Budget.Tier
	}
	return tiers
}
