package catalog

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// Source is the random source used to pick creatures
type Source interface {
	Intn(n int) int
}

// Populator fills budgeted rooms with creatures from a catalog
type Populator struct {
	catalog *Catalog
	logger  *slog.Logger
}

// NewPopulator creates a new Populator
func NewPopulator(catalog *Catalog, logger *slog.Logger) *Populator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Populator{catalog: catalog, logger: logger}
}

// Populate picks random affordable creatures for every budgeted room until nothing else fits.
// Rooms without a budget are left untouched.
func (p *Populator) Populate(level int, rooms []domain.Room, src Source) ([]domain.Room, error) {
	if level < domain.MinLevel || level > domain.MaxLevel {
		return nil, domain.NewValidationError("level", level, fmt.Sprintf("must be between %d and %d", domain.MinLevel, domain.MaxLevel))
	}
	if len(rooms) == 0 {
		return rooms, nil
	}
	if src == nil {
		return nil, fmt.Errorf("random source is required")
	}

	for i := range rooms {
		if rooms[i].Budget == nil {
			continue
		}

		encounter := &domain.Encounter{Creatures: []domain.Creature{}}
		remaining := rooms[i].Budget.XP
		for {
			candidates := p.catalog.Lookup(level, remaining)
			if len(candidates) == 0 {
				break
			}
			pick := candidates[src.Intn(len(candidates))]
			encounter.Creatures = append(encounter.Creatures, domain.Creature{
				Name:   pick.Name,
				Level:  pick.Level,
				XP:     pick.XP,
				Traits: pick.Traits,
			})
			encounter.SpentXP += pick.XP
			remaining -= pick.XP
		}
		rooms[i].Encounter = encounter

		p.logger.Debug("Room populated",
			slog.String("room_id", rooms[i].ID()),
			slog.Int("xp_budget", rooms[i].Budget.XP),
			slog.Int("spent_xp", encounter.SpentXP),
			slog.Int("creatures", len(encounter.Creatures)),
		)
	}

	return rooms, nil
}
