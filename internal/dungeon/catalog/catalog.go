// Package catalog selects creatures that fit a room's encounter budget
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// Creature is one monster entry in the catalog file
type Creature struct {
	Name   string   `json:"name"`
	Level  int      `json:"level"`
	Traits []string `json:"traits,omitempty"`
	Source string   `json:"source,omitempty"`
}

// Candidate is a creature priced for a given party level
type Candidate struct {
	Creature
	XP int
}

// xpByLevelDelta maps creature level minus party level to the creature's XP cost
var xpByLevelDelta = map[int]int{
	-4: 10,
	-3: 15,
	-2: 20,
	-1: 30,
	0:  40,
	1:  60,
	2:  80,
	3:  120,
	4:  160,
}

// XPCost returns the XP a creature costs against a party of partyLevel.
// Creatures more than four levels away are not priced.
func XPCost(partyLevel, creatureLevel int) (int, bool) {
	xp, ok := xpByLevelDelta[creatureLevel-partyLevel]
	return xp, ok
}

// Catalog is an immutable list of creatures
type Catalog struct {
	creatures []Creature
}

// New creates a catalog from creatures, rejecting unnamed entries
func New(creatures []Creature) (*Catalog, error) {
	out := make([]Creature, 0, len(creatures))
	for i, c := range creatures {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			return nil, &domain.DataShapeError{Reason: fmt.Sprintf("creature %d has no name", i)}
		}
		out = append(out, c)
	}
	return &Catalog{creatures: out}, nil
}

// Parse decodes a JSON array of creatures
func Parse(data []byte) (*Catalog, error) {
	var creatures []Creature
	if err := json.Unmarshal(data, &creatures); err != nil {
		return nil, &domain.DataShapeError{Reason: "catalog is not a list of creatures", Err: err}
	}
	return New(creatures)
}

// Load reads a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Len returns the number of creatures
func (c *Catalog) Len() int {
	return len(c.creatures)
}

// Lookup returns, in catalog order, the creatures priced for partyLevel whose cost fits xpBudget
func (c *Catalog) Lookup(partyLevel, xpBudget int) []Candidate {
	var out []Candidate
	for _, creature := range c.creatures {
		xp, ok := XPCost(partyLevel, creature.Level)
		if !ok || xp > xpBudget {
			continue
		}
		out = append(out, Candidate{Creature: creature, XP: xp})
	}
	return out
}
