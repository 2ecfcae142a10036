package domain

import (
	"encoding/json"
	"fmt"
)

const (
	// MinTier is the easiest difficulty tier
	MinTier = 0
	// MaxTier is the hardest difficulty tier
	MaxTier = 3
)

// EncounterBudget is the difficulty tier and XP allowance of one room
type EncounterBudget struct {
	Tier int `json:"difficulty_tier"`
	XP   int `json:"xp_budget"`
}

// Creature is one monster placed in a room
type Creature struct {
	Name   string   `json:"name"`
	Level  int      `json:"level"`
	XP     int      `json:"xp"`
	Traits []string `json:"traits,omitempty"`
}

// Encounter is the set of creatures chosen for a room and the XP they spend
type Encounter struct {
	Creatures []Creature `json:"creatures"`
	SpentXP   int        `json:"spent_xp"`
}

// Room keeps the remote room record untouched and adds budgeting fields.
// Only the budgeter sets Budget; only the catalog populator sets Encounter.
type Room struct {
	Fields    map[string]json.RawMessage
	Budget    *EncounterBudget
	Encounter *Encounter
}

// ID returns the room id reported by the remote service, if any
func (r *Room) ID() string {
	raw, ok := r.Fields["id"]
	if !ok {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// MarshalJSON writes the remote fields plus difficulty_tier, xp_budget and encounter
func (r Room) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+3)
	for k, v := range r.Fields {
		out[k] = v
	}
	if r.Budget != nil {
		out["difficulty_tier"] = r.Budget.Tier
		out["xp_budget"] = r.Budget.XP
	}
	if r.Encounter != nil {
		out["encounter"] = r.Encounter
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a remote room record; null becomes an empty room
func (r *Room) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("room is not an object: %w", err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	budget := &EncounterBudget{}
	hasTier, hasXP := false, false
	if v, ok := fields["difficulty_tier"]; ok {
		if err := json.Unmarshal(v, &budget.Tier); err == nil {
			hasTier = true
		}
		delete(fields, "difficulty_tier")
	}
	if v, ok := fields["xp_budget"]; ok {
		if err := json.Unmarshal(v, &budget.XP); err == nil {
			hasXP = true
		}
		delete(fields, "xp_budget")
	}
	if hasTier && hasXP {
		r.Budget = budget
	}
	if v, ok := fields["encounter"]; ok {
		var enc Encounter
		if err := json.Unmarshal(v, &enc); err == nil {
			r.Encounter = &enc
		}
		delete(fields, "encounter")
	}

	r.Fields = fields
	return nil
}

// DungeonResult is everything one generation produced
type DungeonResult struct {
	Request  GenerationRequest          `json:"request"`
	Handle   JobHandle                  `json:"-"`
	MapImage []byte                     `json:"-"`
	KeyImage []byte                     `json:"-"`
	Dungeon  map[string]json.RawMessage `json:"-"`
	Rooms    []Room                     `json:"rooms"`
}

// TotalXP sums the XP budget of every budgeted room
func (d *DungeonResult) TotalXP() int {
	total := 0
	for _, room := range d.Rooms {
		if room.Budget != nil {
			total += room.Budget.XP
		}
	}
	return total
}
