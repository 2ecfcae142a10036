package domain

import (
	"net/url"
	"slices"
	"strconv"
)

const (
	// MinLevel is the lowest accepted dungeon level
	MinLevel = 1
	// MaxLevel is the highest accepted dungeon level
	MaxLevel = 20
	// BaselinePartySize is the party size the XP table is written for
	BaselinePartySize = 4
)

// Permitted values for each enumerated generation parameter.
// The first entry of every list is not necessarily the default; see DefaultRequest.
var (
	DungeonSizes   = []string{"Fine", "Diminutive", "Tiny", "Small", "Medium", "Large", "Huge", "Gargantuan", "Colossal", "Custom"}
	DungeonLayouts = []string{"Square", "Rectangle", "Box", "Cross", "Dagger", "Saltire", "Keep", "Hexagon", "Round", "Cavernous"}
	Egresses       = []string{"No", "Yes", "Many", "Tiling"}
	RoomLayouts    = []string{"Sparse", "Scattered", "Dense", "Symmetric"}
	RoomSizes      = []string{"Small", "Medium", "Large", "Huge", "Gargantuan", "Colossal"}
	Polymorphs     = []string{"No", "Yes", "Many"}
	DoorSets       = []string{"None", "Basic", "Secure", "Standard", "Deathtrap"}
	CorridorTypes  = []string{"Labyrinth", "Errant", "Straight"}
	DeadendOptions = []string{"None", "Some", "All"}
	StairOptions   = []string{"No", "Yes", "Many"}
	MapStyles      = []string{"Standard", "Classic", "Crosshatch", "GraphPaper", "Parchment", "Marble", "Sandstone", "Slate", "Aquatic", "Infernal", "Glacial", "Wooden", "Asylum", "Steampunk", "Gamma"}
	Grids          = []string{"None", "Square", "Hex", "VertHex"}
	Motifs         = []string{"None", "Abandoned", "Aberrant", "Giant", "Undead", "Vermin", "Aquatic", "Desert", "Underdark", "Arcane", "Fire", "Cold", "Abyssal", "Infernal"}
)

// CustomDungeonSize switches the generator to MapCols x MapRows
const CustomDungeonSize = "Custom"

// GenerationRequest holds every dungeon, room and map parameter of one generation.
// Name and Seed may be empty until defaults are applied.
type GenerationRequest struct {
	Name       string `json:"name" yaml:"name"`
	Level      int    `json:"level" yaml:"level"`
	PartySize  int    `json:"party_size" yaml:"party_size"`
	Motif      string `json:"motif" yaml:"motif"`
	Seed       string `json:"seed" yaml:"seed"`
	Size       string `json:"dungeon_size" yaml:"dungeon_size"`
	MapCols    int    `json:"map_cols,omitempty" yaml:"map_cols"`
	MapRows    int    `json:"map_rows,omitempty" yaml:"map_rows"`
	Layout     string `json:"dungeon_layout" yaml:"dungeon_layout"`
	Egress     string `json:"egress" yaml:"egress"`
	RoomLayout string `json:"room_layout" yaml:"room_layout"`
	RoomSize   string `json:"room_size" yaml:"room_size"`
	Polymorph  string `json:"polymorph" yaml:"polymorph"`
	Doors      string `json:"doors" yaml:"doors"`
	Corridors  string `json:"corridors" yaml:"corridors"`
	Deadends   string `json:"deadends" yaml:"deadends"`
	Stairs     string `json:"stairs" yaml:"stairs"`
	Style      string `json:"map_style" yaml:"map_style"`
	Grid       string `json:"grid" yaml:"grid"`
}

// DefaultRequest returns a request with the generator's default parameters
func DefaultRequest() GenerationRequest {
	return GenerationRequest{
		Level:      1,
		PartySize:  BaselinePartySize,
		Motif:      "None",
		Size:       "Medium",
		Layout:     "Rectangle",
		Egress:     "No",
		RoomLayout: "Scattered",
		RoomSize:   "Medium",
		Polymorph:  "Yes",
		Doors:      "Standard",
		Corridors:  "Errant",
		Deadends:   "Some",
		Stairs:     "Yes",
		Style:      "Standard",
		Grid:       "Square",
	}
}

// Validate checks the request before anything is sent to the remote service
func (r *GenerationRequest) Validate() error {
	if r.Level < MinLevel || r.Level > MaxLevel {
		return NewValidationError("level", r.Level, "must be between 1 and 20")
	}

	if err := ValidatePartySize(r.PartySize); err != nil {
		return err
	}

	choices := []struct {
		field   string
		value   string
		allowed []string
	}{
		{"motif", r.Motif, Motifs},
		{"dungeon_size", r.Size, DungeonSizes},
		{"dungeon_layout", r.Layout, DungeonLayouts},
		{"egress", r.Egress, Egresses},
		{"room_layout", r.RoomLayout, RoomLayouts},
		{"room_size", r.RoomSize, RoomSizes},
		{"polymorph", r.Polymorph, Polymorphs},
		{"doors", r.Doors, DoorSets},
		{"corridors", r.Corridors, CorridorTypes},
		{"deadends", r.Deadends, DeadendOptions},
		{"stairs", r.Stairs, StairOptions},
		{"map_style", r.Style, MapStyles},
		{"grid", r.Grid, Grids},
	}
	for _, c := range choices {
		if !slices.Contains(c.allowed, c.value) {
			return NewValidationError(c.field, c.value, "unsupported value")
		}
	}

	if r.Size == CustomDungeonSize {
		if r.MapCols <= 0 {
			return NewValidationError("map_cols", r.MapCols, "must be positive for a custom dungeon size")
		}
		if r.MapRows <= 0 {
			return NewValidationError("map_rows", r.MapRows, "must be positive for a custom dungeon size")
		}
	}

	return nil
}

// ValidatePartySize rejects parties with fewer than one player
func ValidatePartySize(partySize int) error {
	if partySize < 1 {
		return NewValidationError("party_size", partySize, "must be at least 1")
	}
	return nil
}

// Query renders the request as construct.cgi query parameters
func (r *GenerationRequest) Query() url.Values {
	q := url.Values{}
	q.Set("name", r.Name)
	q.Set("level", strconv.Itoa(r.Level))
	q.Set("infest", "")
	q.Set("n_pc", strconv.Itoa(r.PartySize))
	// the service takes an empty motif for "None"
	if r.Motif == "None" {
		q.Set("motif", "")
	} else {
		q.Set("motif", r.Motif)
	}
	q.Set("seed", r.Seed)
	q.Set("dungeon_size", r.Size)
	q.Set("map_cols", optionalInt(r.MapCols))
	q.Set("map_rows", optionalInt(r.MapRows))
	q.Set("dungeon_layout", r.Layout)
	q.Set("peripheral_egress", r.Egress)
	q.Set("room_layout", r.RoomLayout)
	q.Set("room_size", r.RoomSize)
	q.Set("room_polymorph", r.Polymorph)
	q.Set("door_set", r.Doors)
	q.Set("corridor_layout", r.Corridors)
	q.Set("remove_deadends", r.Deadends)
	q.Set("add_stairs", r.Stairs)
	q.Set("image_size", "")
	q.Set("map_style", r.Style)
	q.Set("grid", r.Grid)
	return q
}

func optionalInt(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}
