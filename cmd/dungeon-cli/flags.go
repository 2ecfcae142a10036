package main

import (
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/spf13/pflag"
)

// requestFlags binds every generation parameter to a flag
type requestFlags struct {
	values domain.GenerationRequest
}

type requestSetter func(dst, src *domain.GenerationRequest)

// requestFlagSetters copies a flag's value onto the configured request
var requestFlagSetters = map[string]requestSetter{
	"name":        func(dst, src *domain.GenerationRequest) { dst.Name = src.Name },
	"level":       func(dst, src *domain.GenerationRequest) { dst.Level = src.Level },
	"npc":         func(dst, src *domain.GenerationRequest) { dst.PartySize = src.PartySize },
	"motif":       func(dst, src *domain.GenerationRequest) { dst.Motif = src.Motif },
	"seed":        func(dst, src *domain.GenerationRequest) { dst.Seed = src.Seed },
	"size":        func(dst, src *domain.GenerationRequest) { dst.Size = src.Size },
	"cols":        func(dst, src *domain.GenerationRequest) { dst.MapCols = src.MapCols },
	"rows":        func(dst, src *domain.GenerationRequest) { dst.MapRows = src.MapRows },
	"layout":      func(dst, src *domain.GenerationRequest) { dst.Layout = src.Layout },
	"egress":      func(dst, src *domain.GenerationRequest) { dst.Egress = src.Egress },
	"room-layout": func(dst, src *domain.GenerationRequest) { dst.RoomLayout = src.RoomLayout },
	"room-size":   func(dst, src *domain.GenerationRequest) { dst.RoomSize = src.RoomSize },
	"polymorph":   func(dst, src *domain.GenerationRequest) { dst.Polymorph = src.Polymorph },
	"doors":       func(dst, src *domain.GenerationRequest) { dst.Doors = src.Doors },
	"corridors":   func(dst, src *domain.GenerationRequest) { dst.Corridors = src.Corridors },
	"deadends":    func(dst, src *domain.GenerationRequest) { dst.Deadends = src.Deadends },
	"stairs":      func(dst, src *domain.GenerationRequest) { dst.Stairs = src.Stairs },
	"style":       func(dst, src *domain.GenerationRequest) { dst.Style = src.Style },
	"grid":        func(dst, src *domain.GenerationRequest) { dst.Grid = src.Grid },
}

func (f *requestFlags) register(fs *pflag.FlagSet) {
	defaults := domain.DefaultRequest()
	v := &f.values

	fs.StringVar(&v.Name, "name", "", "dungeon name (default: random from the name service)")
	fs.IntVar(&v.Level, "level", defaults.Level, "party level, 1-20")
	fs.IntVar(&v.PartySize, "npc", defaults.PartySize, "number of player characters")
	fs.StringVar(&v.Motif, "motif", defaults.Motif, "dungeon motif")
	fs.StringVar(&v.Seed, "seed", "", "generation seed (default: current unix time)")
	fs.StringVar(&v.Size, "size", defaults.Size, "dungeon size; Custom needs --cols and --rows")
	fs.IntVar(&v.MapCols, "cols", 0, "map columns for a Custom size")
	fs.IntVar(&v.MapRows, "rows", 0, "map rows for a Custom size")
	fs.StringVar(&v.Layout, "layout", defaults.Layout, "dungeon layout")
	fs.StringVar(&v.Egress, "egress", defaults.Egress, "peripheral egress")
	fs.StringVar(&v.RoomLayout, "room-layout", defaults.RoomLayout, "room layout")
	fs.StringVar(&v.RoomSize, "room-size", defaults.RoomSize, "room size")
	fs.StringVar(&v.Polymorph, "polymorph", defaults.Polymorph, "polymorph rooms")
	fs.StringVar(&v.Doors, "doors", defaults.Doors, "door set")
	fs.StringVar(&v.Corridors, "corridors", defaults.Corridors, "corridor layout")
	fs.StringVar(&v.Deadends, "deadends", defaults.Deadends, "remove deadends")
	fs.StringVar(&v.Stairs, "stairs", defaults.Stairs, "add stairs")
	fs.StringVar(&v.Style, "style", defaults.Style, "map style")
	fs.StringVar(&v.Grid, "grid", defaults.Grid, "map grid")
}

// applyTo overrides dst with every flag the user set; unset flags keep the configured value
func (f *requestFlags) applyTo(fs *pflag.FlagSet, dst *domain.GenerationRequest) {
	fs.Visit(func(flag *pflag.Flag) {
		if set, ok := requestFlagSetters[flag.Name]; ok {
			set(dst, &f.values)
		}
	})
}
