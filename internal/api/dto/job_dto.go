package dto

import (
	"encoding/json"

	dungeon "github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// CreateDungeonRequest overrides the configured generation defaults; absent fields keep them
type CreateDungeonRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=200"`
	Level      *int    `json:"level" binding:"omitempty,min=1,max=20"`
	PartySize  *int    `json:"party_size" binding:"omitempty,min=1"`
	Motif      *string `json:"motif"`
	Seed       *string `json:"seed" binding:"omitempty,max=100"`
	Size       *string `json:"dungeon_size"`
	MapCols    *int    `json:"map_cols" binding:"omitempty,min=1"`
	MapRows    *int    `json:"map_rows" binding:"omitempty,min=1"`
	Layout     *string `json:"dungeon_layout"`
	Egress     *string `json:"egress"`
	RoomLayout *string `json:"room_layout"`
	RoomSize   *string `json:"room_size"`
	Polymorph  *string `json:"polymorph"`
	Doors      *string `json:"doors"`
	Corridors  *string `json:"corridors"`
	Deadends   *string `json:"deadends"`
	Stairs     *string `json:"stairs"`
	Style      *string `json:"map_style"`
	Grid       *string `json:"grid"`
}

// ApplyTo copies every set field onto req
func (r *CreateDungeonRequest) ApplyTo(req *dungeon.GenerationRequest) {
	setString(&req.Name, r.Name)
	setInt(&req.Level, r.Level)
	setInt(&req.PartySize, r.PartySize)
	setString(&req.Motif, r.Motif)
	setString(&req.Seed, r.Seed)
	setString(&req.Size, r.Size)
	setInt(&req.MapCols, r.MapCols)
	setInt(&req.MapRows, r.MapRows)
	setString(&req.Layout, r.Layout)
	setString(&req.Egress, r.Egress)
	setString(&req.RoomLayout, r.RoomLayout)
	setString(&req.RoomSize, r.RoomSize)
	setString(&req.Polymorph, r.Polymorph)
	setString(&req.Doors, r.Doors)
	setString(&req.Corridors, r.Corridors)
	setString(&req.Deadends, r.Deadends)
	setString(&req.Stairs, r.Stairs)
	setString(&req.Style, r.Style)
	setString(&req.Grid, r.Grid)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

type ListDungeonsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=PENDING RUNNING COMPLETED FAILED"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListDungeonsResponse struct {
	Dungeons   []DungeonDTO `json:"dungeons"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type ErrorDTO struct {
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

type DungeonDTO struct {
	JobID       string          `json:"job_id"`
	Status      string          `json:"status"`
	Name        string          `json:"name,omitempty"`
	Seed        string          `json:"seed,omitempty"`
	RemoteID    string          `json:"remote_id,omitempty"`
	Request     json.RawMessage `json:"request"`
	RoomCount   *int64          `json:"room_count,omitempty"`
	TotalXP     *int64          `json:"total_xp,omitempty"`
	Error       *ErrorDTO       `json:"error,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	MapURL      string          `json:"map_url,omitempty"`
	KeyURL      string          `json:"key_url,omitempty"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
	StartedAt   string          `json:"started_at,omitempty"`
	CompletedAt string          `json:"completed_at,omitempty"`
}
