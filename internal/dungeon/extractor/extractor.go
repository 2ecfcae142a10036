// Package extractor turns a finished generation job into images and structured rooms
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/cuongbtq/dungeon-forge/internal/dungeon/imaging"
)

// Fetcher downloads resources published by the generation service
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
	FetchJSON(ctx context.Context, ref string, v any) error
	DungeonDataURL(handle domain.JobHandle) string
}

// Extractor downloads and decodes the artifacts of a Done job
type Extractor struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// Extraction holds the artifacts of one finished job
type Extraction struct {
	MapImage []byte
	KeyImage []byte
	Dungeon  map[string]json.RawMessage
	// Rooms excludes the entrance pseudo-room
	Rooms []domain.Room
}

// New creates a new Extractor
func New(fetcher Fetcher, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Extractor{fetcher: fetcher, logger: logger}
}

// Extract downloads the map and key images and the dungeon data of a finished job
func (e *Extractor) Extract(ctx context.Context, handle domain.JobHandle, mapRef, keyRef string) (*Extraction, error) {
	mapImage, err := e.image(ctx, "map", mapRef)
	if err != nil {
		return nil, err
	}
	keyImage, err := e.image(ctx, "key", keyRef)
	if err != nil {
		return nil, err
	}

	dungeon, err := e.dungeonData(ctx, handle)
	if err != nil {
		return nil, err
	}

	rooms, err := Rooms(dungeon)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Job artifacts extracted",
		slog.String("job_id", handle.ID),
		slog.Int("map_bytes", len(mapImage)),
		slog.Int("key_bytes", len(keyImage)),
		slog.Int("rooms", len(rooms)),
	)

	return &Extraction{
		MapImage: mapImage,
		KeyImage: keyImage,
		Dungeon:  dungeon,
		Rooms:    rooms,
	}, nil
}

func (e *Extractor) image(ctx context.Context, kind, ref string) ([]byte, error) {
	raw, err := e.fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("download %s image: %w", kind, err)
	}
	img, err := imaging.ReencodePNG(raw)
	if err != nil {
		return nil, fmt.Errorf("%s image: %w", kind, err)
	}
	return img, nil
}

type dataLink struct {
	Href string `json:"href"`
}

// dungeonData follows the json.cgi indirection to the dungeon document
func (e *Extractor) dungeonData(ctx context.Context, handle domain.JobHandle) (map[string]json.RawMessage, error) {
	var link dataLink
	if err := e.fetcher.FetchJSON(ctx, e.fetcher.DungeonDataURL(handle), &link); err != nil {
		return nil, fmt.Errorf("locate dungeon data: %w", err)
	}
	if strings.TrimSpace(link.Href) == "" {
		return nil, &domain.ProtocolViolation{Reason: "dungeon data link has no href"}
	}

	var dungeon map[string]json.RawMessage
	if err := e.fetcher.FetchJSON(ctx, link.Href, &dungeon); err != nil {
		return nil, fmt.Errorf("download dungeon data: %w", err)
	}
	if dungeon == nil {
		return nil, &domain.DataShapeError{Reason: "dungeon data is not an object"}
	}
	return dungeon, nil
}

// Rooms decodes the rooms list of a dungeon document and drops rooms[0], the entrance pseudo-room.
// A missing or empty list is a data shape error; a list holding only the entrance yields no rooms.
func Rooms(dungeon map[string]json.RawMessage) ([]domain.Room, error) {
	raw, ok := dungeon["rooms"]
	if !ok {
		return nil, &domain.DataShapeError{Reason: "dungeon data has no rooms"}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &domain.DataShapeError{Reason: "rooms is not a list", Err: err}
	}
	if len(entries) == 0 {
		return nil, &domain.DataShapeError{Reason: "rooms list is empty"}
	}

	rooms := make([]domain.Room, 0, len(entries)-1)
	for i, entry := range entries[1:] {
		var room domain.Room
		if err := json.Unmarshal(entry, &room); err != nil {
			return nil, &domain.DataShapeError{Reason: fmt.Sprintf("room %d", i+1), Err: err}
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}
