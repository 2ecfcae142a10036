// Package output persists a generated dungeon as image and JSON files
package output

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

// Document is the JSON form of a generated dungeon
type Document struct {
	Request domain.GenerationRequest `json:"request"`
	JobID   string                   `json:"job_id,omitempty"`
	TotalXP int                      `json:"total_xp"`
	Rooms   []domain.Room            `json:"rooms"`
	// Dungeon is the remote document minus its rooms
	Dungeon  map[string]json.RawMessage `json:"dungeon,omitempty"`
	MapImage string                     `json:"map_image,omitempty"`
	KeyImage string                     `json:"key_image,omitempty"`
}

// NewDocument builds the document of result; embedImages inlines both PNGs as base64
func NewDocument(result *domain.DungeonResult, embedImages bool) *Document {
	doc := &Document{
		Request: result.Request,
		JobID:   result.Handle.ID,
		TotalXP: result.TotalXP(),
		Rooms:   result.Rooms,
	}
	if doc.Rooms == nil {
		doc.Rooms = []domain.Room{}
	}

	if len(result.Dungeon) > 0 {
		doc.Dungeon = make(map[string]json.RawMessage, len(result.Dungeon))
		for k, v := range result.Dungeon {
			if k == "rooms" {
				continue
			}
			doc.Dungeon[k] = v
		}
	}

	if embedImages {
		doc.MapImage = base64.StdEncoding.EncodeToString(result.MapImage)
		doc.KeyImage = base64.StdEncoding.EncodeToString(result.KeyImage)
	}
	return doc
}

// Encode renders the document of result as indented JSON
func Encode(result *domain.DungeonResult, embedImages bool) ([]byte, error) {
	data, err := json.MarshalIndent(NewDocument(result, embedImages), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode dungeon document: %w", err)
	}
	return data, nil
}

// Files lists the paths written for one dungeon
type Files struct {
	MapPath  string
	KeyPath  string
	DataPath string
}

// Writer writes dungeons into a directory
type Writer struct {
	dir         string
	embedImages bool
	logger      *slog.Logger
}

// NewWriter creates a new Writer
func NewWriter(dir string, embedImages bool, logger *slog.Logger) *Writer {
	if dir == "" {
		dir = "."
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Writer{dir: dir, embedImages: embedImages, logger: logger}
}

// Write stores <slug>_map.png, <slug>_key.png and <slug>.json, named after the dungeon
func (w *Writer) Write(result *domain.DungeonResult) (*Files, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	slug := Slug(result.Request.Name)
	files := &Files{
		MapPath:  filepath.Join(w.dir, slug+"_map.png"),
		KeyPath:  filepath.Join(w.dir, slug+"_key.png"),
		DataPath: filepath.Join(w.dir, slug+".json"),
	}

	data, err := Encode(result, w.embedImages)
	if err != nil {
		return nil, err
	}

	for path, content := range map[string][]byte{
		files.MapPath:  result.MapImage,
		files.KeyPath:  result.KeyImage,
		files.DataPath: data,
	} {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	w.logger.Info("Dungeon written",
		slog.String("dir", w.dir),
		slog.String("slug", slug),
		slog.Int("rooms", len(result.Rooms)),
	)

	return files, nil
}

// Slug turns a dungeon name into a lowercase file name stem
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "dungeon"
	}
	return slug
}
