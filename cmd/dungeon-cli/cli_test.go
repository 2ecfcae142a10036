package main

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DUNGEON_CONFIG_PATH", "")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestBudgetCommand_Reproducible(t *testing.T) {
	first, err := execute(t, "budget", "--seed", "1234", "--rooms", "6", "--npc", "5")
	require.NoError(t, err)
	second, err := execute(t, "budget", "--seed", "1234", "--rooms", "6", "--npc", "5")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "seed 1234, level 1, party of 5")
	// header, six rooms and the total
	lines := strings.Split(strings.TrimSpace(first), "\n")
	assert.Len(t, lines, 9)
}

func TestBudgetCommand_Validation(t *testing.T) {
	_, err := execute(t, "budget", "--level", "0", "--seed", "1")
	assert.Error(t, err)

	_, err = execute(t, "budget", "--npc", "0", "--seed", "1")
	assert.Error(t, err)

	_, err = execute(t, "budget", "--rooms", "-1")
	assert.Error(t, err)
}

func TestRequestFlags_OnlySetFlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	var flags requestFlags
	flags.register(fs)
	require.NoError(t, fs.Parse([]string{"--level", "9", "--motif", "Undead", "--size", "Custom", "--cols", "40", "--rows", "30"}))

	req := domain.DefaultRequest()
	req.PartySize = 6
	req.Style = "Slate"
	flags.applyTo(fs, &req)

	assert.Equal(t, 9, req.Level)
	assert.Equal(t, "Undead", req.Motif)
	assert.Equal(t, "Custom", req.Size)
	assert.Equal(t, 40, req.MapCols)
	assert.Equal(t, 30, req.MapRows)
	assert.Equal(t, 6, req.PartySize)
	assert.Equal(t, "Slate", req.Style)
}

func TestRequestFlags_EveryFlagHasSetter(t *testing.T) {
	fs := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	var flags requestFlags
	flags.register(fs)

	count := 0
	fs.VisitAll(func(flag *pflag.Flag) {
		count++
		assert.Contains(t, requestFlagSetters, flag.Name)
	})
	assert.Equal(t, len(requestFlagSetters), count)
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newFakeDonjon(t *testing.T) *httptest.Server {
	t.Helper()
	mapPNG := pngBytes(t, color.Black)
	keyPNG := pngBytes(t, color.White)

	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/construct.cgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"auth":"tok","id":77}`))
	})
	mux.HandleFunc("/fantasy/dungeon/status.fcgi", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			_, _ = w.Write([]byte(`{"note":"Placing rooms"}`))
			return
		}
		_, _ = w.Write([]byte(`{"done":1,"html":"<img src=\"cache/map.png\"><img src=\"cache/key.png\">"}`))
	})
	mux.HandleFunc("/fantasy/dungeon/cache/map.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(mapPNG)
	})
	mux.HandleFunc("/fantasy/dungeon/cache/key.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(keyPNG)
	})
	mux.HandleFunc("/fantasy/dungeon/download/json.cgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"href":"cache/dungeon.json"}`))
	})
	mux.HandleFunc("/fantasy/dungeon/cache/dungeon.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"settings":{"name":"Crypt of Ash"},"rooms":[null,{"id":1,"size":"20x30"},{"id":2},{"id":3}]}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateCommand(t *testing.T) {
	srv := newFakeDonjon(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "config.yaml")
	config := "donjon:\n  base_url: " + srv.URL + "/fantasy/dungeon/\n  poll_interval: 1ms\n  max_poll_attempts: 5\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	outDir := filepath.Join(dir, "out")
	out, err := execute(t, "--config", configPath, "generate",
		"--name", "Crypt of Ash", "--seed", "99", "--level", "3", "--npc", "5",
		"--out", outDir, "--catalog", "../../internal/dungeon/catalog/testdata/creatures.json")
	require.NoError(t, err, out)

	assert.Contains(t, out, "Crypt of Ash (seed 99)")
	assert.Contains(t, out, "rooms: 3")

	for _, name := range []string{"crypt-of-ash_map.png", "crypt-of-ash_key.png", "crypt-of-ash.json"} {
		_, err := os.Stat(filepath.Join(outDir, name))
		assert.NoError(t, err, name)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "crypt-of-ash.json"))
	require.NoError(t, err)
	var doc struct {
		Request domain.GenerationRequest `json:"request"`
		Rooms   []map[string]any         `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 3, doc.Request.Level)
	require.Len(t, doc.Rooms, 3)
	for _, room := range doc.Rooms {
		assert.Contains(t, room, "difficulty_tier")
		assert.Contains(t, room, "xp_budget")
	}
}

func TestGenerateCommand_InvalidRequest(t *testing.T) {
	_, err := execute(t, "generate", "--level", "30", "--name", "x", "--seed", "1")
	assert.Error(t, err)
}
