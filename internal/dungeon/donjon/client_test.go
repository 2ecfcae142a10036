package donjon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Options{
		BaseURL: srv.URL + "/fantasy/dungeon",
		NameURL: srv.URL + "/fantasy/random/rpc-fantasy.fcgi?type=Dungeon%20Name&n=1",
	})
	require.NoError(t, err)
	return client, srv
}

func TestNewClient(t *testing.T) {
	client, err := NewClient(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, client.baseURL.String())
	assert.Equal(t, DefaultNameURL, client.nameURL)

	_, err = NewClient(Options{BaseURL: "/relative/only"})
	assert.Error(t, err)
}

func TestClient_Submit(t *testing.T) {
	var gotQuery map[string][]string
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/construct.cgi", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"auth":"abc123","id":9001}`))
	})
	client, _ := newTestClient(t, mux)

	req := domain.DefaultRequest()
	req.Name = "Crypt of Ash"
	req.Seed = "42"

	handle, err := client.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, domain.JobHandle{Auth: "abc123", ID: "9001"}, handle)
	assert.Equal(t, []string{"Crypt of Ash"}, gotQuery["name"])
	assert.Equal(t, []string{"42"}, gotQuery["seed"])
}

func TestClient_Submit_StringID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/construct.cgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"auth":"abc123","id":"d-17"}`))
	})
	client, _ := newTestClient(t, mux)

	handle, err := client.Submit(context.Background(), domain.DefaultRequest())
	require.NoError(t, err)
	assert.Equal(t, "d-17", handle.ID)
}

func TestClient_Submit_ProtocolViolation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing auth", body: `{"id":1}`},
		{name: "missing id", body: `{"auth":"x"}`},
		{name: "not json", body: `<html>busy</html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/fantasy/dungeon/construct.cgi", func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			client, _ := newTestClient(t, mux)

			_, err := client.Submit(context.Background(), domain.DefaultRequest())
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrProtocol))
		})
	}
}

func TestClient_FetchStatus(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/status.fcgi", func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "abc", r.URL.Query().Get("auth"))
		assert.Equal(t, "7", r.URL.Query().Get("id"))
		if calls == 1 {
			_, _ = w.Write([]byte(`{"note":"Building corridors"}`))
			return
		}
		_, _ = w.Write([]byte(`{"done":1,"html":"<img src=\"/m.png\"><img src=\"/k.png\">"}`))
	})
	client, _ := newTestClient(t, mux)
	handle := domain.JobHandle{Auth: "abc", ID: "7"}

	status, err := client.FetchStatus(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, domain.Pending{Note: "Building corridors"}, status)

	status, err = client.FetchStatus(context.Background(), handle)
	require.NoError(t, err)
	done, ok := status.(domain.Done)
	require.True(t, ok)
	assert.Contains(t, done.HTML, "/k.png")
}

func TestClient_TransportError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/status.fcgi", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	client, _ := newTestClient(t, mux)

	_, err := client.FetchStatus(context.Background(), domain.JobHandle{Auth: "a", ID: "1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))

	var te *domain.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusServiceUnavailable, te.StatusCode)
}

func TestClient_OversizedBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/cache/map.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	})
	client, _ := newTestClient(t, mux)

	client.maxBody = 10
	body, err := client.Fetch(context.Background(), "cache/map.png")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(body))

	client.maxBody = 9
	_, err = client.Fetch(context.Background(), "cache/map.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTransport))
	assert.Contains(t, err.Error(), "exceeds 9 bytes")
}

func TestClient_Fetch_ResolvesReferences(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/cache/map.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("absolute-path"))
	})
	mux.HandleFunc("/fantasy/dungeon/cache/key.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("relative-path"))
	})
	client, srv := newTestClient(t, mux)

	body, err := client.Fetch(context.Background(), "/fantasy/dungeon/cache/map.png")
	require.NoError(t, err)
	assert.Equal(t, "absolute-path", string(body))

	body, err = client.Fetch(context.Background(), "cache/key.png")
	require.NoError(t, err)
	assert.Equal(t, "relative-path", string(body))

	resolved, err := client.Resolve(srv.URL + "/elsewhere.png")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/elsewhere.png", resolved)
}

func TestClient_FetchJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fantasy/dungeon/download/json.cgi", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"href":"/fantasy/dungeon/cache/d.json"}`))
	})
	mux.HandleFunc("/fantasy/dungeon/cache/bad.json", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rooms":`))
	})
	client, _ := newTestClient(t, mux)

	var link struct {
		Href string `json:"href"`
	}
	err := client.FetchJSON(context.Background(), client.DungeonDataURL(domain.JobHandle{Auth: "a", ID: "1"}), &link)
	require.NoError(t, err)
	assert.Equal(t, "/fantasy/dungeon/cache/d.json", link.Href)

	var v map[string]any
	err = client.FetchJSON(context.Background(), "/fantasy/dungeon/cache/bad.json", &v)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDataShape))
}

func TestClient_RandomName(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{name: "one name", body: `["The Halls of Grief"]`, want: "The Halls of Grief"},
		{name: "empty list", body: `[]`, wantErr: true},
		{name: "object instead of list", body: `{"name":"x"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/fantasy/random/rpc-fantasy.fcgi", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Dungeon Name", r.URL.Query().Get("type"))
				_, _ = w.Write([]byte(tt.body))
			})
			client, _ := newTestClient(t, mux)

			got, err := client.RandomName(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrDataShape))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
