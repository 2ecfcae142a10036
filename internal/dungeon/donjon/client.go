// Package donjon talks to the donjon dungeon generation service
package donjon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/dungeon-forge/internal/dungeon/domain"
)

const (
	// DefaultBaseURL is the dungeon generator endpoint root
	DefaultBaseURL = "https://donjon.bin.sh/fantasy/dungeon/"
	// DefaultNameURL returns one random dungeon name as a JSON array
	DefaultNameURL = "https://donjon.bin.sh/fantasy/random/rpc-fantasy.fcgi?type=Dungeon%20Name&n=1"

	constructPath = "construct.cgi"
	statusPath    = "status.fcgi"
	jsonPath      = "download/json.cgi"

	defaultTimeout = 30 * time.Second
	maxBodySize    = 32 << 20
)

// Options configures the donjon client
type Options struct {
	BaseURL    string
	NameURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	Logger     *slog.Logger
}

// Client performs HTTP calls against the generation service
type Client struct {
	baseURL    *url.URL
	nameURL    string
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
	maxBody    int64
}

// NewClient creates a new Client, applying defaults for empty options
func NewClient(opts Options) (*Client, error) {
	rawBase := strings.TrimSpace(opts.BaseURL)
	if rawBase == "" {
		rawBase = DefaultBaseURL
	}
	// relative endpoints resolve under the base only with a trailing slash
	if !strings.HasSuffix(rawBase, "/") {
		rawBase += "/"
	}
	base, err := url.Parse(rawBase)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", rawBase, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", rawBase)
	}

	nameURL := strings.TrimSpace(opts.NameURL)
	if nameURL == "" {
		nameURL = DefaultNameURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    base,
		nameURL:    nameURL,
		httpClient: httpClient,
		userAgent:  opts.UserAgent,
		logger:     logger,
		maxBody:    maxBodySize,
	}, nil
}

type submitResponse struct {
	Auth string `json:"auth"`
	ID   jobID  `json:"id"`
}

// jobID accepts the id as either a JSON string or a JSON number
type jobID string

func (id *jobID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = jobID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = jobID(n.String())
	return nil
}

// Submit starts a remote generation and returns its handle
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest) (domain.JobHandle, error) {
	endpoint := c.endpoint(constructPath, req.Query())

	raw, err := c.get(ctx, "submit generation", endpoint)
	if err != nil {
		return domain.JobHandle{}, err
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.JobHandle{}, &domain.ProtocolViolation{Reason: fmt.Sprintf("construct response is not valid JSON: %v", err)}
	}
	handle := domain.JobHandle{Auth: decoded.Auth, ID: string(decoded.ID)}
	if !handle.Valid() {
		return domain.JobHandle{}, &domain.ProtocolViolation{Reason: "construct response is missing auth or id"}
	}

	c.logger.Debug("Generation submitted",
		slog.String("job_id", handle.ID),
		slog.String("name", req.Name),
		slog.String("seed", req.Seed),
	)

	return handle, nil
}

// FetchStatus queries the job status once
func (c *Client) FetchStatus(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error) {
	raw, err := c.get(ctx, "fetch status", c.endpoint(statusPath, handleQuery(handle)))
	if err != nil {
		return nil, err
	}
	return domain.DecodeStatus(raw)
}

// DungeonDataURL is where the structured dungeon JSON of a finished job is announced
func (c *Client) DungeonDataURL(handle domain.JobHandle) string {
	return c.endpoint(jsonPath, handleQuery(handle))
}

// Resolve turns a reference found in service output into an absolute URL
func (c *Client) Resolve(ref string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", &domain.ProtocolViolation{Reason: fmt.Sprintf("invalid reference %q: %v", ref, err)}
	}
	return c.baseURL.ResolveReference(parsed).String(), nil
}

// Fetch downloads a resource; relative references resolve against the base URL
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	target, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, "fetch resource", target)
}

// FetchJSON downloads a resource and decodes it into v
func (c *Client) FetchJSON(ctx context.Context, ref string, v any) error {
	raw, err := c.Fetch(ctx, ref)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &domain.DataShapeError{Reason: "resource is not valid JSON", Err: err}
	}
	return nil
}

// RandomName asks the name service for one dungeon name
func (c *Client) RandomName(ctx context.Context) (string, error) {
	raw, err := c.get(ctx, "fetch random name", c.nameURL)
	if err != nil {
		return "", err
	}

	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return "", &domain.DataShapeError{Reason: "name service response is not a list of names", Err: err}
	}
	if len(names) == 0 || strings.TrimSpace(names[0]) == "" {
		return "", &domain.DataShapeError{Reason: "name service returned no names"}
	}
	return strings.TrimSpace(names[0]), nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	u.RawQuery = query.Encode()
	return u.String()
}

func handleQuery(handle domain.JobHandle) url.Values {
	q := url.Values{}
	q.Set("auth", handle.Auth)
	q.Set("id", handle.ID)
	return q
}

// get performs one GET; any non-2xx status is a TransportError
func (c *Client) get(ctx context.Context, op, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &domain.TransportError{Op: op, URL: target, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Remote call failed",
			slog.String("op", op),
			slog.String("url", target),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &domain.TransportError{Op: op, URL: target, StatusCode: resp.StatusCode}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &domain.TransportError{Op: op, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(raw)) > c.maxBody {
		return nil, &domain.TransportError{Op: op, URL: target, Err: fmt.Errorf("response body exceeds %d bytes", c.maxBody)}
	}
	return raw, nil
}
