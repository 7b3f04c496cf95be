package feedsim

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/fantasylive/internal/domain/types"
)

// HTTPClient talks to the engine's HTTP API.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient creates a client for baseURL with a per-request timeout.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// PostResult mirrors the POST /updates response body.
type PostResult struct {
	Status   string   `json:"status"`
	Accepted int      `json:"accepted"`
	Rejected int      `json:"rejected"`
	Errors   []string `json:"errors"`
}

// Health checks GET /healthz.
func (c *HTTPClient) Health(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthz answered %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

// PostUpdates sends one batch to POST /updates.
func (c *HTTPClient) PostUpdates(ctx context.Context, batch []Message) (PostResult, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return PostResult{}, fmt.Errorf("marshal batch: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/updates", body)
	if err != nil {
		return PostResult{}, err
	}
	data, err := readResponseBody(resp)
	if err != nil {
		return PostResult{}, err
	}
	if resp.StatusCode != http.StatusAccepted {
		return PostResult{}, fmt.Errorf("post updates: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	var res PostResult
	if err := json.Unmarshal(data, &res); err != nil {
		return PostResult{}, fmt.Errorf("decode post result: %w", err)
	}
	return res, nil
}

// Players fetches GET /players.
func (c *HTTPClient) Players(ctx context.Context) ([]types.PlayerUpdate, error) {
	var out []types.PlayerUpdate
	return out, c.getJSON(ctx, "/players", &out)
}

// Stats fetches GET /stats.
func (c *HTTPClient) Stats(ctx context.Context) (types.PerformanceMetrics, error) {
	var out types.PerformanceMetrics
	return out, c.getJSON(ctx, "/stats", &out)
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	data, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// readResponseBody reads and closes the response body.
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}
