package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	gojson "github.com/goccy/go-json"

	"github.com/bft-labs/courier/internal/ports"
	"github.com/bft-labs/courier/pkg/courier"
)

// APIError is a non-2xx reply from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Client talks to a daemon's Routes.
type Client struct {
	base string
	http ports.HTTPClient
}

// NewClient creates a client for the daemon listening on addr, given as
// host:port or a full URL.
func NewClient(addr string, client ports.HTTPClient) *Client {
	base := strings.TrimRight(addr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{base: base, http: client}
}

// Status fetches GET /status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// Queue fetches GET /queue.
func (c *Client) Queue(ctx context.Context) ([]courier.QueuedOperation, error) {
	var out []courier.QueuedOperation
	err := c.do(ctx, http.MethodGet, "/queue", nil, &out)
	return out, err
}

// Enqueue posts an operation. data may be nil.
func (c *Client) Enqueue(ctx context.Context, kind string, data json.RawMessage) (courier.QueuedOperation, error) {
	var out courier.QueuedOperation
	err := c.do(ctx, http.MethodPost, "/queue", EnqueueRequest{Kind: kind, Data: data}, &out)
	return out, err
}

// Cancel deletes a pending operation.
func (c *Client) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/queue/"+url.PathEscape(id), nil, nil)
}

// Sync triggers a sync pass.
func (c *Client) Sync(ctx context.Context) (courier.SyncResult, error) {
	var out courier.SyncResult
	err := c.do(ctx, http.MethodPost, "/sync", nil, &out)
	return out, err
}

// Sweep triggers an expiry sweep.
func (c *Client) Sweep(ctx context.Context) (courier.SweepResult, error) {
	var out courier.SweepResult
	err := c.do(ctx, http.MethodPost, "/sweep", nil, &out)
	return out, err
}

// SetOnline overrides the daemon's connectivity state.
func (c *Client) SetOnline(ctx context.Context, online bool) (StatusResponse, error) {
	var out StatusResponse
	err := c.do(ctx, http.MethodPost, "/online", OnlineRequest{Online: online}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := gojson.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e ErrorResponse
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if gojson.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := gojson.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
