// Package http implements the remote-facing ports over HTTP: an executor
// that posts operations to the marketplace API and a reachability probe.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/bft-labs/courier/internal/codec"
	"github.com/bft-labs/courier/internal/domain"
	"github.com/bft-labs/courier/internal/ports"
	"github.com/bft-labs/courier/pkg/log"
)

const (
	operationsPath = "/v1/operations/"
	maxErrorBody   = 512
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// Executor posts each operation to {baseURL}/v1/operations/{kind}.
//
// The operation ID is sent as Idempotency-Key so a retried request that
// already succeeded server-side is not applied twice.
type Executor struct {
	client    ports.HTTPClient
	baseURL   string
	authToken string
	userAgent string
	logger    log.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithAuthToken sends "Authorization: Bearer <token>".
func WithAuthToken(token string) ExecutorOption {
	return func(e *Executor) { e.authToken = token }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ExecutorOption {
	return func(e *Executor) { e.userAgent = ua }
}

// WithLogger sets the executor logger.
func WithLogger(l log.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an executor. client may be nil to use
// http.DefaultClient; the dispatch timeout bounds every request.
func NewExecutor(client ports.HTTPClient, baseURL string, opts ...ExecutorOption) *Executor {
	if client == nil {
		client = http.DefaultClient
	}
	e := &Executor{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "courier",
		logger:    log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute implements ports.Executor.
func (e *Executor) Execute(ctx context.Context, op domain.QueuedOperation) error {
	body, err := codec.EncodeOperation(op)
	if err != nil {
		return err
	}

	endpoint := e.baseURL + operationsPath + url.PathEscape(op.Kind().String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	correlationID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Idempotency-Key", op.ID)
	req.Header.Set("X-Correlation-ID", correlationID)
	if e.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.authToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.logger.Debug("operation rejected",
			log.String("id", op.ID),
			log.String("kind", op.Kind().String()),
			log.Int("status", resp.StatusCode),
			log.String("correlation_id", correlationID),
		)
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
