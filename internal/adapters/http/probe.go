package http

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bft-labs/courier/internal/ports"
)

// Probe reports the remote system reachable when a GET of its URL gets any
// HTTP response. A transport failure means unreachable.
type Probe struct {
	client ports.HTTPClient
	url    string
}

// NewProbe creates a probe for url. client may be nil.
func NewProbe(client ports.HTTPClient, url string) *Probe {
	if client == nil {
		client = http.DefaultClient
	}
	return &Probe{client: client, url: url}
}

// Check implements ports.ReachabilityProbe.
func (p *Probe) Check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false, fmt.Errorf("create probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return true, nil
}
