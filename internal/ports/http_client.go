package ports

import "net/http"

// HTTPClient is the subset of *http.Client used by the HTTP executor and
// probe, so tests can inject a fake transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
