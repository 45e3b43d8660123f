package bench

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/watchpost/watchpost/internal/store"
)

const (
	fetchTimeout = 15 * time.Second
	maxBodySize  = 1 << 20 // 1 MiB is plenty for any of the feed shapes
)

// Source fetches one raw benchmark response for a series on a network. The
// response is one of the shapes Normalize understands.
type Source interface {
	Fetch(ctx context.Context, name, network string) ([]byte, error)
}

// HTTPSource reads the benchmark feed over HTTP, one base URL per network.
type HTTPSource struct {
	mainnetURL string
	testnetURL string
	client     *http.Client
}

// NewHTTPSource creates a Source for the configured per-network feed URLs.
// An empty URL disables that network.
func NewHTTPSource(mainnetURL, testnetURL string) *HTTPSource {
	return &HTTPSource{
		mainnetURL: mainnetURL,
		testnetURL: testnetURL,
		client:     &http.Client{Timeout: fetchTimeout},
	}
}

// Fetch GETs the network's feed URL with the series name as the target query
// parameter and returns the raw body.
func (s *HTTPSource) Fetch(ctx context.Context, name, network string) ([]byte, error) {
	base := s.mainnetURL
	if network == store.NetworkTestnet {
		base = s.testnetURL
	}
	if base == "" {
		return nil, fmt.Errorf("bench: no feed URL configured for network %q", network)
	}

	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("bench: parse feed url: %w", err)
	}
	q := u.Query()
	q.Set("target", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("bench: build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bench: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return nil, fmt.Errorf("bench: feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("bench: read body: %w", err)
	}
	return body, nil
}
