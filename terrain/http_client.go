package terrain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	// DefaultFetchTimeout is the default HTTP request timeout for grid fetches.
	DefaultFetchTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of attempts.
	DefaultMaxRetries = 3

	defaultBaseBackoff = 500 * time.Millisecond

	// DefaultMaxGridBytes caps a downloaded grid document at 256 MiB.
	DefaultMaxGridBytes = 256 << 20
)

// FetchOption configures FetchGridFromURL.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	timeout     time.Duration
	maxRetries  int
	baseBackoff time.Duration
	client      *http.Client
	maxBytes    int64
}

// WithTimeout sets the HTTP request timeout.
func WithTimeout(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.timeout = d }
}

// WithMaxRetries sets the maximum number of attempts.
func WithMaxRetries(n int) FetchOption {
	return func(c *fetchConfig) { c.maxRetries = n }
}

// WithBaseBackoff sets the delay before the second attempt. Later attempts
// double it.
func WithBaseBackoff(d time.Duration) FetchOption {
	return func(c *fetchConfig) { c.baseBackoff = d }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) FetchOption {
	return func(c *fetchConfig) { c.client = client }
}

// WithMaxBytes sets the largest accepted grid document.
func WithMaxBytes(n int64) FetchOption {
	return func(c *fetchConfig) { c.maxBytes = n }
}

// errPermanent marks fetch failures that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

// FetchGridFromURL downloads a grid document and parses it. Network errors
// and 5xx responses are retried with exponential backoff; 4xx responses and
// malformed documents are not.
func FetchGridFromURL(ctx context.Context, url string, opts ...FetchOption) (*ElevationGrid, error) {
	if url == "" {
		return nil, fmt.Errorf("fetch grid: URL is empty")
	}

	cfg := fetchConfig{
		timeout:     DefaultFetchTimeout,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: defaultBaseBackoff,
		maxBytes:    DefaultMaxGridBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxRetries < 1 {
		cfg.maxRetries = 1
	}
	client := cfg.client
	if client == nil {
		client = &http.Client{Timeout: cfg.timeout}
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := cfg.baseBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch grid: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		body, err := getGrid(ctx, client, url, cfg.maxBytes)
		if errors.Is(err, errPermanent) {
			return nil, fmt.Errorf("fetch grid: %w", err)
		}
		if err != nil {
			lastErr = err
			continue
		}

		g, err := ParseGridJSON(body)
		if err != nil {
			return nil, fmt.Errorf("fetch grid: %w", err)
		}
		return g, nil
	}
	return nil, fmt.Errorf("fetch grid: all %d attempts failed: %w", cfg.maxRetries, lastErr)
}

func getGrid(ctx context.Context, client *http.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w: %w", errPermanent, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("HTTP GET %s: status %d", url, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP GET %s: status %d: %w", url, resp.StatusCode, errPermanent)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("grid document from %s exceeds %s: %w", url, humanize.IBytes(uint64(maxBytes)), errPermanent)
	}
	return body, nil
}
