package gtfsrt

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Retexc/ETSignage/internal/logging"
)

// Client fetches realtime payloads over HTTP or from local files.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
}

// NewClient creates a client sending headers with every request. Each fetch
// is bounded by timeout; zero means no bound beyond the caller's context.
func NewClient(headers map[string]string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{},
		headers:    headers,
		timeout:    timeout,
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Fetch returns the raw body at urlOrPath. Anything that is not an http(s)
// URL is read from disk. An empty urlOrPath returns nil (optional feed).
func (c *Client) Fetch(ctx context.Context, urlOrPath string) ([]byte, error) {
	if urlOrPath == "" {
		return nil, nil
	}

	if !strings.HasPrefix(urlOrPath, "http://") && !strings.HasPrefix(urlOrPath, "https://") {
		return os.ReadFile(urlOrPath)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlOrPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", urlOrPath, err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", urlOrPath, err)
	}
	defer logging.SafeCloseWithLogging(resp.Body, logging.FromContext(ctx), "close feed response")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, urlOrPath)
	}

	return io.ReadAll(resp.Body)
}
