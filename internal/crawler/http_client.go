package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultMaxBodySize caps how much of a response body is read
const DefaultMaxBodySize = 10 * 1024 * 1024

// HTTPGetter is the transport capability the fetcher depends on
type HTTPGetter interface {
	Get(ctx context.Context, url string) (*HTTPResponse, error)
}

// HTTPResponse is a fully read HTTP response
type HTTPResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
	FinalURL    string // After following redirects
	Duration    time.Duration
}

// HTTPClient performs GET requests with browser-like default headers and
// redirect following
type HTTPClient struct {
	client        *http.Client
	userAgent     string
	customHeaders map[string]string
	maxBodySize   int64
}

// NewHTTPClient creates a new HTTP client. The timeout is a hard ceiling on
// top of the per-attempt deadline the fetcher puts on each request context.
func NewHTTPClient(userAgent string, timeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &HTTPClient{
		client:        client,
		userAgent:     userAgent,
		customHeaders: make(map[string]string),
		maxBodySize:   DefaultMaxBodySize,
	}
}

// SetCustomHeaders adds headers sent with every request
func (h *HTTPClient) SetCustomHeaders(headers map[string]string) {
	for k, v := range headers {
		h.customHeaders[k] = v
	}
}

// SetMaxBodySize changes the response body cap
func (h *HTTPClient) SetMaxBodySize(n int64) {
	if n > 0 {
		h.maxBodySize = n
	}
}

// Get performs an HTTP GET request and reads the body. Error statuses are
// returned as responses, not errors; only transport failures are errors.
func (h *HTTPClient) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	// Accept-Encoding is left to the transport so decompression stays automatic

	for name, value := range h.customHeaders {
		req.Header.Set(name, value)
	}

	startTime := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &HTTPResponse{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
		Duration:    time.Since(startTime),
	}, nil
}

// Close releases idle connections
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}
