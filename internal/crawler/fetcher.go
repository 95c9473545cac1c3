package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/masahif/linkharvest/internal/parser"
)

// ParseFunc turns a response body into a parsed document
type ParseFunc func(body []byte, contentType string) (*parser.Document, error)

// SleepFunc waits d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds the attempts made for one URL
type RetryPolicy struct {
	Timeout    time.Duration // Per-attempt deadline
	MaxRetries int           // Total attempts
	BaseDelay  time.Duration // Attempt N is followed by a pause of N*BaseDelay
}

// Backoff returns the pause that follows the given (1-based) failed attempt
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(attempt) * p.BaseDelay
}

// Fetcher retrieves and parses pages, retrying transient failures
type Fetcher struct {
	client  HTTPGetter
	policy  RetryPolicy
	stats   *Stats
	parse   ParseFunc
	sleep   SleepFunc
	metrics *Metrics
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithParseFunc replaces the HTML parser
func WithParseFunc(parse ParseFunc) FetcherOption {
	return func(f *Fetcher) {
		f.parse = parse
	}
}

// WithSleepFunc replaces the backoff sleep, typically with a fake in tests
func WithSleepFunc(sleep SleepFunc) FetcherOption {
	return func(f *Fetcher) {
		f.sleep = sleep
	}
}

// WithFetchMetrics records attempts and failures in m
func WithFetchMetrics(m *Metrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a fetcher. Every attempt is counted in stats.
func NewFetcher(client HTTPGetter, policy RetryPolicy, stats *Stats, opts ...FetcherOption) *Fetcher {
	if policy.MaxRetries < 1 {
		policy.MaxRetries = 1
	}
	if stats == nil {
		stats = &Stats{}
	}

	f := &Fetcher{
		client: client,
		policy: policy,
		stats:  stats,
		parse:  parser.Parse,
		sleep:  sleepContext,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch retrieves url and parses it. The document's URL is the final URL
// after redirects. Connection failures, timeouts, 5xx and
// 429 responses are retried up to the policy limit; other error statuses
// (401, 403, 404, ...) end the fetch after one attempt. The returned error is
// always a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*parser.Document, error) {
	var lastErr error
	var lastStatus int

	for attempt := 1; attempt <= f.policy.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, f.policy.Backoff(attempt-1)); err != nil {
				f.metrics.failure("cancelled")
				return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: attempt - 1, Err: err}
			}
		}

		doc, status, err := f.attempt(ctx, url)
		if err == nil {
			return doc, nil
		}
		lastErr, lastStatus = err, status

		if !f.shouldRetry(ctx, err) {
			f.metrics.failure(failureReason(err))
			return nil, &FetchError{URL: url, StatusCode: status, Attempts: attempt, Err: err}
		}
	}

	f.metrics.failure("retries_exhausted")
	return nil, &FetchError{URL: url, StatusCode: lastStatus, Attempts: f.policy.MaxRetries, Err: lastErr}
}

// attempt performs a single request under its own deadline
func (f *Fetcher) attempt(ctx context.Context, url string) (*parser.Document, int, error) {
	f.stats.IncRequests()

	attemptCtx := ctx
	if f.policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.policy.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := f.client.Get(attemptCtx, url)
	f.metrics.attempt(time.Since(start))
	if err != nil {
		return nil, 0, err
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode}
	}

	// An empty body parses into an empty document
	doc, err := f.parse(resp.Body, resp.ContentType)
	if err != nil {
		return nil, resp.StatusCode, &parseError{err: err}
	}
	if resp.FinalURL != "" {
		doc.SetURL(resp.FinalURL)
	}

	return doc, resp.StatusCode, nil
}

func (f *Fetcher) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	var pErr *parseError
	if errors.As(err, &pErr) {
		return false
	}

	// Transport failures and per-attempt timeouts
	return true
}

func failureReason(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return "http_status"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return "unparseable"
	}
}

type parseError struct {
	err error
}

func (e *parseError) Error() string { return fmt.Sprintf("parse: %v", e.err) }

func (e *parseError) Unwrap() error { return e.err }

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
