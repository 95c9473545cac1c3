package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAlreadyStarted is returned when Run is called on a crawler that has already run
	ErrAlreadyStarted = errors.New("crawler already started")
	// ErrTerminalStatus matches HTTP statuses that are never retried
	ErrTerminalStatus = errors.New("terminal HTTP status")
)

// StatusError reports an HTTP error status returned by the server
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether another attempt could plausibly succeed.
// Server errors and 429 are transient; every other 4xx is not.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Is makes non-retryable statuses match ErrTerminalStatus
func (e *StatusError) Is(target error) bool {
	return target == ErrTerminalStatus && !e.Retryable()
}

// FetchError is returned by Fetcher.Fetch once a URL is given up on
type FetchError struct {
	URL        string
	StatusCode int // Last HTTP status seen, 0 if none
	Attempts   int
	Err        error // Last cause
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractionError reports a single page field that could not be extracted
type ExtractionError struct {
	URL   string
	Field string
	Cause error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s from %s: %v", e.Field, e.URL, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
