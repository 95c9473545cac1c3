package config

import "errors"

var (
	// ErrNoSeedURL is returned when no seed URL is provided
	ErrNoSeedURL = errors.New("no seed URL provided")
	// ErrInvalidSeedURL is returned when the seed URL is not an absolute http(s) URL
	ErrInvalidSeedURL = errors.New("seed URL must be an absolute http or https URL")
	// ErrInvalidDepth is returned when max depth is negative
	ErrInvalidDepth = errors.New("max_depth must be 0 or greater")
	// ErrInvalidThreads is returned when max threads is not greater than 0
	ErrInvalidThreads = errors.New("max_threads must be greater than 0")
	// ErrInvalidTimeout is returned when request timeout is not greater than 0
	ErrInvalidTimeout = errors.New("request_timeout must be greater than 0")
	// ErrInvalidRetries is returned when max retries is not greater than 0
	ErrInvalidRetries = errors.New("max_retries must be greater than 0")
	// ErrInvalidDelay is returned when a delay setting is negative
	ErrInvalidDelay = errors.New("delays cannot be negative")
	// ErrInvalidHeader is returned when a custom header is not in "Name: Value" form
	ErrInvalidHeader = errors.New("header must be in 'Name: Value' format")
)
