// Package config provides configuration management for the crawler.
// It defines configuration structures and default values for crawling parameters.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent is sent with every request unless overridden
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Crawl bounds
	SeedURL    string `mapstructure:"seed_url" yaml:"seed_url"`       // Starting URL, also fixes the crawl domain
	MaxDepth   int    `mapstructure:"max_depth" yaml:"max_depth"`     // Link hops from the seed (seed is depth 0)
	MaxThreads int    `mapstructure:"max_threads" yaml:"max_threads"` // Worker pool size and batch size

	// Fetching
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // Per-attempt timeout
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`         // Attempts per URL
	RetryDelay     time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`         // Backoff unit, attempt N waits N*RetryDelay
	RequestDelay   time.Duration `mapstructure:"request_delay" yaml:"request_delay"`     // Politeness delay between requests to one host
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	Headers        []string      `mapstructure:"headers" yaml:"headers"`                 // Extra request headers, "Name: Value"

	// URL policy
	ExtensionDenylist []string `mapstructure:"extension_denylist" yaml:"extension_denylist"` // Path extensions never crawled
	MatchPatterns     []string `mapstructure:"match_patterns" yaml:"match_patterns"`         // URL keywords reported as matched

	// Output
	OutputDir    string   `mapstructure:"output_dir" yaml:"output_dir"`       // Directory for exported results
	Formats      []string `mapstructure:"formats" yaml:"formats"`             // Export formats: json, txt, md, csv
	DatabasePath string   `mapstructure:"database_path" yaml:"database_path"` // Optional SQLite database for the run
	MetricsAddr  string   `mapstructure:"metrics_addr" yaml:"metrics_addr"`   // Optional address serving Prometheus metrics

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFile   string `mapstructure:"log_file" yaml:"log_file"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		MaxDepth:          3,
		MaxThreads:        4,
		RequestTimeout:    15 * time.Second,
		MaxRetries:        3,
		RetryDelay:        1 * time.Second,
		RequestDelay:      1 * time.Second,
		UserAgent:         DefaultUserAgent,
		ExtensionDenylist: []string{".pdf", ".jpg", ".png", ".gif", ".zip", ".exe"},
		MatchPatterns:     []string{"contact", "about", "service", "product", "blog"},
		OutputDir:         "scraped_data",
		Formats:           []string{"json", "txt", "md"},
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	if strings.TrimSpace(c.SeedURL) == "" {
		return ErrNoSeedURL
	}

	u, err := url.Parse(c.SeedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSeedURL
	}

	if c.MaxDepth < 0 {
		return ErrInvalidDepth
	}

	if c.MaxThreads <= 0 {
		return ErrInvalidThreads
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.MaxRetries <= 0 {
		return ErrInvalidRetries
	}

	if c.RetryDelay < 0 || c.RequestDelay < 0 {
		return ErrInvalidDelay
	}

	if _, err := c.ParseHeaders(); err != nil {
		return err
	}

	return nil
}

// ParseHeaders converts Headers into a map. Each entry must be in
// "Name: Value" form with a non-empty name and value.
func (c *CrawlConfig) ParseHeaders() (map[string]string, error) {
	headers := make(map[string]string, len(c.Headers))
	for _, header := range c.Headers {
		colonIndex := strings.Index(header, ":")
		if colonIndex <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, header)
		}

		key := strings.TrimSpace(header[:colonIndex])
		value := strings.TrimSpace(header[colonIndex+1:])
		if key == "" || value == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHeader, header)
		}

		headers[key] = value
	}
	return headers, nil
}

// NormalizedDenylist returns the extension denylist lower-cased with a leading dot
func (c *CrawlConfig) NormalizedDenylist() []string {
	exts := make([]string, 0, len(c.ExtensionDenylist))
	for _, ext := range c.ExtensionDenylist {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	return exts
}
