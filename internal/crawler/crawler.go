// Package crawler provides the core web crawling functionality.
// It implements a bounded, breadth-first crawler that processes the frontier
// in batches on a fixed-size worker pool, extracting structured page data and
// discovering same-host links as it goes.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/masahif/linkharvest/internal/config"
)

// DefaultProgressInterval is how often a running crawl logs its statistics
const DefaultProgressInterval = 10 * time.Second

// State is the lifecycle state of a Crawler
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDrained
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateDrained:
		return "DRAINED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Crawler runs a single crawl from one seed URL. A Crawler is single-use:
// Run may only be called once.
type Crawler struct {
	config  *config.CrawlConfig
	seedURL string

	policy      *URLPolicy
	frontier    *Frontier
	stats       *Stats
	aggregator  *Aggregator
	fetcher     *Fetcher
	extractor   *Extractor
	rateLimiter *RateLimiter

	httpClient       HTTPGetter
	closeClient      func()
	sleep            SleepFunc
	parse            ParseFunc
	metrics          *Metrics
	logger           *slog.Logger
	now              func() time.Time
	progressInterval time.Duration

	state atomic.Int32
}

// Option configures a Crawler
type Option func(*Crawler)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client HTTPGetter) Option {
	return func(c *Crawler) {
		c.httpClient = client
	}
}

// WithSleep replaces the retry backoff sleep
func WithSleep(sleep SleepFunc) Option {
	return func(c *Crawler) {
		c.sleep = sleep
	}
}

// WithParser replaces the HTML parser
func WithParser(parse ParseFunc) Option {
	return func(c *Crawler) {
		c.parse = parse
	}
}

// WithMetrics records crawl metrics in m
func WithMetrics(m *Metrics) Option {
	return func(c *Crawler) {
		c.metrics = m
	}
}

// WithLogger sets the logger, slog.Default() otherwise
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithClock sets the clock used for run timestamps and records
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) {
		c.now = now
	}
}

// WithProgressInterval sets how often progress is logged. Zero disables it.
func WithProgressInterval(d time.Duration) Option {
	return func(c *Crawler) {
		c.progressInterval = d
	}
}

// NewCrawler creates a crawler for cfg. The configuration is validated and
// the seed URL normalized; the seed's host becomes the only host crawled.
func NewCrawler(cfg *config.CrawlConfig, opts ...Option) (*Crawler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("crawler: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	policy, err := NewURLPolicy(cfg.SeedURL, cfg.NormalizedDenylist())
	if err != nil {
		return nil, err
	}

	c := &Crawler{
		config:           cfg,
		seedURL:          policy.Normalize(cfg.SeedURL),
		policy:           policy,
		frontier:         NewFrontier(cfg.MaxDepth),
		stats:            &Stats{},
		logger:           slog.Default(),
		now:              func() time.Time { return time.Now().UTC() },
		progressInterval: DefaultProgressInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		client, err := newDefaultClient(cfg)
		if err != nil {
			return nil, err
		}
		c.httpClient = client
		c.closeClient = client.Close
	}

	fetcherOpts := []FetcherOption{WithFetchMetrics(c.metrics)}
	if c.sleep != nil {
		fetcherOpts = append(fetcherOpts, WithSleepFunc(c.sleep))
	}
	if c.parse != nil {
		fetcherOpts = append(fetcherOpts, WithParseFunc(c.parse))
	}

	c.fetcher = NewFetcher(c.httpClient, RetryPolicy{
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.RetryDelay,
	}, c.stats, fetcherOpts...)
	c.extractor = &Extractor{now: c.now}
	c.rateLimiter = NewRateLimiter(cfg.RequestDelay, cfg.MaxThreads)
	c.aggregator = NewAggregator(cfg.SeedURL, c.stats)

	return c, nil
}

func newDefaultClient(cfg *config.CrawlConfig) (*HTTPClient, error) {
	client := NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout)

	headers, err := cfg.ParseHeaders()
	if err != nil {
		return nil, err
	}
	if len(headers) > 0 {
		client.SetCustomHeaders(headers)
		slog.Info("Set custom headers", "count", len(headers))
	}

	return client, nil
}

// State returns the current lifecycle state
func (c *Crawler) State() State {
	return State(c.state.Load())
}

// Stats returns a snapshot of the run statistics
func (c *Crawler) Stats() StatsSnapshot {
	return c.stats.Snapshot()
}

// Close releases the default HTTP client's idle connections
func (c *Crawler) Close() {
	if c.closeClient != nil {
		c.closeClient()
	}
}

// Run crawls until the frontier is exhausted or ctx is cancelled.
//
// The frontier is drained in batches of up to MaxThreads entries; every
// entry of a batch is processed before the next batch is claimed.
// Cancellation is observed between batches: work already claimed runs to
// completion and the records collected so far are returned with
// Result.Interrupted set. Run never fails because of a page; its only error
// is ErrAlreadyStarted.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrAlreadyStarted
	}

	c.stats.MarkStart(c.now())
	c.logger.Info("Starting crawler",
		"seed_url", c.seedURL,
		"base_domain", c.policy.BaseDomain(),
		"max_depth", c.config.MaxDepth,
		"max_threads", c.config.MaxThreads)

	c.frontier.Enqueue(FrontierEntry{URL: c.seedURL, Depth: 0})

	stopProgress := c.startProgressReporter()

	interrupted := false
	batches := 0
	for c.frontier.Len() > 0 {
		if ctx.Err() != nil {
			interrupted = true
			c.logger.Warn("Crawling cancelled, exporting partial results", "queued", c.frontier.Len())
			break
		}

		batch := c.frontier.ClaimBatch(c.config.MaxThreads)
		if len(batch) == 0 {
			continue
		}

		batches++
		c.runBatch(context.WithoutCancel(ctx), batch)
	}

	stopProgress()
	c.stats.MarkEnd(c.now())
	c.state.Store(int32(StateDrained))

	result := c.aggregator.Snapshot()
	result.Visited = c.frontier.Visited()
	result.Interrupted = interrupted

	c.logger.Info("Crawling completed",
		"batches", batches,
		"crawled", result.Stats.URLsCrawled,
		"records", len(result.Records),
		"errors", result.Stats.Errors,
		"duration", result.Stats.Duration,
		"interrupted", interrupted)

	return result, nil
}

// runBatch processes batch on at most MaxThreads goroutines and returns
// once every entry has been processed
func (c *Crawler) runBatch(ctx context.Context, batch []FrontierEntry) {
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(c.config.MaxThreads)
	for _, entry := range batch {
		g.Go(func() error {
			c.process(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	c.metrics.batch(time.Since(start))
	c.metrics.frontier(c.frontier.Len())
	c.logger.Debug("Batch completed", "size", len(batch), "queued", c.frontier.Len(), "elapsed", time.Since(start))
}

// process fetches one entry, records its data and enqueues its links.
// Failures are counted and logged, never propagated.
func (c *Crawler) process(ctx context.Context, entry FrontierEntry) {
	c.stats.IncCrawled()
	log := c.logger.With("url", entry.URL, "depth", entry.Depth)

	if err := c.rateLimiter.Wait(ctx, entry.URL); err != nil {
		c.stats.IncErrors()
		log.Error("Rate limiting error", "error", err)
		return
	}

	doc, err := c.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		c.stats.IncErrors()
		log.Error("Failed to process URL", "error", err)
		return
	}

	record, err := c.extractor.Extract(doc, entry.URL)
	if err != nil {
		c.stats.IncErrors()
		log.Warn("Partial extraction", "error", err)
	} else {
		c.stats.IncExtracted()
		c.metrics.extracted()
	}

	record.Depth = entry.Depth
	if pattern := c.matchPattern(entry.URL); pattern != "" {
		record.MatchedPattern = pattern
		log.Info("URL matched pattern", "pattern", pattern)
	}
	c.aggregator.Append(record)

	base := entry.URL
	if final := doc.URL(); final != "" {
		base = final
	}
	found, enqueued := c.discover(entry, base, record.Links)
	log.Info("Processed URL", "links", len(record.Links), "found", found, "enqueued", enqueued)
}

// discover resolves the page's raw hrefs against base, the URL the page was
// served from, and enqueues the valid ones not yet visited one level deeper.
// found counts every such href occurrence, including repeats within the
// page; enqueued counts the entries the frontier accepted.
func (c *Crawler) discover(entry FrontierEntry, base string, links []Link) (found, enqueued int) {
	seen := make(map[string]struct{}, len(links))
	candidates := make([]string, 0, len(links))

	for _, link := range links {
		u, ok := c.policy.Canonicalize(base, link.Href)
		if !ok || c.frontier.IsVisited(u) {
			continue
		}
		found++
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		candidates = append(candidates, u)
	}

	c.stats.AddFound(found)

	for _, u := range candidates {
		if c.frontier.Enqueue(FrontierEntry{URL: u, Depth: entry.Depth + 1}) {
			c.stats.IncEnqueued()
			enqueued++
		}
	}

	return found, enqueued
}

// matchPattern returns the first configured keyword contained in the URL
func (c *Crawler) matchPattern(pageURL string) string {
	lower := strings.ToLower(pageURL)
	for _, pattern := range c.config.MatchPatterns {
		if pattern != "" && strings.Contains(lower, strings.ToLower(pattern)) {
			return pattern
		}
	}
	return ""
}

// startProgressReporter logs statistics periodically until the returned
// stop function is called
func (c *Crawler) startProgressReporter() (stop func()) {
	if c.progressInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		ticker := time.NewTicker(c.progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				stats := c.stats.Snapshot()
				c.logger.Info("Crawling stats",
					"crawled", stats.URLsCrawled,
					"queued", c.frontier.Len(),
					"visited", c.frontier.VisitedCount(),
					"records", c.aggregator.Len(),
					"errors", stats.Errors,
					"duration", stats.Duration)
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}
