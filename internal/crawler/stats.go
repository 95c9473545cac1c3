package crawler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds the counters shared by every worker of a crawl run.
// All methods are safe for concurrent use.
type Stats struct {
	urlsCrawled     atomic.Int64
	urlsFound       atomic.Int64
	entriesEnqueued atomic.Int64
	dataExtracted   atomic.Int64
	errors          atomic.Int64
	requests        atomic.Int64

	mu        sync.Mutex
	startTime time.Time
	endTime   time.Time
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	URLsCrawled     int64         `json:"urls_crawled"`
	URLsFound       int64         `json:"urls_found"`       // Valid unvisited href occurrences, repeats included
	EntriesEnqueued int64         `json:"entries_enqueued"` // Links accepted into the frontier
	DataExtracted   int64         `json:"data_extracted"`
	Errors          int64         `json:"errors"`
	Requests        int64         `json:"requests"` // HTTP attempts, retries included
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	Duration        time.Duration `json:"-"`
}

// PagesPerSecond returns the crawl rate, treating runs under a second as one second
func (s StatsSnapshot) PagesPerSecond() float64 {
	secs := s.Duration.Seconds()
	if secs < 1 {
		secs = 1
	}
	return float64(s.URLsCrawled) / secs
}

// IncCrawled counts a claimed URL a worker has started processing
func (s *Stats) IncCrawled() { s.urlsCrawled.Add(1) }

// AddFound counts links discovered on a page before frontier dedup
func (s *Stats) AddFound(n int) { s.urlsFound.Add(int64(n)) }

func (s *Stats) IncEnqueued() { s.entriesEnqueued.Add(1) }

func (s *Stats) IncExtracted() { s.dataExtracted.Add(1) }

func (s *Stats) IncErrors() { s.errors.Add(1) }

// IncRequests counts one HTTP attempt
func (s *Stats) IncRequests() { s.requests.Add(1) }

func (s *Stats) Errors() int64 { return s.errors.Load() }

func (s *Stats) Requests() int64 { return s.requests.Load() }

func (s *Stats) URLsCrawled() int64 { return s.urlsCrawled.Load() }

// MarkStart records the run start time
func (s *Stats) MarkStart(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startTime = t
}

// MarkEnd records the run end time
func (s *Stats) MarkEnd(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endTime = t
}

// Snapshot returns a consistent copy of the counters. While the run is in
// progress Duration is measured up to now.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	start, end := s.startTime, s.endTime
	s.mu.Unlock()

	snap := StatsSnapshot{
		URLsCrawled:     s.urlsCrawled.Load(),
		URLsFound:       s.urlsFound.Load(),
		EntriesEnqueued: s.entriesEnqueued.Load(),
		DataExtracted:   s.dataExtracted.Load(),
		Errors:          s.errors.Load(),
		Requests:        s.requests.Load(),
		StartTime:       start,
		EndTime:         end,
	}

	switch {
	case start.IsZero():
	case end.IsZero():
		snap.Duration = time.Since(start)
	default:
		snap.Duration = end.Sub(start)
	}

	return snap
}
