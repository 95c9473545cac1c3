package crawler

import (
	"sync"
)

// Aggregator collects page records from concurrent workers
type Aggregator struct {
	targetURL string
	stats     *Stats

	mu      sync.Mutex
	records []PageRecord
}

// NewAggregator creates an aggregator for a run against targetURL
func NewAggregator(targetURL string, stats *Stats) *Aggregator {
	return &Aggregator{
		targetURL: targetURL,
		stats:     stats,
	}
}

// Append stores a record. It is safe to call from multiple goroutines.
func (a *Aggregator) Append(record *PageRecord) {
	if record == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, *record)
}

// Len returns the number of records collected so far
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Snapshot returns the records collected so far together with the current stats
func (a *Aggregator) Snapshot() *Result {
	a.mu.Lock()
	records := make([]PageRecord, len(a.records))
	copy(records, a.records)
	a.mu.Unlock()

	return &Result{
		TargetURL: a.targetURL,
		Stats:     a.stats.Snapshot(),
		Records:   records,
	}
}
