package crawler

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestAggregatorConcurrentAppend(t *testing.T) {
	stats := &Stats{}
	agg := NewAggregator("http://example.test/", stats)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.Append(&PageRecord{URL: fmt.Sprintf("http://example.test/%d", i)})
			stats.IncCrawled()
			stats.IncExtracted()
		}(i)
	}
	agg.Append(nil)
	wg.Wait()

	if agg.Len() != 50 {
		t.Errorf("Expected 50 records, got %d", agg.Len())
	}

	result := agg.Snapshot()
	if result.TargetURL != "http://example.test/" {
		t.Errorf("TargetURL = %q", result.TargetURL)
	}
	if len(result.Records) != 50 {
		t.Errorf("Expected 50 records in snapshot, got %d", len(result.Records))
	}
	if result.Stats.URLsCrawled != 50 || result.Stats.DataExtracted != 50 {
		t.Errorf("Unexpected stats: %+v", result.Stats)
	}
}

func TestAggregatorSnapshotIsCopy(t *testing.T) {
	agg := NewAggregator("http://example.test/", &Stats{})
	agg.Append(&PageRecord{URL: "http://example.test/a"})

	snap := agg.Snapshot()
	snap.Records[0].URL = "mutated"

	if agg.Snapshot().Records[0].URL != "http://example.test/a" {
		t.Error("Expected snapshot to be detached from the aggregator")
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := &Stats{}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	s.MarkStart(start)
	s.IncCrawled()
	s.IncCrawled()
	s.AddFound(5)
	s.IncEnqueued()
	s.IncErrors()
	s.IncRequests()
	s.IncRequests()
	s.IncRequests()
	s.MarkEnd(start.Add(4 * time.Second))

	snap := s.Snapshot()
	if snap.URLsCrawled != 2 || snap.URLsFound != 5 || snap.EntriesEnqueued != 1 {
		t.Errorf("Unexpected counters: %+v", snap)
	}
	if snap.Errors != 1 || snap.Requests != 3 {
		t.Errorf("Unexpected errors/requests: %+v", snap)
	}
	if snap.Duration != 4*time.Second {
		t.Errorf("Duration = %v, want 4s", snap.Duration)
	}
	if got := snap.PagesPerSecond(); got != 0.5 {
		t.Errorf("PagesPerSecond = %v, want 0.5", got)
	}
}

func TestStatsPagesPerSecondShortRun(t *testing.T) {
	snap := StatsSnapshot{URLsCrawled: 3, Duration: 200 * time.Millisecond}
	if got := snap.PagesPerSecond(); got != 3 {
		t.Errorf("PagesPerSecond = %v, want 3 for a sub-second run", got)
	}
}

func TestResultJSONShape(t *testing.T) {
	result := &Result{
		TargetURL: "http://example.test/",
		Records:   []PageRecord{{URL: "http://example.test/", Meta: map[string]string{}}},
		Visited:   []string{"http://example.test/"},
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"target", "stats", "data"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Expected key %q in %s", key, data)
		}
	}
	if _, ok := decoded["Visited"]; ok {
		t.Error("Visited should not be serialized")
	}
}
