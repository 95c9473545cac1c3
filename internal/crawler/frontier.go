package crawler

import (
	"sort"
	"sync"
)

// Frontier is the FIFO work queue of a crawl together with its visited set.
// A URL becomes visited when it is claimed, not when its fetch completes, so
// two workers can never claim the same URL.
type Frontier struct {
	mu       sync.Mutex
	queue    []FrontierEntry
	visited  map[string]struct{}
	maxDepth int
}

// NewFrontier creates an empty frontier that drops entries deeper than maxDepth
func NewFrontier(maxDepth int) *Frontier {
	return &Frontier{
		visited:  make(map[string]struct{}),
		maxDepth: maxDepth,
	}
}

// Enqueue appends entry unless its URL is already visited or it is too deep.
// It reports whether the entry was added.
func (f *Frontier) Enqueue(entry FrontierEntry) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if entry.Depth > f.maxDepth || entry.Depth < 0 {
		return false
	}
	if _, seen := f.visited[entry.URL]; seen {
		return false
	}

	f.queue = append(f.queue, entry)
	return true
}

// ClaimBatch pops up to n entries and marks each one visited in the same
// critical section. Queued duplicates of an already claimed URL are
// discarded along the way.
func (f *Frontier) ClaimBatch(n int) []FrontierEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := make([]FrontierEntry, 0, n)
	for len(batch) < n && len(f.queue) > 0 {
		entry := f.queue[0]
		f.queue[0] = FrontierEntry{}
		f.queue = f.queue[1:]

		if _, seen := f.visited[entry.URL]; seen {
			continue
		}

		f.visited[entry.URL] = struct{}{}
		batch = append(batch, entry)
	}

	if len(f.queue) == 0 {
		f.queue = nil
	}

	return batch
}

// Len returns the number of queued entries, duplicates included
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// IsVisited reports whether url has been claimed
func (f *Frontier) IsVisited(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.visited[url]
	return ok
}

// VisitedCount returns the size of the visited set
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Visited returns the visited set in sorted order
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	urls := make([]string, 0, len(f.visited))
	for u := range f.visited {
		urls = append(urls, u)
	}
	f.mu.Unlock()

	sort.Strings(urls)
	return urls
}
