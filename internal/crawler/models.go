package crawler

import "time"

// FrontierEntry is one unit of crawl work: a canonical URL and its link distance from the seed
type FrontierEntry struct {
	URL   string
	Depth int
}

// Heading is an h1-h3 element of a page
type Heading struct {
	Level int    `json:"level"` // 1, 2 or 3
	Text  string `json:"text"`
}

// Link is an anchor as written in the page (href unresolved)
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Image is an img element
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Form is a form element
type Form struct {
	Action string `json:"action"`
	Method string `json:"method"`
}

// PageRecord is the structured data extracted from one successfully fetched page.
// Empty strings and empty slices mean the page had no such element.
type PageRecord struct {
	URL            string            `json:"url"`
	Depth          int               `json:"depth"`
	Title          string            `json:"title"`
	Headings       []Heading         `json:"headings"`
	Paragraphs     []string          `json:"paragraphs"`
	Links          []Link            `json:"links"`
	Images         []Image           `json:"images"`
	Forms          []Form            `json:"forms"`
	Scripts        []string          `json:"scripts"`
	Meta           map[string]string `json:"meta"`
	MatchedPattern string            `json:"matched_pattern,omitempty"` // First configured keyword found in the URL
	FetchedAt      time.Time         `json:"timestamp"`
}

// Result is the final output of a crawl run, handed to exporters
type Result struct {
	TargetURL   string        `json:"target"`
	Stats       StatsSnapshot `json:"stats"`
	Records     []PageRecord  `json:"data"`
	Visited     []string      `json:"-"` // Sorted canonical URLs claimed during the run
	Interrupted bool          `json:"interrupted"`
}
