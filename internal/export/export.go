// Package export writes crawl results to disk: the full result as JSON, the
// visited URL list as plain text, the page links as CSV and a statistics
// report as Markdown.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/masahif/linkharvest/internal/crawler"
)

// Supported formats
const (
	FormatJSON     = "json"
	FormatText     = "txt"
	FormatMarkdown = "md"
	FormatCSV      = "csv"
)

// ErrUnknownFormat is returned for a format other than json, txt, md or csv
var ErrUnknownFormat = errors.New("unknown export format")

// TimestampLayout is the layout of the timestamp embedded in file names
const TimestampLayout = "20060102_150405"

type formatWriter struct {
	prefix string
	write  func(io.Writer, *crawler.Result) error
}

var formats = map[string]formatWriter{
	FormatJSON:     {prefix: "crawl_results", write: WriteJSON},
	FormatText:     {prefix: "discovered_urls", write: WriteURLList},
	FormatMarkdown: {prefix: "crawl_report", write: WriteMarkdown},
	FormatCSV:      {prefix: "crawl_links", write: WriteLinksCSV},
}

// FileName returns the file name used for format at ts
func FileName(format string, ts time.Time) (string, error) {
	fw, ok := formats[strings.ToLower(format)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return fmt.Sprintf("%s_%s.%s", fw.prefix, ts.Format(TimestampLayout), strings.ToLower(format)), nil
}

// WriteAll writes result in every requested format into dir, creating it if
// needed, and returns the paths written. All formats are validated before
// any file is created.
func WriteAll(dir string, formatNames []string, result *crawler.Result, ts time.Time) ([]string, error) {
	if result == nil {
		return nil, fmt.Errorf("nil crawl result")
	}

	names := make([]string, 0, len(formatNames))
	seen := make(map[string]bool, len(formatNames))
	for _, f := range formatNames {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		if _, ok := formats[f]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
		seen[f] = true
		names = append(names, f)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(names))
	for _, f := range names {
		name, _ := FileName(f, ts)
		path := filepath.Join(dir, name)
		if err := writeFile(path, result, formats[f].write); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}

func writeFile(path string, result *crawler.Result, write func(io.Writer, *crawler.Result) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(file, result); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes {target, stats, data} as indented JSON
func WriteJSON(w io.Writer, result *crawler.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

// WriteURLList writes the sorted visited URLs under a short header
func WriteURLList(w io.Writer, result *crawler.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Discovered URLs from: %s\n", result.TargetURL)
	fmt.Fprintf(&b, "Total URLs: %d\n", len(result.Visited))
	b.WriteString(strings.Repeat("=", 80))
	b.WriteString("\n\n")
	for _, u := range result.Visited {
		b.WriteString(u)
		b.WriteByte('\n')
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteStatistics prints the end-of-run summary shown on the console
func WriteStatistics(w io.Writer, result *crawler.Result) error {
	stats := result.Stats
	rule := strings.Repeat("=", 80)

	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nCRAWLING STATISTICS\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Target URL:           %s\n", result.TargetURL)
	fmt.Fprintf(&b, "URLs Crawled:         %d\n", stats.URLsCrawled)
	fmt.Fprintf(&b, "URLs Discovered:      %d\n", stats.URLsFound)
	fmt.Fprintf(&b, "Pages Extracted:      %d\n", stats.DataExtracted)
	fmt.Fprintf(&b, "Errors Encountered:   %d\n", stats.Errors)
	fmt.Fprintf(&b, "Duration:             %.2f seconds\n", stats.Duration.Seconds())
	fmt.Fprintf(&b, "Average Speed:        %.2f pages/second\n", stats.PagesPerSecond())
	if result.Interrupted {
		b.WriteString("Status:               interrupted (partial results)\n")
	}
	fmt.Fprintf(&b, "%s\n\n", rule)

	_, err := io.WriteString(w, b.String())
	return err
}
