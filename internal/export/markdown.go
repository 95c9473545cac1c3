package export

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/masahif/linkharvest/internal/crawler"
)

// WriteMarkdown writes a statistics report: run summary, counters, matched
// pages and the number of records per depth
func WriteMarkdown(w io.Writer, result *crawler.Result) error {
	md := markdown.NewMarkdown(w)

	writeSummary(md, result)
	writeStatistics(md, result)
	writeMatched(md, result)
	writeDepths(md, result)

	return md.Build()
}

func writeSummary(md *markdown.Markdown, result *crawler.Result) {
	stats := result.Stats

	md.H1("Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Target", "`" + result.TargetURL + "`"},
			{"Started", formatTime(stats.StartTime)},
			{"Finished", formatTime(stats.EndTime)},
			{"Duration", fmt.Sprintf("%.2f seconds", stats.Duration.Seconds())},
			{"Status", statusText(result)},
		},
	})
	md.PlainText("")

	if result.Interrupted {
		md.Importantf("The crawl was interrupted. %d page(s) were collected before it stopped.", len(result.Records))
		md.PlainText("")
	}
}

func writeStatistics(md *markdown.Markdown, result *crawler.Result) {
	stats := result.Stats

	md.H2("Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"URLs Crawled", strconv.FormatInt(stats.URLsCrawled, 10)},
			{"URLs Discovered", strconv.FormatInt(stats.URLsFound, 10)},
			{"Entries Enqueued", strconv.FormatInt(stats.EntriesEnqueued, 10)},
			{"Pages Extracted", strconv.FormatInt(stats.DataExtracted, 10)},
			{"Errors", strconv.FormatInt(stats.Errors, 10)},
			{"HTTP Requests", strconv.FormatInt(stats.Requests, 10)},
			{"Average Speed", fmt.Sprintf("%.2f pages/second", stats.PagesPerSecond())},
		},
	})
	md.PlainText("")

	if stats.Errors > 0 {
		md.Warningf("%d error(s) were encountered during the crawl.", stats.Errors)
		md.PlainText("")
	}
}

func writeMatched(md *markdown.Markdown, result *crawler.Result) {
	md.H2("Matched Pages")
	md.PlainText("")

	var rows [][]string
	for _, r := range result.Records {
		if r.MatchedPattern == "" {
			continue
		}
		title := r.Title
		if title == "" {
			title = "-"
		}
		rows = append(rows, []string{r.MatchedPattern, r.URL, truncateString(title, 60)})
	}

	if len(rows) == 0 {
		md.PlainText("No page URL matched the configured patterns.")
		md.PlainText("")
		return
	}

	md.Table(markdown.TableSet{
		Header: []string{"Pattern", "URL", "Title"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeDepths(md *markdown.Markdown, result *crawler.Result) {
	if len(result.Records) == 0 {
		return
	}

	counts := make(map[int]int)
	for _, r := range result.Records {
		counts[r.Depth]++
	}

	depths := make([]int, 0, len(counts))
	for d := range counts {
		depths = append(depths, d)
	}
	sort.Ints(depths)

	rows := make([][]string, len(depths))
	for i, d := range depths {
		rows[i] = []string{strconv.Itoa(d), strconv.Itoa(counts[d])}
	}

	md.H2("Pages by Depth")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Depth", "Pages"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusText(result *crawler.Result) string {
	if result.Interrupted {
		return "Interrupted (partial results)"
	}
	return "Complete"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05 MST")
}

// truncateString shortens s to at most maxLen runes
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
