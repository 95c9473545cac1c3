package export

import (
	"encoding/csv"
	"io"
	"net/url"
	"strings"

	"github.com/masahif/linkharvest/internal/crawler"
)

var linksCSVHeader = []string{"page_url", "text", "href"}

// WriteLinksCSV writes one row per link found on each page, with the href
// resolved against the page URL
func WriteLinksCSV(w io.Writer, result *crawler.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(linksCSVHeader); err != nil {
		return err
	}

	for _, record := range result.Records {
		for _, link := range record.Links {
			row := []string{record.URL, link.Text, resolveHref(record.URL, link.Href)}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// resolveHref makes href absolute against pageURL, keeping it as written
// when either side does not parse
func resolveHref(pageURL, href string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
