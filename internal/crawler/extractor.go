package crawler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/masahif/linkharvest/internal/parser"
)

// minParagraphLength is the rune count a paragraph must exceed to be kept
const minParagraphLength = 20

// Extractor turns a parsed page into a PageRecord. It touches no shared state.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor stamping records with the current UTC time
func NewExtractor() *Extractor {
	return &Extractor{now: func() time.Time { return time.Now().UTC() }}
}

// Extract builds a record for pageURL. Each field is extracted independently:
// a field that fails is left empty and reported in the returned error (an
// errors.Join of *ExtractionError), but a record is always returned.
func (e *Extractor) Extract(doc *parser.Document, pageURL string) (*PageRecord, error) {
	record := &PageRecord{
		URL:        pageURL,
		Headings:   []Heading{},
		Paragraphs: []string{},
		Links:      []Link{},
		Images:     []Image{},
		Forms:      []Form{},
		Scripts:    []string{},
		Meta:       map[string]string{},
		FetchedAt:  e.now(),
	}

	var errs []error
	field := func(name string, fn func()) {
		if err := safely(fn); err != nil {
			errs = append(errs, &ExtractionError{URL: pageURL, Field: name, Cause: err})
		}
	}

	field("title", func() { record.Title = extractTitle(doc) })
	field("headings", func() { record.Headings = extractHeadings(doc) })
	field("paragraphs", func() { record.Paragraphs = extractParagraphs(doc) })
	field("links", func() { record.Links = extractLinks(doc) })
	field("images", func() { record.Images = extractImages(doc) })
	field("forms", func() { record.Forms = extractForms(doc) })
	field("scripts", func() { record.Scripts = extractScripts(doc) })
	field("meta", func() { record.Meta = extractMeta(doc) })

	return record, errors.Join(errs...)
}

// safely runs fn, converting a panic into an error
func safely(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn()
	return nil
}

func extractTitle(doc *parser.Document) string {
	if title, ok := doc.First("title"); ok {
		return title.Text()
	}
	return ""
}

func extractHeadings(doc *parser.Document) []Heading {
	headings := []Heading{}
	for _, h := range doc.FindAll("h1", "h2", "h3") {
		text := h.Text()
		if text == "" {
			continue
		}
		level, err := strconv.Atoi(strings.TrimPrefix(h.Tag(), "h"))
		if err != nil {
			continue
		}
		headings = append(headings, Heading{Level: level, Text: text})
	}
	return headings
}

func extractParagraphs(doc *parser.Document) []string {
	paragraphs := []string{}
	for _, p := range doc.FindAll("p") {
		if text := p.Text(); utf8.RuneCountInString(text) > minParagraphLength {
			paragraphs = append(paragraphs, text)
		}
	}
	return paragraphs
}

func extractLinks(doc *parser.Document) []Link {
	links := []Link{}
	for _, a := range doc.FindAll("a") {
		href, ok := a.Attr("href")
		if !ok {
			continue
		}
		links = append(links, Link{Text: a.Text(), Href: href})
	}
	return links
}

func extractImages(doc *parser.Document) []Image {
	images := []Image{}
	for _, img := range doc.FindAll("img") {
		images = append(images, Image{Src: img.AttrOr("src", ""), Alt: img.AttrOr("alt", "")})
	}
	return images
}

func extractForms(doc *parser.Document) []Form {
	forms := []Form{}
	for _, form := range doc.FindAll("form") {
		forms = append(forms, Form{Action: form.AttrOr("action", ""), Method: form.AttrOr("method", "get")})
	}
	return forms
}

func extractScripts(doc *parser.Document) []string {
	scripts := []string{}
	for _, script := range doc.FindAll("script") {
		if src, ok := script.Attr("src"); ok {
			scripts = append(scripts, src)
		}
	}
	return scripts
}

// extractMeta keys meta tags by name, falling back to property (og:title
// and friends). Tags without a key or without content are skipped.
func extractMeta(doc *parser.Document) map[string]string {
	meta := map[string]string{}
	for _, m := range doc.FindAll("meta") {
		key := m.AttrOr("name", "")
		if key == "" {
			key = m.AttrOr("property", "")
		}
		content := m.AttrOr("content", "")
		if key == "" || content == "" {
			continue
		}
		meta[key] = content
	}
	return meta
}
