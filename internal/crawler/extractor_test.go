package crawler

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/masahif/linkharvest/internal/parser"
)

func mustParse(t *testing.T, markup string) *parser.Document {
	t.Helper()
	doc, err := parser.ParseString(markup)
	if err != nil {
		t.Fatalf("Failed to parse HTML: %v", err)
	}
	return doc
}

func fixedExtractor(ts time.Time) *Extractor {
	return &Extractor{now: func() time.Time { return ts }}
}

func TestExtract(t *testing.T) {
	htmlContent := `
<!DOCTYPE html>
<html>
<head>
	<title>  Quotes to Scrape  </title>
	<meta name="description" content="A page of quotes">
	<meta property="og:title" content="Quotes">
	<meta name="keywords">
	<meta charset="utf-8">
	<script src="/static/app.js"></script>
	<script>var inline = true;</script>
</head>
<body>
	<h2>Second level first</h2>
	<h1> Main heading </h1>
	<h3>   </h3>
	<h4>Ignored level</h4>
	<p>Too short to keep.</p>
	<p>This paragraph is long enough to be kept as content.</p>
	<a href="/page/2/">Next <span>→</span></a>
	<a href="">Empty href</a>
	<a name="anchor">No href</a>
	<img src="/img/logo.png" alt="Logo">
	<img src="/img/plain.png">
	<form action="/search"><input name="q"></form>
	<form action="/login" method="post"></form>
</body>
</html>
`

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	record, err := fixedExtractor(ts).Extract(mustParse(t, htmlContent), "http://example.test/")
	if err != nil {
		t.Fatalf("Unexpected extraction error: %v", err)
	}

	if record.URL != "http://example.test/" {
		t.Errorf("URL = %q", record.URL)
	}
	if !record.FetchedAt.Equal(ts) {
		t.Errorf("FetchedAt = %v, want %v", record.FetchedAt, ts)
	}

	if record.Title != "Quotes to Scrape" {
		t.Errorf("Expected trimmed title, got %q", record.Title)
	}

	wantHeadings := []Heading{{Level: 2, Text: "Second level first"}, {Level: 1, Text: "Main heading"}}
	if !reflect.DeepEqual(record.Headings, wantHeadings) {
		t.Errorf("Headings = %+v, want %+v", record.Headings, wantHeadings)
	}

	wantParagraphs := []string{"This paragraph is long enough to be kept as content."}
	if !reflect.DeepEqual(record.Paragraphs, wantParagraphs) {
		t.Errorf("Paragraphs = %q, want %q", record.Paragraphs, wantParagraphs)
	}

	wantLinks := []Link{{Text: "Next →", Href: "/page/2/"}, {Text: "Empty href", Href: ""}}
	if !reflect.DeepEqual(record.Links, wantLinks) {
		t.Errorf("Links = %+v, want %+v", record.Links, wantLinks)
	}

	wantImages := []Image{{Src: "/img/logo.png", Alt: "Logo"}, {Src: "/img/plain.png", Alt: ""}}
	if !reflect.DeepEqual(record.Images, wantImages) {
		t.Errorf("Images = %+v, want %+v", record.Images, wantImages)
	}

	wantForms := []Form{{Action: "/search", Method: "get"}, {Action: "/login", Method: "post"}}
	if !reflect.DeepEqual(record.Forms, wantForms) {
		t.Errorf("Forms = %+v, want %+v", record.Forms, wantForms)
	}

	if !reflect.DeepEqual(record.Scripts, []string{"/static/app.js"}) {
		t.Errorf("Scripts = %q", record.Scripts)
	}

	wantMeta := map[string]string{"description": "A page of quotes", "og:title": "Quotes"}
	if !reflect.DeepEqual(record.Meta, wantMeta) {
		t.Errorf("Meta = %v, want %v", record.Meta, wantMeta)
	}
}

func TestExtractParagraphLengthThreshold(t *testing.T) {
	short := strings.Repeat("a", 15)
	long := strings.Repeat("b", 25)
	exact := strings.Repeat("c", 20)

	doc := mustParse(t, "<p>"+short+"</p><p>"+long+"</p><p>"+exact+"</p>")
	record, _ := NewExtractor().Extract(doc, "http://example.test/")

	if !reflect.DeepEqual(record.Paragraphs, []string{long}) {
		t.Errorf("Paragraphs = %q, want only the 25 character one", record.Paragraphs)
	}
}

func TestExtractParagraphLengthCountsRunes(t *testing.T) {
	// 21 runes, well over 21 bytes
	text := strings.Repeat("é", 21)
	record, _ := NewExtractor().Extract(mustParse(t, "<p>"+text+"</p><p>"+strings.Repeat("é", 11)+"</p>"), "http://example.test/")

	if len(record.Paragraphs) != 1 || record.Paragraphs[0] != text {
		t.Errorf("Paragraphs = %q", record.Paragraphs)
	}
}

func TestExtractEmptyDocument(t *testing.T) {
	record, err := NewExtractor().Extract(mustParse(t, ""), "http://example.test/empty")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if record.Title != "" {
		t.Errorf("Expected empty title, got %q", record.Title)
	}
	if record.Headings == nil || record.Paragraphs == nil || record.Links == nil || record.Meta == nil {
		t.Error("Expected empty, non-nil collections")
	}
	if len(record.Links)+len(record.Images)+len(record.Forms)+len(record.Scripts) != 0 {
		t.Errorf("Expected no elements, got %+v", record)
	}
}

func TestExtractNilDocument(t *testing.T) {
	record, err := NewExtractor().Extract(nil, "http://example.test/")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record == nil || record.URL != "http://example.test/" {
		t.Fatalf("Expected a record even without a document, got %+v", record)
	}
}

func TestExtractMalformedMarkup(t *testing.T) {
	doc := mustParse(t, `<title>Broken<p>This paragraph never closes properly at all<a href="/x">x`)
	record, err := NewExtractor().Extract(doc, "http://example.test/")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if record == nil {
		t.Fatal("Expected a record")
	}
}

func TestSafelyRecoversPanics(t *testing.T) {
	err := safely(func() { panic("boom") })
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Expected recovered panic, got %v", err)
	}

	if err := safely(func() {}); err != nil {
		t.Errorf("Expected nil error, got %v", err)
	}
}

func TestExtractionErrorUnwraps(t *testing.T) {
	cause := errors.New("bad node")
	err := errors.Join(&ExtractionError{URL: "http://example.test/", Field: "links", Cause: cause})

	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) || extractionErr.Field != "links" {
		t.Errorf("Expected *ExtractionError for links, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable")
	}
}
