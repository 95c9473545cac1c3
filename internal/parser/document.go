// Package parser provides the HTML parsing capability used by the crawler.
// A parsed Document exposes tag lookup, attribute access and trimmed text,
// which is everything the page extractor and link discovery need.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page
type Document struct {
	doc *goquery.Document
	url string
}

// Element is a single element of a parsed page
type Element struct {
	sel *goquery.Selection
}

// Parse decodes body using the charset declared in contentType (or sniffed
// from the markup) and parses it into a Document. Malformed markup is
// repaired by the HTML5 tokenizer rather than rejected.
func Parse(body []byte, contentType string) (*Document, error) {
	var r io.Reader = bytes.NewReader(body)
	if decoded, err := charset.NewReader(r, contentType); err == nil {
		r = decoded
	} else {
		r = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString parses an in-memory UTF-8 HTML string
func ParseString(markup string) (*Document, error) {
	return Parse([]byte(markup), "text/html; charset=utf-8")
}

// URL returns the address the document was served from, if known
func (d *Document) URL() string {
	if d == nil {
		return ""
	}
	return d.url
}

// SetURL records the address the document was served from
func (d *Document) SetURL(u string) {
	if d != nil {
		d.url = u
	}
}

// FindAll returns every element matching any of the given tag names, in
// document order
func (d *Document) FindAll(tags ...string) []Element {
	if d == nil || d.doc == nil || len(tags) == 0 {
		return nil
	}

	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = strings.ToLower(strings.TrimSpace(tag))
	}

	sel := d.doc.Find(strings.Join(names, ", "))
	elems := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elems = append(elems, Element{sel: s})
	})
	return elems
}

// First returns the first element with the given tag name
func (d *Document) First(tag string) (Element, bool) {
	elems := d.FindAll(tag)
	if len(elems) == 0 {
		return Element{}, false
	}
	return elems[0], true
}

// Tag returns the lower-cased element name
func (e Element) Tag() string {
	if e.sel == nil {
		return ""
	}
	return goquery.NodeName(e.sel)
}

// Attr returns the attribute value and whether the attribute is present
func (e Element) Attr(name string) (string, bool) {
	if e.sel == nil {
		return "", false
	}
	return e.sel.Attr(name)
}

// AttrOr returns the attribute value or def when it is absent
func (e Element) AttrOr(name, def string) string {
	if v, ok := e.Attr(name); ok {
		return v
	}
	return def
}

// Text returns the combined text of the element and its descendants with
// surrounding whitespace trimmed
func (e Element) Text() string {
	if e.sel == nil {
		return ""
	}
	return strings.TrimSpace(e.sel.Text())
}
