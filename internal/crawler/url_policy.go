package crawler

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// URLPolicy decides which URLs belong to a crawl and how they are keyed.
// A URL is crawlable when it is http(s), its host equals the seed's host
// exactly, and its path extension is not denylisted.
type URLPolicy struct {
	baseDomain string
	denylist   map[string]struct{}
}

// NewURLPolicy builds a policy restricted to the host of seedURL
func NewURLPolicy(seedURL string, denylist []string) (*URLPolicy, error) {
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("seed URL %q has no host", seedURL)
	}

	deny := make(map[string]struct{}, len(denylist))
	for _, ext := range denylist {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		deny[ext] = struct{}{}
	}

	return &URLPolicy{baseDomain: u.Host, denylist: deny}, nil
}

// BaseDomain returns the host every crawled URL must have
func (p *URLPolicy) BaseDomain() string {
	return p.baseDomain
}

// Normalize returns the canonical form of rawURL: scheme, host and path with
// query and fragment removed. Unparseable input is returned unchanged, and
// IsValid will reject it.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Normalize is the policy-bound form of the package-level Normalize
func (p *URLPolicy) Normalize(rawURL string) string {
	return Normalize(rawURL)
}

// IsValid reports whether rawURL may be crawled. It never fails: malformed
// URLs are simply not valid.
func (p *URLPolicy) IsValid(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	if u.Host != p.baseDomain {
		return false
	}

	if ext := path.Ext(strings.ToLower(u.Path)); ext != "" {
		if _, denied := p.denylist[ext]; denied {
			return false
		}
	}

	return true
}

// Resolve makes href absolute against the page it was found on
func (p *URLPolicy) Resolve(pageURL, href string) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL: %w", err)
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid href: %w", err)
	}

	return base.ResolveReference(ref).String(), nil
}

// Canonicalize resolves href against pageURL and returns its canonical form
// if the result may be crawled
func (p *URLPolicy) Canonicalize(pageURL, href string) (string, bool) {
	abs, err := p.Resolve(pageURL, href)
	if err != nil {
		return "", false
	}

	canonical := Normalize(abs)
	if !p.IsValid(canonical) {
		return "", false
	}
	return canonical, true
}
