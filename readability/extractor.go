// Package readability provides a fallback main content extractor based on
// Mozilla's Readability algorithm.
package readability

import (
	"net/url"
	"strings"

	"github.com/fwojciec/docrag"
	"github.com/go-shiori/go-readability"
)

var _ docrag.Extractor = (*Extractor)(nil)

// Extractor implements docrag.Extractor using go-readability.
type Extractor struct{}

// NewExtractor creates a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract returns the readable article in rawHTML. Relative links in the
// result are resolved against pageURL when it parses.
func (e *Extractor) Extract(rawHTML, pageURL string) (*docrag.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, docrag.Errorf(docrag.EINVALID, "empty HTML input")
	}

	var base *url.URL
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		base = u
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), base)
	if err != nil {
		return nil, docrag.Errorf(docrag.ECRAWL, "readability: %v", err)
	}

	return &docrag.ExtractResult{
		Title:       strings.TrimSpace(article.Title),
		SiteName:    article.SiteName,
		ContentHTML: article.Content,
	}, nil
}
