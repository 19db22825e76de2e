// Package trafilatura implements docrag.Extractor on top of go-trafilatura.
package trafilatura

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/fwojciec/docrag"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// Ensure Extractor implements docrag.Extractor at compile time.
var _ docrag.Extractor = (*Extractor)(nil)

// Extractor wraps go-trafilatura to extract main content from HTML.
type Extractor struct {
	// IncludeLinks keeps anchors in the extracted content.
	IncludeLinks bool
}

// NewExtractor creates a new Extractor that keeps links and tables.
func NewExtractor() *Extractor {
	return &Extractor{IncludeLinks: true}
}

// Extract processes raw HTML fetched from pageURL and returns the main content.
func (e *Extractor) Extract(rawHTML string, pageURL string) (*docrag.ExtractResult, error) {
	if strings.TrimSpace(rawHTML) == "" {
		return nil, docrag.Errorf(docrag.EINVALID, "empty HTML input")
	}

	opts := trafilatura.Options{
		EnableFallback: true,
		IncludeLinks:   e.IncludeLinks,
	}
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		opts.OriginalURL = u
	}

	result, err := trafilatura.Extract(strings.NewReader(rawHTML), opts)
	if err != nil {
		return nil, docrag.Errorf(docrag.ECRAWL, "extract %s: %v", pageURL, err)
	}

	var contentHTML string
	if result.ContentNode != nil {
		contentHTML, err = renderNode(result.ContentNode)
		if err != nil {
			return nil, docrag.Errorf(docrag.ECRAWL, "render %s: %v", pageURL, err)
		}
	}

	return &docrag.ExtractResult{
		Title:       strings.TrimSpace(result.Metadata.Title),
		SiteName:    strings.TrimSpace(result.Metadata.Sitename),
		ContentHTML: contentHTML,
	}, nil
}

func renderNode(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}
