package docrag

import (
	"context"
	"time"
)

// Page represents a crawled page converted to markdown.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"` // Markdown
	Depth     int       `json:"depth,omitempty"`
	CrawledAt time.Time `json:"crawledAt"`
}

// Validate returns an error if the page contains invalid fields.
func (p *Page) Validate() error {
	if p.URL == "" {
		return Errorf(EINVALID, "page URL required")
	}
	return nil
}

// Crawler retrieves a single page as markdown.
// Implementations hide fetching, retry logic, content extraction,
// and markdown conversion. Failures carry the ECRAWL code.
type Crawler interface {
	Crawl(ctx context.Context, url string) (*Page, error)
}

// Fetcher retrieves raw content from URLs.
type Fetcher interface {
	// Fetch retrieves the body of the URL.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (body string, err error)

	// Close releases any held resources.
	Close() error
}

// ExtractResult holds the extracted content from an HTML page.
type ExtractResult struct {
	// Title is the page title extracted from metadata.
	Title string

	// SiteName is the name of the site the page belongs to, if known.
	SiteName string

	// ContentHTML is the main content as clean HTML.
	// Boilerplate (nav, footer, sidebar, ads) has been removed.
	ContentHTML string
}

// Extractor extracts main content from HTML pages, removing boilerplate.
type Extractor interface {
	// Extract processes raw HTML fetched from pageURL and returns the main content.
	Extract(html string, pageURL string) (*ExtractResult, error)
}

// Converter converts HTML to Markdown.
type Converter interface {
	// Convert transforms HTML content into Markdown.
	// Relative links are resolved against pageURL.
	Convert(html string, pageURL string) (string, error)
}

// DomainLimiter provides per-domain rate limiting.
type DomainLimiter interface {
	// Wait blocks until the rate limit allows a request to the domain.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain string) error
}
