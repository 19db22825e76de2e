package http

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/docrag"
)

// maxSitemapDepth bounds sitemap index nesting.
const maxSitemapDepth = 5

// Ensure SitemapService implements docrag.SitemapService.
var _ docrag.SitemapService = (*SitemapService)(nil)

// SitemapService expands sitemaps into page URLs via HTTP.
type SitemapService struct {
	client *http.Client
}

// NewSitemapService creates a new SitemapService with the given HTTP client.
// If client is nil, http.DefaultClient is used.
func NewSitemapService(client *http.Client) *SitemapService {
	if client == nil {
		client = http.DefaultClient
	}
	return &SitemapService{client: client}
}

// ParseSitemap returns the page URLs listed by the sitemap at sitemapURL,
// following sitemap indexes. URLs are deduplicated in document order.
// Returns an empty slice (not nil) if the sitemap lists no URLs.
func (s *SitemapService) ParseSitemap(ctx context.Context, sitemapURL string, filter *docrag.URLFilter) ([]string, error) {
	urls, err := s.processSitemap(ctx, sitemapURL, make(map[string]bool), 0)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(urls))
	result := []string{}
	for _, u := range urls {
		if seen[u] || !filter.Match(u) {
			continue
		}
		seen[u] = true
		result = append(result, u)
	}
	return result, nil
}

// processSitemap fetches and parses a sitemap, handling both urlset and sitemapindex.
func (s *SitemapService) processSitemap(ctx context.Context, sitemapURL string, seen map[string]bool, depth int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Avoid processing the same sitemap twice
	if seen[sitemapURL] {
		return nil, nil
	}
	seen[sitemapURL] = true

	body, err := s.fetchURL(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(body); err != nil {
		return nil, docrag.Errorf(docrag.ECRAWL, "parsing sitemap %s: %v", sitemapURL, err)
	}

	root := doc.Root()
	if root == nil {
		return nil, docrag.Errorf(docrag.ECRAWL, "empty sitemap %s", sitemapURL)
	}

	switch root.Tag {
	case "sitemapindex":
		if depth >= maxSitemapDepth {
			return nil, docrag.Errorf(docrag.ECRAWL, "sitemap index nested deeper than %d at %s", maxSitemapDepth, sitemapURL)
		}
		return s.processSitemapIndex(ctx, root, seen, depth)
	case "urlset":
		return locs(root, "url"), nil
	}
	return nil, docrag.Errorf(docrag.ECRAWL, "%s is not a sitemap: root element <%s>", sitemapURL, root.Tag)
}

// processSitemapIndex processes a <sitemapindex> element recursively.
func (s *SitemapService) processSitemapIndex(ctx context.Context, root *etree.Element, seen map[string]bool, depth int) ([]string, error) {
	var allURLs []string
	for _, sitemapURL := range locs(root, "sitemap") {
		urls, err := s.processSitemap(ctx, sitemapURL, seen, depth+1)
		if err != nil {
			return nil, err
		}
		allURLs = append(allURLs, urls...)
	}
	return allURLs, nil
}

// locs returns the trimmed <loc> text of each child element named tag.
func locs(root *etree.Element, tag string) []string {
	var urls []string
	for _, el := range root.SelectElements(tag) {
		loc := el.SelectElement("loc")
		if loc == nil {
			continue
		}
		if u := strings.TrimSpace(loc.Text()); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// fetchURL fetches a URL and returns the response body.
func (s *SitemapService) fetchURL(ctx context.Context, targetURL string) (io.ReadCloser, error) {
	req, err := newRequest(ctx, http.MethodGet, targetURL)
	if err != nil {
		return nil, docrag.Errorf(docrag.ECRAWL, "%v", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, docrag.Errorf(docrag.ECRAWL, "fetching sitemap %s: %v", targetURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, docrag.Errorf(docrag.ECRAWL, "HTTP %d for %s", resp.StatusCode, targetURL)
	}

	return resp.Body, nil
}

