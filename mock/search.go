package mock

import (
	"context"

	"github.com/fwojciec/docrag"
)

var (
	_ docrag.SearchService  = (*SearchService)(nil)
	_ docrag.Asker          = (*Asker)(nil)
	_ docrag.Ingester       = (*Ingester)(nil)
	_ docrag.SitemapService = (*SitemapService)(nil)
)

// SearchService is a mock implementation of docrag.SearchService.
type SearchService struct {
	SearchFn func(ctx context.Context, query string, opts docrag.SearchOptions) ([]*docrag.QueryResult, error)
}

func (s *SearchService) Search(ctx context.Context, query string, opts docrag.SearchOptions) ([]*docrag.QueryResult, error) {
	return s.SearchFn(ctx, query, opts)
}

// Asker is a mock implementation of docrag.Asker.
type Asker struct {
	AskFn func(ctx context.Context, question string, opts docrag.SearchOptions) (string, error)
}

func (a *Asker) Ask(ctx context.Context, question string, opts docrag.SearchOptions) (string, error) {
	return a.AskFn(ctx, question, opts)
}

// Ingester is a mock implementation of docrag.Ingester.
type Ingester struct {
	IngestPageFn    func(ctx context.Context, url string) *docrag.PageOutcome
	IngestContentFn func(ctx context.Context, page *docrag.Page) *docrag.PageOutcome
	IngestPagesFn   func(ctx context.Context, urls []string, opts docrag.IngestOptions) (*docrag.BatchResult, error)
}

func (i *Ingester) IngestPage(ctx context.Context, url string) *docrag.PageOutcome {
	return i.IngestPageFn(ctx, url)
}

func (i *Ingester) IngestContent(ctx context.Context, page *docrag.Page) *docrag.PageOutcome {
	return i.IngestContentFn(ctx, page)
}

func (i *Ingester) IngestPages(ctx context.Context, urls []string, opts docrag.IngestOptions) (*docrag.BatchResult, error) {
	return i.IngestPagesFn(ctx, urls, opts)
}

// SitemapService is a mock implementation of docrag.SitemapService.
type SitemapService struct {
	ParseSitemapFn func(ctx context.Context, sitemapURL string, filter *docrag.URLFilter) ([]string, error)
}

func (s *SitemapService) ParseSitemap(ctx context.Context, sitemapURL string, filter *docrag.URLFilter) ([]string, error) {
	return s.ParseSitemapFn(ctx, sitemapURL, filter)
}
