package mock

import (
	"context"

	"github.com/fwojciec/docrag"
)

// Compile-time interface verification.
var (
	_ docrag.Crawler       = (*Crawler)(nil)
	_ docrag.Fetcher       = (*Fetcher)(nil)
	_ docrag.Extractor     = (*Extractor)(nil)
	_ docrag.Converter     = (*Converter)(nil)
	_ docrag.DomainLimiter = (*DomainLimiter)(nil)
)

// Crawler is a mock implementation of docrag.Crawler.
type Crawler struct {
	CrawlFn func(ctx context.Context, url string) (*docrag.Page, error)
}

func (c *Crawler) Crawl(ctx context.Context, url string) (*docrag.Page, error) {
	return c.CrawlFn(ctx, url)
}

// Fetcher is a mock implementation of docrag.Fetcher.
type Fetcher struct {
	FetchFn func(ctx context.Context, url string) (string, error)
	CloseFn func() error
}

func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.FetchFn(ctx, url)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

// Extractor is a mock implementation of docrag.Extractor.
type Extractor struct {
	ExtractFn func(html, pageURL string) (*docrag.ExtractResult, error)
}

func (e *Extractor) Extract(html, pageURL string) (*docrag.ExtractResult, error) {
	return e.ExtractFn(html, pageURL)
}

// Converter is a mock implementation of docrag.Converter.
type Converter struct {
	ConvertFn func(html, pageURL string) (string, error)
}

func (c *Converter) Convert(html, pageURL string) (string, error) {
	return c.ConvertFn(html, pageURL)
}

// DomainLimiter is a mock implementation of docrag.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain string) error
}

func (d *DomainLimiter) Wait(ctx context.Context, domain string) error {
	return d.WaitFn(ctx, domain)
}
