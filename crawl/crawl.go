// Package crawl turns a URL into a docrag.Page. It fetches the body with
// retries, extracts the main content and converts it to markdown. Plain
// text and markdown files skip extraction.
package crawl

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/fwojciec/docrag"
)

var _ docrag.Crawler = (*Crawler)(nil)

// Crawler implements docrag.Crawler.
type Crawler struct {
	Fetcher   docrag.Fetcher
	Extractor docrag.Extractor
	Converter docrag.Converter

	// Fallback, if set, is tried when Extractor fails or finds no content.
	Fallback docrag.Extractor

	// RateLimiter, if set, is waited on before every fetch attempt.
	RateLimiter docrag.DomainLimiter

	// RetryDelays are the pauses between fetch attempts. Nil means
	// DefaultRetryDelays.
	RetryDelays []time.Duration

	Logger *slog.Logger

	// Now returns the crawl time. Defaults to time.Now.
	Now func() time.Time
}

// Crawl fetches rawURL and returns it as a markdown page.
// All failures other than cancellation carry the ECRAWL code.
func (c *Crawler) Crawl(ctx context.Context, rawURL string) (*docrag.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, docrag.Errorf(docrag.ECRAWL, "invalid URL %q", rawURL)
	}

	fetch := func(ctx context.Context, url string) (string, error) {
		if c.RateLimiter != nil {
			if err := c.RateLimiter.Wait(ctx, u.Host); err != nil {
				return "", err
			}
		}
		return c.Fetcher.Fetch(ctx, url)
	}

	body, err := FetchWithRetry(ctx, rawURL, fetch, c.Logger, c.retryDelays())
	if err != nil {
		return nil, crawlError(ctx, rawURL, err)
	}

	page := &docrag.Page{URL: rawURL, CrawledAt: c.now()}

	if DetectKind(rawURL) == KindTextFile {
		page.Title = path.Base(u.Path)
		page.Content = strings.TrimSpace(body)
		return page, nil
	}

	extracted, err := c.extract(body, rawURL)
	if err != nil {
		return nil, crawlError(ctx, rawURL, err)
	}

	markdown, err := c.Converter.Convert(extracted.ContentHTML, rawURL)
	if err != nil {
		return nil, crawlError(ctx, rawURL, err)
	}

	page.Title = extracted.Title
	page.Content = markdown
	return page, nil
}

// extract runs Extractor, then Fallback when the first pass came up empty.
func (c *Crawler) extract(body, rawURL string) (*docrag.ExtractResult, error) {
	extracted, err := c.Extractor.Extract(body, rawURL)
	if c.Fallback != nil && (err != nil || strings.TrimSpace(extracted.ContentHTML) == "") {
		if fallback, ferr := c.Fallback.Extract(body, rawURL); ferr == nil && strings.TrimSpace(fallback.ContentHTML) != "" {
			if fallback.Title == "" && err == nil {
				fallback.Title = extracted.Title
			}
			return fallback, nil
		}
	}
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(extracted.ContentHTML) == "" {
		return nil, docrag.Errorf(docrag.ECRAWL, "no main content found at %s", rawURL)
	}
	return extracted, nil
}

func (c *Crawler) retryDelays() []time.Duration {
	if c.RetryDelays == nil {
		return DefaultRetryDelays()
	}
	return c.RetryDelays
}

func (c *Crawler) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// crawlError gives err the ECRAWL code unless the context ended.
func crawlError(ctx context.Context, rawURL string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if docrag.ErrorCode(err) == docrag.ECRAWL {
		return err
	}
	var e *docrag.Error
	if errors.As(err, &e) {
		return docrag.Errorf(docrag.ECRAWL, "crawl %s: %s", rawURL, e.Message)
	}
	return docrag.Errorf(docrag.ECRAWL, "crawl %s: %v", rawURL, err)
}
