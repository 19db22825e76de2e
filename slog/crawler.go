package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docrag"
)

var _ docrag.Crawler = (*LoggingCrawler)(nil)

// LoggingCrawler wraps a Crawler with logging.
type LoggingCrawler struct {
	next   docrag.Crawler
	logger *slog.Logger
}

// NewLoggingCrawler creates a new LoggingCrawler.
func NewLoggingCrawler(next docrag.Crawler, logger *slog.Logger) *LoggingCrawler {
	return &LoggingCrawler{next: next, logger: logger}
}

// Crawl logs the URL, title and markdown size of the crawled page.
func (c *LoggingCrawler) Crawl(ctx context.Context, url string) (page *docrag.Page, err error) {
	defer func(begin time.Time) {
		var title string
		var size int
		if page != nil {
			title, size = page.Title, len(page.Content)
		}
		logCall(ctx, c.logger, "crawl", begin, err, "url", url, "title", title, "bytes", size)
	}(time.Now())
	return c.next.Crawl(ctx, url)
}
