package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docrag"
)

// Ensure LoggingSitemapService implements docrag.SitemapService.
var _ docrag.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService wraps a SitemapService with logging.
type LoggingSitemapService struct {
	next   docrag.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next docrag.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// ParseSitemap delegates to the wrapped service and logs the URL count.
func (s *LoggingSitemapService) ParseSitemap(ctx context.Context, sitemapURL string, filter *docrag.URLFilter) (urls []string, err error) {
	defer func(begin time.Time) {
		logCall(ctx, s.logger, "parse sitemap", begin, err, "url", sitemapURL, "count", len(urls))
	}(time.Now())
	return s.next.ParseSitemap(ctx, sitemapURL, filter)
}
