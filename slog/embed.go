package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docrag"
)

var _ docrag.Embedder = (*LoggingEmbedder)(nil)

// LoggingEmbedder wraps an embedding provider with logging.
type LoggingEmbedder struct {
	next   docrag.Embedder
	logger *slog.Logger
}

// NewLoggingEmbedder creates a new LoggingEmbedder.
func NewLoggingEmbedder(next docrag.Embedder, logger *slog.Logger) *LoggingEmbedder {
	return &LoggingEmbedder{next: next, logger: logger}
}

// Embed logs the number of texts sent and the dimension returned.
func (e *LoggingEmbedder) Embed(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	defer func(begin time.Time) {
		var dims int
		if len(vectors) > 0 {
			dims = len(vectors[0])
		}
		logCall(ctx, e.logger, "embed", begin, err, "texts", len(texts), "vectors", len(vectors), "dimensions", dims)
	}(time.Now())
	return e.next.Embed(ctx, texts)
}
