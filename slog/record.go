package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docrag"
)

var _ docrag.RecordStore = (*LoggingRecordStore)(nil)

// LoggingRecordStore wraps a RecordStore with logging.
type LoggingRecordStore struct {
	next   docrag.RecordStore
	logger *slog.Logger
}

// NewLoggingRecordStore creates a new LoggingRecordStore.
func NewLoggingRecordStore(next docrag.RecordStore, logger *slog.Logger) *LoggingRecordStore {
	return &LoggingRecordStore{next: next, logger: logger}
}

func (s *LoggingRecordStore) UpsertRecords(ctx context.Context, records []*docrag.Record) (n int, err error) {
	defer func(begin time.Time) {
		var url string
		if len(records) > 0 {
			url = records[0].SourceURL
		}
		logCall(ctx, s.logger, "upsert records", begin, err, "url", url, "records", len(records), "written", n)
	}(time.Now())
	return s.next.UpsertRecords(ctx, records)
}

func (s *LoggingRecordStore) DeleteBySource(ctx context.Context, sourceURL string) (n int, err error) {
	defer func(begin time.Time) {
		logCall(ctx, s.logger, "delete records", begin, err, "url", sourceURL, "deleted", n)
	}(time.Now())
	return s.next.DeleteBySource(ctx, sourceURL)
}

func (s *LoggingRecordStore) ReplaceSource(ctx context.Context, sourceURL string, records []*docrag.Record) (n int, err error) {
	defer func(begin time.Time) {
		logCall(ctx, s.logger, "replace records", begin, err, "url", sourceURL, "records", len(records), "written", n)
	}(time.Now())
	return s.next.ReplaceSource(ctx, sourceURL, records)
}

func (s *LoggingRecordStore) CountBySource(ctx context.Context, sourceURL string) (n int, err error) {
	defer func(begin time.Time) {
		logCall(ctx, s.logger, "count records", begin, err, "url", sourceURL, "count", n)
	}(time.Now())
	return s.next.CountBySource(ctx, sourceURL)
}

func (s *LoggingRecordStore) SimilaritySearch(ctx context.Context, vector []float32, topK int, filter docrag.RecordFilter) (results []*docrag.QueryResult, err error) {
	defer func(begin time.Time) {
		attrs := []any{"top_k", topK, "results", len(results)}
		if filter.Source != nil {
			attrs = append(attrs, "source", *filter.Source)
		}
		if filter.SourceURL != nil {
			attrs = append(attrs, "url", *filter.SourceURL)
		}
		logCall(ctx, s.logger, "similarity search", begin, err, attrs...)
	}(time.Now())
	return s.next.SimilaritySearch(ctx, vector, topK, filter)
}

func (s *LoggingRecordStore) ListSources(ctx context.Context) (sources []string, err error) {
	defer func(begin time.Time) {
		logCall(ctx, s.logger, "list sources", begin, err, "count", len(sources))
	}(time.Now())
	return s.next.ListSources(ctx)
}
