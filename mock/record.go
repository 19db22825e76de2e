package mock

import (
	"context"

	"github.com/fwojciec/docrag"
)

var _ docrag.RecordStore = (*RecordStore)(nil)

// RecordStore is a mock implementation of docrag.RecordStore.
type RecordStore struct {
	UpsertRecordsFn    func(ctx context.Context, records []*docrag.Record) (int, error)
	DeleteBySourceFn   func(ctx context.Context, sourceURL string) (int, error)
	ReplaceSourceFn    func(ctx context.Context, sourceURL string, records []*docrag.Record) (int, error)
	CountBySourceFn    func(ctx context.Context, sourceURL string) (int, error)
	SimilaritySearchFn func(ctx context.Context, vector []float32, topK int, filter docrag.RecordFilter) ([]*docrag.QueryResult, error)
	ListSourcesFn      func(ctx context.Context) ([]string, error)
}

func (s *RecordStore) UpsertRecords(ctx context.Context, records []*docrag.Record) (int, error) {
	return s.UpsertRecordsFn(ctx, records)
}

func (s *RecordStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	return s.DeleteBySourceFn(ctx, sourceURL)
}

func (s *RecordStore) ReplaceSource(ctx context.Context, sourceURL string, records []*docrag.Record) (int, error) {
	return s.ReplaceSourceFn(ctx, sourceURL, records)
}

func (s *RecordStore) CountBySource(ctx context.Context, sourceURL string) (int, error) {
	return s.CountBySourceFn(ctx, sourceURL)
}

func (s *RecordStore) SimilaritySearch(ctx context.Context, vector []float32, topK int, filter docrag.RecordFilter) ([]*docrag.QueryResult, error) {
	return s.SimilaritySearchFn(ctx, vector, topK, filter)
}

func (s *RecordStore) ListSources(ctx context.Context) ([]string, error) {
	return s.ListSourcesFn(ctx)
}
