package mock

import (
	"context"

	"github.com/fwojciec/docrag"
)

var (
	_ docrag.Embedder      = (*Embedder)(nil)
	_ docrag.BatchEmbedder = (*BatchEmbedder)(nil)
	_ docrag.TokenCounter  = (*TokenCounter)(nil)
)

// Embedder is a mock implementation of docrag.Embedder.
type Embedder struct {
	EmbedFn func(ctx context.Context, texts []string) ([][]float32, error)
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedFn(ctx, texts)
}

// BatchEmbedder is a mock implementation of docrag.BatchEmbedder.
type BatchEmbedder struct {
	EmbedBatchFn func(ctx context.Context, texts []string) (*docrag.EmbedResult, error)
}

func (e *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) (*docrag.EmbedResult, error) {
	return e.EmbedBatchFn(ctx, texts)
}

// TokenCounter is a mock implementation of docrag.TokenCounter.
type TokenCounter struct {
	CountTokensFn func(ctx context.Context, text string) (int, error)
}

func (tc *TokenCounter) CountTokens(ctx context.Context, text string) (int, error) {
	return tc.CountTokensFn(ctx, text)
}
