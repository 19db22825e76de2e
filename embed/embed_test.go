package embed_test

import (
	"context"
	"errors"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/embed"
	"github.com/fwojciec/docrag/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

var noDelays = []time.Duration{0, 0, 0}

// vectorFor returns a deterministic two dimensional vector for text.
func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func echoProvider(calls *atomic.Int32) *mock.Embedder {
	return &mock.Embedder{
		EmbedFn: func(_ context.Context, texts []string) ([][]float32, error) {
			calls.Add(1)
			vectors := make([][]float32, len(texts))
			for i, t := range texts {
				vectors[i] = vectorFor(t)
			}
			return vectors, nil
		},
	}
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	t.Parallel()

	t.Run("does not call provider for zero texts", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		e := &embed.Embedder{Provider: echoProvider(&calls)}

		result, err := e.EmbedBatch(context.Background(), nil)

		require.NoError(t, err)
		assert.Empty(t, result.Vectors)
		assert.Empty(t, result.Failures)
		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("splits texts into batches and preserves order", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		var sizes []int
		provider := &mock.Embedder{
			EmbedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
				sizes = append(sizes, len(texts))
				return echoProvider(&calls).Embed(ctx, texts)
			},
		}
		e := &embed.Embedder{Provider: provider, BatchSize: 2}
		texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}

		result, err := e.EmbedBatch(context.Background(), texts)

		require.NoError(t, err)
		assert.Equal(t, []int{2, 2, 1}, sizes)
		for i, text := range texts {
			assert.Equal(t, vectorFor(text), result.Vectors[i])
		}
		assert.Empty(t, result.Failures)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		provider := &mock.Embedder{
			EmbedFn: func(_ context.Context, texts []string) ([][]float32, error) {
				if calls.Add(1) < 3 {
					return nil, errors.New("503 service unavailable")
				}
				return [][]float32{vectorFor(texts[0])}, nil
			},
		}
		e := &embed.Embedder{Provider: provider, RetryDelays: noDelays}

		result, err := e.EmbedBatch(context.Background(), []string{"hello"})

		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
		assert.Equal(t, vectorFor("hello"), result.Vectors[0])
	})

	t.Run("isolates text that keeps failing", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		provider := &mock.Embedder{
			EmbedFn: func(_ context.Context, texts []string) ([][]float32, error) {
				calls.Add(1)
				if slices.Contains(texts, "bad") {
					return nil, errors.New("invalid input")
				}
				vectors := make([][]float32, len(texts))
				for i, t := range texts {
					vectors[i] = vectorFor(t)
				}
				return vectors, nil
			},
		}
		e := &embed.Embedder{Provider: provider, RetryDelays: noDelays}

		result, err := e.EmbedBatch(context.Background(), []string{"one", "bad", "three"})

		require.NoError(t, err)
		assert.Equal(t, vectorFor("one"), result.Vectors[0])
		assert.Nil(t, result.Vectors[1])
		assert.Equal(t, vectorFor("three"), result.Vectors[2])
		require.Len(t, result.Failures, 1)
		assert.True(t, result.Failed(1))
		assert.Equal(t, docrag.EEMBED, docrag.ErrorCode(result.Failures[1]))
		// 4 batch attempts, then one attempt per text.
		assert.Equal(t, int32(4+3), calls.Load())
	})

	t.Run("does not retry configuration errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		provider := &mock.Embedder{
			EmbedFn: func(_ context.Context, _ []string) ([][]float32, error) {
				calls.Add(1)
				return nil, docrag.Errorf(docrag.ECONFIG, "invalid API key")
			},
		}
		e := &embed.Embedder{Provider: provider, RetryDelays: noDelays}

		result, err := e.EmbedBatch(context.Background(), []string{"a", "b"})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, docrag.ECONFIG, docrag.ErrorCode(err))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("rejects vectors of unexpected dimension", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		e := &embed.Embedder{Provider: echoProvider(&calls), Dimensions: 3}

		_, err := e.EmbedBatch(context.Background(), []string{"a"})

		assert.Equal(t, docrag.ECONFIG, docrag.ErrorCode(err))
	})

	t.Run("rejects vectors of inconsistent dimension across batches", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		provider := &mock.Embedder{
			EmbedFn: func(_ context.Context, texts []string) ([][]float32, error) {
				n := calls.Add(1)
				vectors := make([][]float32, len(texts))
				for i := range texts {
					vectors[i] = make([]float32, n+1)
					vectors[i][0] = 1
				}
				return vectors, nil
			},
		}
		e := &embed.Embedder{Provider: provider, BatchSize: 1}

		_, err := e.EmbedBatch(context.Background(), []string{"a", "b"})

		assert.Equal(t, docrag.ECONFIG, docrag.ErrorCode(err))
	})

	t.Run("retries when provider returns wrong number of vectors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		provider := &mock.Embedder{
			EmbedFn: func(_ context.Context, texts []string) ([][]float32, error) {
				if calls.Add(1) == 1 {
					return [][]float32{{1, 2}}, nil
				}
				return [][]float32{{1, 2}, {3, 4}}, nil
			},
		}
		e := &embed.Embedder{Provider: provider, RetryDelays: noDelays}

		result, err := e.EmbedBatch(context.Background(), []string{"a", "b"})

		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, []float32{3, 4}, result.Vectors[1])
	})

	t.Run("treats provider timeout as retryable", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		provider := &mock.Embedder{
			EmbedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
				if calls.Add(1) == 1 {
					<-ctx.Done()
					return nil, ctx.Err()
				}
				return [][]float32{vectorFor(texts[0])}, nil
			},
		}
		e := &embed.Embedder{Provider: provider, RetryDelays: noDelays, Timeout: 10 * time.Millisecond}

		result, err := e.EmbedBatch(context.Background(), []string{"slow"})

		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, vectorFor("slow"), result.Vectors[0])
	})

	t.Run("aborts when context is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		provider := &mock.Embedder{
			EmbedFn: func(_ context.Context, _ []string) ([][]float32, error) {
				cancel()
				return nil, errors.New("connection reset")
			},
		}
		e := &embed.Embedder{Provider: provider, RetryDelays: noDelays}

		_, err := e.EmbedBatch(ctx, []string{"a"})

		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("waits on limiter before each call", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		e := &embed.Embedder{
			Provider:  echoProvider(&calls),
			BatchSize: 1,
			Limiter:   rate.NewLimiter(rate.Inf, 1),
		}

		result, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})

		require.NoError(t, err)
		assert.Len(t, result.Vectors, 3)
		assert.Equal(t, int32(3), calls.Load())
	})
}
