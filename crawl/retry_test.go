package crawl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/docrag/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("returns first success without retrying", func(t *testing.T) {
		t.Parallel()

		calls := 0
		body, err := crawl.FetchWithRetry(context.Background(), "https://example.com", func(_ context.Context, _ string) (string, error) {
			calls++
			return "ok", nil
		}, nil, []time.Duration{0, 0, 0})

		require.NoError(t, err)
		assert.Equal(t, "ok", body)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns last error after all attempts", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_, err := crawl.FetchWithRetry(context.Background(), "https://example.com", func(_ context.Context, _ string) (string, error) {
			calls++
			return "", errors.New("boom")
		}, nil, []time.Duration{0, 0, 0})

		require.EqualError(t, err, "boom")
		assert.Equal(t, 4, calls)
	})

	t.Run("makes a single attempt without delays", func(t *testing.T) {
		t.Parallel()

		calls := 0
		_, err := crawl.FetchWithRetry(context.Background(), "https://example.com", func(_ context.Context, _ string) (string, error) {
			calls++
			return "", errors.New("boom")
		}, nil, nil)

		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops waiting when context is canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := crawl.FetchWithRetry(ctx, "https://example.com", func(_ context.Context, _ string) (string, error) {
			return "", errors.New("boom")
		}, nil, []time.Duration{time.Hour})

		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("default delays back off exponentially", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, crawl.DefaultRetryDelays())
	})
}
