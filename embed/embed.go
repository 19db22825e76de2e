// Package embed batches texts for an embedding provider, retrying transient
// failures with backoff and isolating texts that keep failing.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fwojciec/docrag"
	"golang.org/x/time/rate"
)

// Defaults used when the corresponding Embedder field is zero.
const (
	DefaultBatchSize = 64
	DefaultTimeout   = 30 * time.Second
)

// DefaultRetryDelays returns the backoff delays between attempts: 1s, 2s, 4s.
func DefaultRetryDelays() []time.Duration {
	return []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
}

var _ docrag.BatchEmbedder = (*Embedder)(nil)

// Embedder implements docrag.BatchEmbedder on top of a provider.
type Embedder struct {
	Provider docrag.Embedder

	// BatchSize is the maximum number of texts sent in one provider call.
	BatchSize int

	// Dimensions is the expected vector length. When zero, the length of
	// the first vector returned fixes it for the rest of the call.
	Dimensions int

	// RetryDelays are the waits between attempts of one provider batch.
	// Nil means DefaultRetryDelays; an empty slice disables retries.
	RetryDelays []time.Duration

	// Timeout bounds every provider call.
	Timeout time.Duration

	// Limiter, if set, gates every provider call.
	Limiter *rate.Limiter

	Logger *slog.Logger
}

// outcomeKind tags the result of a single provider attempt.
type outcomeKind int

const (
	succeeded outcomeKind = iota
	retryable
	fatal
)

type outcome struct {
	kind    outcomeKind
	vectors [][]float32
	err     error
}

// EmbedBatch embeds texts in provider batches. A batch that still fails
// after all retries is retried one text at a time, and texts that fail
// alone are reported in the result's Failures with code EEMBED.
//
// The returned error is non-nil only when no valid vectors can be
// produced: a provider configuration error, a dimension mismatch
// (ECONFIG) or cancellation of ctx.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) (*docrag.EmbedResult, error) {
	result := &docrag.EmbedResult{
		Vectors:  make([][]float32, len(texts)),
		Failures: make(map[int]error),
	}
	if len(texts) == 0 {
		return result, nil
	}

	size := e.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	dims := e.Dimensions

	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))

		out := e.withRetry(ctx, texts[start:end], &dims)
		switch out.kind {
		case succeeded:
			copy(result.Vectors[start:end], out.vectors)
			continue
		case fatal:
			return nil, out.err
		}

		e.log("isolating failed batch", "start", start, "size", end-start, "error", out.err)
		for i := start; i < end; i++ {
			single := e.attempt(ctx, texts[i:i+1], &dims)
			switch single.kind {
			case succeeded:
				result.Vectors[i] = single.vectors[0]
			case fatal:
				return nil, single.err
			default:
				result.Failures[i] = docrag.Errorf(docrag.EEMBED, "embed text %d: %v", i, single.err)
			}
		}
	}

	return result, nil
}

// withRetry attempts texts until success, a fatal outcome, or the retry
// delays are used up.
func (e *Embedder) withRetry(ctx context.Context, texts []string, dims *int) outcome {
	delays := e.RetryDelays
	if delays == nil {
		delays = DefaultRetryDelays()
	}
	maxAttempts := len(delays) + 1

	var out outcome
	for attempt := 0; attempt < maxAttempts; attempt++ {
		out = e.attempt(ctx, texts, dims)
		if out.kind != retryable {
			return out
		}

		if attempt >= maxAttempts-1 {
			break
		}

		e.log("retrying embedding batch", "size", len(texts), "attempt", attempt+2, "error", out.err)

		select {
		case <-ctx.Done():
			return outcome{kind: fatal, err: ctx.Err()}
		case <-time.After(delays[attempt]):
		}
	}
	return out
}

// attempt makes one provider call and classifies its result.
func (e *Embedder) attempt(ctx context.Context, texts []string, dims *int) outcome {
	if err := ctx.Err(); err != nil {
		return outcome{kind: fatal, err: err}
	}
	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return outcome{kind: fatal, err: ctx.Err()}
			}
			return outcome{kind: retryable, err: err}
		}
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vectors, err := e.Provider.Embed(callCtx, texts)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return outcome{kind: fatal, err: ctx.Err()}
		case docrag.ErrorCode(err) == docrag.ECONFIG:
			return outcome{kind: fatal, err: err}
		case errors.Is(err, context.DeadlineExceeded):
			return outcome{kind: retryable, err: fmt.Errorf("provider timed out after %s: %w", timeout, err)}
		}
		return outcome{kind: retryable, err: err}
	}

	if len(vectors) != len(texts) {
		return outcome{kind: retryable, err: fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts))}
	}
	for _, v := range vectors {
		if len(v) == 0 {
			return outcome{kind: retryable, err: errors.New("provider returned an empty vector")}
		}
		if *dims == 0 {
			*dims = len(v)
		}
		if len(v) != *dims {
			return outcome{kind: fatal, err: docrag.Errorf(docrag.ECONFIG, "embedding has %d dimensions, expected %d", len(v), *dims)}
		}
	}

	return outcome{kind: succeeded, vectors: vectors}
}

func (e *Embedder) log(msg string, args ...any) {
	if e.Logger != nil {
		e.Logger.Debug(msg, args...)
	}
}
