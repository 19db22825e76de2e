package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/embed"
	"github.com/fwojciec/docrag/ingest"
	"github.com/fwojciec/docrag/mock"
	"github.com/fwojciec/docrag/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkSize splits paragraphs() output into one chunk per paragraph.
const chunkSize = 20

// paragraphs returns n short paragraphs, "Paragraph 1 text." and so on.
func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("Paragraph %d text.", i+1)
	}
	return strings.Join(parts, "\n\n")
}

// provider embeds every text as a two dimensional vector and fails any
// batch containing a text with one of the poison substrings.
func provider(poison ...string) *mock.Embedder {
	return &mock.Embedder{
		EmbedFn: func(_ context.Context, texts []string) ([][]float32, error) {
			vectors := make([][]float32, len(texts))
			for i, t := range texts {
				for _, p := range poison {
					if strings.Contains(t, p) {
						return nil, errors.New("provider rejected input")
					}
				}
				vectors[i] = []float32{1, float32(len(t))}
			}
			return vectors, nil
		},
	}
}

// pages serves markdown content by URL.
type pages struct {
	mu      sync.Mutex
	content map[string]string
	crawls  atomic.Int32
}

func (p *pages) set(url, markdown string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content[url] = markdown
}

func (p *pages) crawler() *mock.Crawler {
	return &mock.Crawler{
		CrawlFn: func(_ context.Context, url string) (*docrag.Page, error) {
			p.crawls.Add(1)
			p.mu.Lock()
			defer p.mu.Unlock()
			markdown, ok := p.content[url]
			if !ok {
				return nil, fmt.Errorf("GET %s: 404", url)
			}
			return &docrag.Page{URL: url, Title: "Title of " + url, Content: markdown, CrawledAt: time.Now()}, nil
		},
	}
}

type fixture struct {
	pipeline *ingest.Pipeline
	store    *sqlite.RecordStore
	pages    *pages
}

func newFixture(t *testing.T, embedder docrag.Embedder) *fixture {
	t.Helper()

	db := sqlite.NewDB(":memory:")
	require.NoError(t, db.Open())
	t.Cleanup(func() { db.Close() })

	store := sqlite.NewRecordStore(db, 2)
	p := &pages{content: make(map[string]string)}

	return &fixture{
		pipeline: &ingest.Pipeline{
			Crawler: p.crawler(),
			Embedder: &embed.Embedder{
				Provider:    embedder,
				RetryDelays: []time.Duration{0},
			},
			Records:   store,
			ChunkSize: chunkSize,
		},
		store: store,
		pages: p,
	}
}

func (f *fixture) count(t *testing.T, url string) int {
	t.Helper()

	n, err := f.store.CountBySource(context.Background(), url)
	require.NoError(t, err)
	return n
}

func (f *fixture) indices(t *testing.T, url string) []int {
	t.Helper()

	results, err := f.store.SimilaritySearch(context.Background(), []float32{1, 0}, 100, docrag.RecordFilter{SourceURL: &url})
	require.NoError(t, err)
	var indices []int
	for _, r := range results {
		indices = append(indices, r.Record.ChunkIndex)
	}
	return indices
}

func TestPipeline_IngestPage(t *testing.T) {
	t.Parallel()

	const url = "https://docs.example.com/guide"

	t.Run("stores every chunk of a page", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(3))

		o := f.pipeline.IngestPage(context.Background(), url)

		require.NoError(t, o.Err)
		assert.Equal(t, docrag.PageCompleted, o.State)
		assert.Equal(t, docrag.StatusSuccess, o.Status())
		assert.Equal(t, 3, o.Chunks)
		assert.Equal(t, 3, o.Stored)
		assert.Equal(t, len(paragraphs(3)), o.ContentLength)
		assert.Equal(t, 3, f.count(t, url))

		results, err := f.store.SimilaritySearch(context.Background(), []float32{1, 0}, 1, docrag.RecordFilter{})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "docs.example.com", results[0].Record.Source)
		assert.Equal(t, "Title of "+url, results[0].Record.Title)
		assert.Equal(t, 3, results[0].Record.Info.WordCount)
	})

	t.Run("re-ingesting unchanged page is idempotent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(3))

		first := f.pipeline.IngestPage(context.Background(), url)
		second := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.StatusSuccess, first.Status())
		assert.Equal(t, docrag.StatusSuccess, second.Status())
		assert.Equal(t, 3, f.count(t, url))
		assert.ElementsMatch(t, []int{0, 1, 2}, f.indices(t, url))
	})

	t.Run("removes stale trailing records when page shrinks", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(5))
		require.Equal(t, docrag.StatusSuccess, f.pipeline.IngestPage(context.Background(), url).Status())
		require.Equal(t, 5, f.count(t, url))

		f.pages.set(url, paragraphs(3))
		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.StatusSuccess, o.Status())
		assert.Equal(t, 3, f.count(t, url))
		assert.ElementsMatch(t, []int{0, 1, 2}, f.indices(t, url))
	})

	t.Run("keeps previous records when replacing a shrunk page fails", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(5))
		require.Equal(t, 5, f.pipeline.IngestPage(context.Background(), url).Stored)

		f.pages.set(url, paragraphs(3))
		f.pipeline.Records = &mock.RecordStore{
			CountBySourceFn: f.store.CountBySource,
			DeleteBySourceFn: func(_ context.Context, _ string) (int, error) {
				t.Error("records must not be deleted outside the replacement")
				return 0, nil
			},
			ReplaceSourceFn: func(_ context.Context, _ string, records []*docrag.Record) (int, error) {
				assert.Len(t, records, 3)
				return 0, docrag.Errorf(docrag.ESTORAGE, "disk I/O error")
			},
		}
		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.StatusFailure, o.Status())
		assert.Equal(t, docrag.ESTORAGE, docrag.ErrorCode(o.Err))
		assert.Equal(t, 5, f.count(t, url))
	})

	t.Run("stores remaining chunks when one fails to embed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(3))
		require.Equal(t, 3, f.pipeline.IngestPage(context.Background(), url).Stored)

		f.pipeline.Embedder = &embed.Embedder{Provider: provider("Paragraph 2"), RetryDelays: []time.Duration{0}}
		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.PageCompleted, o.State)
		assert.Equal(t, docrag.StatusPartial, o.Status())
		assert.Equal(t, []int{1}, o.FailedChunks)
		assert.Equal(t, 2, o.Stored)
		assert.ElementsMatch(t, []int{0, 2}, f.indices(t, url))
	})

	t.Run("fails when every chunk fails to embed", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider("Paragraph"))
		f.pages.set(url, paragraphs(2))

		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.PageFailed, o.State)
		assert.Equal(t, docrag.PageChunked, o.FailedAt)
		assert.Equal(t, docrag.StatusFailure, o.Status())
		assert.Equal(t, docrag.EEMBED, docrag.ErrorCode(o.Err))
		assert.Equal(t, []int{0, 1}, o.FailedChunks)
		assert.Zero(t, f.count(t, url))
	})

	t.Run("completes page without chunks and clears old records", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(2))
		require.Equal(t, 2, f.pipeline.IngestPage(context.Background(), url).Stored)

		f.pages.set(url, "  \n\n ")
		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.PageCompleted, o.State)
		assert.Equal(t, docrag.StatusSuccess, o.Status())
		assert.Zero(t, o.Chunks)
		assert.Zero(t, o.Stored)
		assert.Zero(t, f.count(t, url))
	})

	t.Run("fails with crawl code when page cannot be crawled", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())

		o := f.pipeline.IngestPage(context.Background(), "https://docs.example.com/missing")

		assert.Equal(t, docrag.PageFailed, o.State)
		assert.Equal(t, docrag.PageReceived, o.FailedAt)
		assert.Equal(t, docrag.ECRAWL, docrag.ErrorCode(o.Err))
		assert.Contains(t, docrag.ErrorMessage(o.Err), "404")
	})

	t.Run("fails with storage code when upsert fails", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(2))
		f.pipeline.Records = &mock.RecordStore{
			CountBySourceFn: func(_ context.Context, _ string) (int, error) { return 0, nil },
			UpsertRecordsFn: func(_ context.Context, _ []*docrag.Record) (int, error) {
				return 0, errors.New("disk I/O error")
			},
		}

		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.PageFailed, o.State)
		assert.Equal(t, docrag.PageEmbedded, o.FailedAt)
		assert.Equal(t, docrag.ESTORAGE, docrag.ErrorCode(o.Err))
	})

	t.Run("bounds store calls by timeout", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(1))
		f.pipeline.Timeout = 10 * time.Millisecond
		f.pipeline.Records = &mock.RecordStore{
			CountBySourceFn: func(ctx context.Context, _ string) (int, error) {
				<-ctx.Done()
				return 0, ctx.Err()
			},
		}

		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, docrag.PageFailed, o.State)
		assert.Equal(t, docrag.ESTORAGE, docrag.ErrorCode(o.Err))
	})

	t.Run("counts tokens when counter is configured", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set(url, paragraphs(1))
		f.pipeline.TokenCounter = &mock.TokenCounter{
			CountTokensFn: func(_ context.Context, text string) (int, error) {
				return len(strings.Fields(text)), nil
			},
		}

		o := f.pipeline.IngestPage(context.Background(), url)

		assert.Equal(t, 3, o.Tokens)
	})
}

func TestPipeline_IngestContent(t *testing.T) {
	t.Parallel()

	t.Run("ingests page without crawling", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		page := &docrag.Page{URL: "https://example.com/notes.txt", Content: paragraphs(2)}

		o := f.pipeline.IngestContent(context.Background(), page)

		assert.Equal(t, docrag.StatusSuccess, o.Status())
		assert.Equal(t, 2, o.Stored)
		assert.Zero(t, f.pages.crawls.Load())
	})

	t.Run("rejects page without URL", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())

		o := f.pipeline.IngestContent(context.Background(), &docrag.Page{Content: "text"})

		assert.Equal(t, docrag.PageFailed, o.State)
		assert.Equal(t, docrag.EINVALID, docrag.ErrorCode(o.Err))
	})
}

func TestPipeline_IngestPages(t *testing.T) {
	t.Parallel()

	t.Run("ingests pages and reports outcomes in input order", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/missing"}
		f.pages.set(urls[0], paragraphs(2))
		f.pages.set(urls[1], paragraphs(3))
		var reported atomic.Int32
		f.pipeline.Progress = func(*docrag.PageOutcome) { reported.Add(1) }

		result, err := f.pipeline.IngestPages(context.Background(), urls, docrag.IngestOptions{})

		require.NoError(t, err)
		assert.NotEmpty(t, result.ID)
		require.Len(t, result.Pages, 3)
		for i, u := range urls {
			assert.Equal(t, u, result.Pages[i].URL)
		}
		assert.Equal(t, 2, result.Count(docrag.StatusSuccess))
		assert.Equal(t, 1, result.Count(docrag.StatusFailure))
		assert.Equal(t, 5, result.Stored())
		assert.Equal(t, docrag.StatusPartial, result.Status())
		assert.Equal(t, int32(3), reported.Load())
	})

	t.Run("ingests duplicate URLs once", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set("https://example.com/a", paragraphs(1))

		result, err := f.pipeline.IngestPages(context.Background(), []string{
			"https://example.com/a", "https://example.com/a",
		}, docrag.IngestOptions{})

		require.NoError(t, err)
		assert.Len(t, result.Pages, 1)
		assert.Equal(t, int32(1), f.pages.crawls.Load())
	})

	t.Run("aborts batch on configuration error", func(t *testing.T) {
		t.Parallel()

		embedder := &mock.Embedder{
			EmbedFn: func(_ context.Context, _ []string) ([][]float32, error) {
				return nil, docrag.Errorf(docrag.ECONFIG, "invalid API key")
			},
		}
		f := newFixture(t, embedder)
		f.pipeline.Concurrency = 1
		urls := []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"}
		for _, u := range urls {
			f.pages.set(u, paragraphs(1))
		}

		result, err := f.pipeline.IngestPages(context.Background(), urls, docrag.IngestOptions{})

		require.Error(t, err)
		assert.Equal(t, docrag.ECONFIG, docrag.ErrorCode(err))
		require.Len(t, result.Pages, 3)
		assert.Equal(t, docrag.ECONFIG, docrag.ErrorCode(result.Pages[0].Err))
		assert.Equal(t, docrag.ECANCELED, docrag.ErrorCode(result.Pages[1].Err))
		assert.Equal(t, docrag.ECANCELED, docrag.ErrorCode(result.Pages[2].Err))
		assert.Equal(t, docrag.StatusFailure, result.Status())
	})

	t.Run("reports unstarted pages as canceled", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pages.set("https://example.com/a", paragraphs(1))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := f.pipeline.IngestPages(ctx, []string{"https://example.com/a", "https://example.com/b"}, docrag.IngestOptions{})

		assert.Equal(t, docrag.ECANCELED, docrag.ErrorCode(err))
		require.Len(t, result.Pages, 2)
		for _, o := range result.Pages {
			assert.Equal(t, docrag.PageFailed, o.State)
			assert.Equal(t, docrag.ECANCELED, docrag.ErrorCode(o.Err))
		}
		assert.Zero(t, f.pages.crawls.Load())
	})

	t.Run("keeps records of pages completed before cancellation", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, provider())
		f.pipeline.Concurrency = 1
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		f.pages.set("https://example.com/a", paragraphs(2))
		f.pages.set("https://example.com/b", paragraphs(2))
		f.pipeline.Progress = func(o *docrag.PageOutcome) {
			if o.URL == "https://example.com/a" {
				cancel()
			}
		}

		result, err := f.pipeline.IngestPages(ctx, []string{"https://example.com/a", "https://example.com/b"}, docrag.IngestOptions{})

		assert.Equal(t, docrag.ECANCELED, docrag.ErrorCode(err))
		assert.Equal(t, docrag.StatusSuccess, result.Pages[0].Status())
		assert.Equal(t, docrag.ECANCELED, docrag.ErrorCode(result.Pages[1].Err))
		assert.Equal(t, 2, f.count(t, "https://example.com/a"))
		assert.Zero(t, f.count(t, "https://example.com/b"))
	})
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	success := &docrag.PageOutcome{URL: "https://example.com/a", State: docrag.PageCompleted, Chunks: 2, Stored: 2}
	assert.Equal(t, "https://example.com/a: 2 chunks stored", ingest.Describe(success))

	partial := &docrag.PageOutcome{URL: "https://example.com/a", State: docrag.PageCompleted, Chunks: 3, Stored: 2, FailedChunks: []int{1}}
	assert.Equal(t, "https://example.com/a: 2/3 chunks stored, failed [1]", ingest.Describe(partial))

	failed := &docrag.PageOutcome{URL: "https://example.com/a", State: docrag.PageReceived}
	failed.Fail(docrag.Errorf(docrag.ECRAWL, "GET https://example.com/a: 404"))
	assert.Equal(t, "https://example.com/a: failed after received: GET https://example.com/a: 404", ingest.Describe(failed))
}
