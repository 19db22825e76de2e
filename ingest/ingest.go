// Package ingest runs pages through the chunk, embed and store stages.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/chunk"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Defaults used when the corresponding Pipeline field is zero.
const (
	DefaultConcurrency = 5
	DefaultTimeout     = 30 * time.Second
)

var _ docrag.Ingester = (*Pipeline)(nil)

// Pipeline implements docrag.Ingester.
type Pipeline struct {
	Crawler  docrag.Crawler
	Embedder docrag.BatchEmbedder
	Records  docrag.RecordStore

	// TokenCounter, if set, fills PageOutcome.Tokens.
	TokenCounter docrag.TokenCounter

	ChunkSize   int
	Concurrency int

	// Timeout bounds every record store call.
	Timeout time.Duration

	// Progress, if set, is called as each page finishes. It may be called
	// from several goroutines at once.
	Progress func(*docrag.PageOutcome)
}

// IngestPage crawls url and ingests the resulting page.
func (p *Pipeline) IngestPage(ctx context.Context, url string) *docrag.PageOutcome {
	o := &docrag.PageOutcome{URL: url, State: docrag.PageReceived}

	page, err := p.Crawler.Crawl(ctx, url)
	if err != nil {
		o.Fail(stageError(ctx, docrag.ECRAWL, err))
		return o
	}
	if page.URL == "" {
		page.URL = url
	}
	return p.ingest(ctx, page, o)
}

// IngestContent ingests a page that was already crawled.
func (p *Pipeline) IngestContent(ctx context.Context, page *docrag.Page) *docrag.PageOutcome {
	o := &docrag.PageOutcome{URL: page.URL, State: docrag.PageReceived}
	if err := page.Validate(); err != nil {
		o.Fail(err)
		return o
	}
	return p.ingest(ctx, page, o)
}

// IngestPages ingests urls concurrently, at most opts.Concurrency (or
// Pipeline.Concurrency when unset) at a time.
// Duplicate URLs are ingested once. Pages that never started because the
// batch was canceled or aborted are reported as failed with ECANCELED.
//
// A page failing with ECONFIG aborts the batch; the error is returned
// together with the outcomes collected so far.
func (p *Pipeline) IngestPages(ctx context.Context, urls []string, opts docrag.IngestOptions) (*docrag.BatchResult, error) {
	unique := dedupe(urls)
	outcomes := make([]*docrag.PageOutcome, len(unique))

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = p.Concurrency
	}
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, u := range unique {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			o := p.IngestPage(gctx, u)
			outcomes[i] = o
			p.report(o)
			if docrag.ErrorCode(o.Err) == docrag.ECONFIG {
				return o.Err
			}
			return nil
		})
	}
	err := g.Wait()

	for i, o := range outcomes {
		if o != nil {
			continue
		}
		o = &docrag.PageOutcome{URL: unique[i], State: docrag.PageReceived}
		o.Fail(docrag.Errorf(docrag.ECANCELED, "ingestion of %s canceled before it started", unique[i]))
		outcomes[i] = o
		p.report(o)
	}

	result := &docrag.BatchResult{ID: uuid.NewString(), Pages: outcomes}
	if err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, docrag.Errorf(docrag.ECANCELED, "batch canceled: %v", err)
	}
	return result, nil
}

// ingest moves a received page through the remaining states.
func (p *Pipeline) ingest(ctx context.Context, page *docrag.Page, o *docrag.PageOutcome) *docrag.PageOutcome {
	o.ContentLength = len(page.Content)

	// Chunk.
	chunks := chunk.SplitPage(page.URL, page.Content, p.ChunkSize)
	o.Chunks = len(chunks)
	o.Advance(nil)

	if p.TokenCounter != nil {
		if tokens, err := p.TokenCounter.CountTokens(ctx, page.Content); err == nil {
			o.Tokens = tokens
		}
	}

	// Embed.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	embedded, err := p.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		o.Advance(stageError(ctx, docrag.EEMBED, err))
		return o
	}
	for i := range chunks {
		if embedded.Failed(i) {
			o.FailedChunks = append(o.FailedChunks, i)
		}
	}
	if len(chunks) > 0 && len(o.FailedChunks) == len(chunks) {
		o.Advance(docrag.Errorf(docrag.EEMBED, "all %d chunks of %s failed to embed", len(chunks), page.URL))
		return o
	}
	o.Advance(nil)

	// Store.
	records := p.records(page, chunks, embedded)
	stored, err := p.store(ctx, page.URL, len(chunks), len(o.FailedChunks) > 0, records)
	o.Stored = stored
	if err != nil {
		o.Advance(stageError(ctx, docrag.ESTORAGE, err))
		return o
	}
	o.Advance(nil) // Embedded -> Stored

	o.Advance(nil) // Stored -> Completed
	return o
}

// store writes the records of a page. When the page shrank or some chunks
// are missing, the old records are replaced in one atomic step so no stale
// record outlives the ingestion and a failed write keeps the previous version.
func (p *Pipeline) store(ctx context.Context, sourceURL string, chunks int, partial bool, records []*docrag.Record) (int, error) {
	existing, err := withTimeout(ctx, p.Timeout, func(ctx context.Context) (int, error) {
		return p.Records.CountBySource(ctx, sourceURL)
	})
	if err != nil {
		return 0, err
	}

	if chunks < existing || partial {
		return withTimeout(ctx, p.Timeout, func(ctx context.Context) (int, error) {
			return p.Records.ReplaceSource(ctx, sourceURL, records)
		})
	}
	return withTimeout(ctx, p.Timeout, func(ctx context.Context) (int, error) {
		return p.Records.UpsertRecords(ctx, records)
	})
}

func (p *Pipeline) records(page *docrag.Page, chunks []*docrag.Chunk, embedded *docrag.EmbedResult) []*docrag.Record {
	crawledAt := page.CrawledAt
	if crawledAt.IsZero() {
		crawledAt = time.Now().UTC()
	}
	var source string
	if u, err := url.Parse(page.URL); err == nil {
		source = u.Host
	}

	records := make([]*docrag.Record, 0, len(chunks))
	for i, c := range chunks {
		if embedded.Failed(i) {
			continue
		}
		records = append(records, &docrag.Record{
			SourceURL:  c.SourceURL,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Start:      c.Start,
			End:        c.End,
			Hash:       c.Hash,
			Embedding:  embedded.Vectors[i],
			Title:      page.Title,
			Source:     source,
			CrawledAt:  crawledAt,
			Info:       docrag.DescribeChunk(c.Content),
		})
	}
	return records
}

func (p *Pipeline) report(o *docrag.PageOutcome) {
	if p.Progress != nil {
		p.Progress(o)
	}
}

// stageError gives err the code of the stage it failed in. Cancellation
// and configuration errors keep their own meaning.
func stageError(ctx context.Context, code string, err error) error {
	if ctx.Err() != nil {
		return docrag.Errorf(docrag.ECANCELED, "%s", message(err))
	}
	switch docrag.ErrorCode(err) {
	case code, docrag.ECONFIG, docrag.ECANCELED:
		return err
	}
	return docrag.Errorf(code, "%s", message(err))
}

func message(err error) string {
	var e *docrag.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) (int, error)) (int, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	unique := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		unique = append(unique, u)
	}
	return unique
}

// Describe formats an outcome as one line of progress output.
func Describe(o *docrag.PageOutcome) string {
	switch o.Status() {
	case docrag.StatusSuccess:
		return fmt.Sprintf("%s: %d chunks stored", o.URL, o.Stored)
	case docrag.StatusPartial:
		return fmt.Sprintf("%s: %d/%d chunks stored, failed %v", o.URL, o.Stored, o.Chunks, o.FailedChunks)
	default:
		return fmt.Sprintf("%s: failed after %s: %s", o.URL, o.FailedAt, docrag.ErrorMessage(o.Err))
	}
}
