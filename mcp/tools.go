package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/crawl"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Defaults applied when a tool argument is omitted.
const (
	DefaultMaxConcurrent = 10
	DefaultMatchCount    = docrag.DefaultTopK
)

// CrawlSinglePageInput is the input of crawl_single_page.
type CrawlSinglePageInput struct {
	URL string `json:"url" jsonschema:"URL of the web page to crawl and store"`
}

// CrawlSinglePageOutput is the result of crawl_single_page.
type CrawlSinglePageOutput struct {
	Success       bool   `json:"success"`
	URL           string `json:"url"`
	ChunksStored  int    `json:"chunks_stored"`
	ContentLength int    `json:"content_length"`
	FailedChunks  []int  `json:"failed_chunks,omitempty"`
	Error         string `json:"error,omitempty"`
}

// SmartCrawlInput is the input of smart_crawl_url.
type SmartCrawlInput struct {
	URL           string `json:"url" jsonschema:"URL to crawl: a sitemap, a .txt or .md file, or a web page"`
	MaxConcurrent int    `json:"max_concurrent,omitempty" jsonschema:"maximum number of pages crawled at once (default 10)"`
}

// PageFailure describes a page that could not be ingested.
type PageFailure struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// SmartCrawlOutput is the result of smart_crawl_url.
type SmartCrawlOutput struct {
	Success      bool          `json:"success"`
	URL          string        `json:"url"`
	CrawlType    string        `json:"crawl_type"`
	PagesCrawled int           `json:"pages_crawled"`
	ChunksStored int           `json:"chunks_stored"`
	Failed       []PageFailure `json:"failed,omitempty"`
	Error        string        `json:"error,omitempty"`
}

// GetAvailableSourcesInput is the empty input of get_available_sources.
type GetAvailableSourcesInput struct{}

// GetAvailableSourcesOutput is the result of get_available_sources.
type GetAvailableSourcesOutput struct {
	Success bool     `json:"success"`
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
	Error   string   `json:"error,omitempty"`
}

// RAGQueryInput is the input of perform_rag_query.
type RAGQueryInput struct {
	Query      string `json:"query" jsonschema:"the search query"`
	Source     string `json:"source,omitempty" jsonschema:"optional source host to restrict results to, e.g. docs.example.com"`
	MatchCount int    `json:"match_count,omitempty" jsonschema:"maximum number of results to return (default 5)"`
}

// RAGQueryResult is a single retrieved chunk.
type RAGQueryResult struct {
	URL        string  `json:"url"`
	Content    string  `json:"content"`
	Title      string  `json:"title,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Similarity float64 `json:"similarity"`
}

// RAGQueryOutput is the result of perform_rag_query.
type RAGQueryOutput struct {
	Success      bool             `json:"success"`
	Query        string           `json:"query"`
	SourceFilter string           `json:"source_filter,omitempty"`
	Results      []RAGQueryResult `json:"results"`
	Count        int              `json:"count"`
	Error        string           `json:"error,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "crawl_single_page",
		Description: "Crawl a single web page and store its content as searchable chunks",
	}, s.CrawlSinglePage)
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "smart_crawl_url",
		Description: "Crawl a URL based on its type: every page of a sitemap, a raw text file, or a single web page",
	}, s.SmartCrawlURL)
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "get_available_sources",
		Description: "List the source hosts that have stored content, for use as a query filter",
	}, s.GetAvailableSources)
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "perform_rag_query",
		Description: "Search stored content by semantic similarity, optionally restricted to one source",
	}, s.PerformRAGQuery)
}

// Tool handlers report failures in their output and never return an error,
// so clients always receive the structured result.

// CrawlSinglePage handles crawl_single_page.
func (s *Server) CrawlSinglePage(ctx context.Context, _ *sdk.CallToolRequest, in CrawlSinglePageInput) (*sdk.CallToolResult, CrawlSinglePageOutput, error) {
	out := CrawlSinglePageOutput{URL: in.URL}
	if strings.TrimSpace(in.URL) == "" {
		out.Error = "url is required"
		return nil, out, nil
	}

	o := s.ingester.IngestPage(ctx, in.URL)
	out.ChunksStored = o.Stored
	out.ContentLength = o.ContentLength
	out.FailedChunks = o.FailedChunks
	if o.Status() == docrag.StatusFailure {
		out.Error = errorText(o.Err)
		return nil, out, nil
	}
	out.Success = true
	return nil, out, nil
}

// SmartCrawlURL handles smart_crawl_url.
func (s *Server) SmartCrawlURL(ctx context.Context, _ *sdk.CallToolRequest, in SmartCrawlInput) (*sdk.CallToolResult, SmartCrawlOutput, error) {
	out := SmartCrawlOutput{URL: in.URL}
	if strings.TrimSpace(in.URL) == "" {
		out.Error = "url is required"
		return nil, out, nil
	}

	kind := crawl.DetectKind(in.URL)
	out.CrawlType = string(kind)

	var outcomes []*docrag.PageOutcome
	switch kind {
	case crawl.KindSitemap:
		urls, err := s.sitemaps.ParseSitemap(ctx, in.URL, nil)
		if err != nil {
			out.Error = errorText(err)
			return nil, out, nil
		}
		if len(urls) == 0 {
			out.Error = "no URLs found in sitemap"
			return nil, out, nil
		}

		concurrency := in.MaxConcurrent
		if concurrency <= 0 {
			concurrency = DefaultMaxConcurrent
		}
		result, err := s.ingester.IngestPages(ctx, urls, docrag.IngestOptions{Concurrency: concurrency})
		if result != nil {
			outcomes = result.Pages
		}
		if err != nil {
			summarize(&out, outcomes)
			out.Error = errorText(err)
			return nil, out, nil
		}
	default:
		outcomes = []*docrag.PageOutcome{s.ingester.IngestPage(ctx, in.URL)}
	}

	summarize(&out, outcomes)
	if out.PagesCrawled == 0 {
		out.Error = fmt.Sprintf("no content ingested from %s", in.URL)
		if len(out.Failed) == 1 {
			out.Error = out.Failed[0].Error
		}
		return nil, out, nil
	}
	out.Success = true
	return nil, out, nil
}

// summarize counts pages with at least one stored chunk as crawled.
func summarize(out *SmartCrawlOutput, outcomes []*docrag.PageOutcome) {
	for _, o := range outcomes {
		out.ChunksStored += o.Stored
		if o.Status() == docrag.StatusFailure {
			out.Failed = append(out.Failed, PageFailure{URL: o.URL, Error: errorText(o.Err)})
			continue
		}
		out.PagesCrawled++
	}
}

// GetAvailableSources handles get_available_sources.
func (s *Server) GetAvailableSources(ctx context.Context, _ *sdk.CallToolRequest, _ GetAvailableSourcesInput) (*sdk.CallToolResult, GetAvailableSourcesOutput, error) {
	out := GetAvailableSourcesOutput{Sources: []string{}}

	sources, err := s.records.ListSources(ctx)
	if err != nil {
		out.Error = errorText(err)
		return nil, out, nil
	}
	if sources != nil {
		out.Sources = sources
	}
	out.Count = len(out.Sources)
	out.Success = true
	return nil, out, nil
}

// PerformRAGQuery handles perform_rag_query.
func (s *Server) PerformRAGQuery(ctx context.Context, _ *sdk.CallToolRequest, in RAGQueryInput) (*sdk.CallToolResult, RAGQueryOutput, error) {
	out := RAGQueryOutput{
		Query:        in.Query,
		SourceFilter: strings.TrimSpace(in.Source),
		Results:      []RAGQueryResult{},
	}

	opts := docrag.SearchOptions{TopK: in.MatchCount}
	if opts.TopK <= 0 {
		opts.TopK = DefaultMatchCount
	}
	if out.SourceFilter != "" {
		opts.Filter.Source = &out.SourceFilter
	}

	results, err := s.search.Search(ctx, in.Query, opts)
	if err != nil {
		out.Error = errorText(err)
		return nil, out, nil
	}

	for _, r := range results {
		out.Results = append(out.Results, RAGQueryResult{
			URL:        r.Record.SourceURL,
			Content:    r.Record.Content,
			Title:      r.Record.Title,
			ChunkIndex: r.Record.ChunkIndex,
			Similarity: r.Score,
		})
	}
	out.Count = len(out.Results)
	out.Success = true
	return nil, out, nil
}

// errorText returns the message of a domain error or the text of any other.
func errorText(err error) string {
	if err == nil {
		return ""
	}
	var e *docrag.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
