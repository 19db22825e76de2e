package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/docrag"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger
	Ingester docrag.Ingester
	Search   docrag.SearchService
	Records  docrag.RecordStore
	Sitemaps docrag.SitemapService
	Asker    docrag.Asker
	Server   Server
}

// Server serves the MCP tools.
type Server interface {
	Run(ctx context.Context) error
	RunHTTP(ctx context.Context, addr string) error
}

// Globals are the flags shared by every command.
type Globals struct {
	DB          string `name:"db" env:"DOCRAG_DB" default:"${db_path}" help:"SQLite database path"`
	PostgresDSN string `name:"postgres-dsn" env:"DOCRAG_POSTGRES_DSN" help:"Postgres connection string; overrides --db"`

	Provider     string  `enum:"gemini,openai" default:"gemini" env:"DOCRAG_PROVIDER" help:"Embedding provider (gemini, openai)"`
	GeminiAPIKey string  `name:"gemini-api-key" env:"GEMINI_API_KEY" help:"Gemini API key"`
	OpenAIAPIKey string  `name:"openai-api-key" env:"OPENAI_API_KEY" help:"OpenAI API key"`
	EmbedModel   string  `name:"embed-model" env:"DOCRAG_EMBED_MODEL" help:"Embedding model; empty uses the provider default"`
	Dimensions   int     `default:"1536" env:"DOCRAG_DIMENSIONS" help:"Embedding dimensions"`
	BatchSize    int     `name:"batch-size" default:"20" help:"Texts per embedding request"`
	EmbedRPS     float64 `name:"embed-rps" default:"0" help:"Embedding requests per second; 0 is unlimited"`

	ChunkSize    int           `name:"chunk-size" default:"5000" env:"DOCRAG_CHUNK_SIZE" help:"Target chunk size in bytes"`
	Concurrency  int           `default:"5" help:"Pages ingested at once"`
	Timeout      time.Duration `default:"30s" help:"Timeout for each embedding and storage call"`
	FetchTimeout time.Duration `name:"fetch-timeout" default:"10s" help:"Timeout for each HTTP request"`
	CrawlRPS     float64       `name:"crawl-rps" default:"1" help:"Requests per second per domain; 0 is unlimited"`
	CountTokens  bool          `name:"count-tokens" help:"Count tokens of every ingested page"`

	Verbose bool `short:"v" help:"Log debug output to stderr"`
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Globals

	Ingest  IngestCmd  `cmd:"" help:"Crawl and ingest pages"`
	Crawl   CrawlCmd   `cmd:"" help:"Ingest a sitemap, text file or webpage"`
	Import  ImportCmd  `cmd:"" help:"Ingest a local markdown file"`
	Search  SearchCmd  `cmd:"" help:"Search ingested documentation"`
	Sources SourcesCmd `cmd:"" help:"List ingested sources"`
	Ask     AskCmd     `cmd:"" help:"Ask a question about ingested documentation"`
	Serve   ServeCmd   `cmd:"" help:"Serve the MCP tools"`
}

// IngestCmd is the "ingest" subcommand.
type IngestCmd struct {
	URLs []string `arg:"" name:"url" help:"Page URLs"`
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	URL           string   `arg:"" help:"Sitemap, text file or webpage URL"`
	Filter        []string `short:"F" name:"filter" help:"Only ingest sitemap URLs matching regex (repeatable)"`
	Exclude       []string `short:"x" name:"exclude" help:"Skip sitemap URLs matching regex (repeatable)"`
	MaxConcurrent int      `short:"c" name:"max-concurrent" default:"10" help:"Pages ingested at once"`
	Preview       bool     `short:"p" help:"Show sitemap URLs without ingesting"`
}

// ImportCmd is the "import" subcommand.
type ImportCmd struct {
	Path  string `arg:"" type:"existingfile" help:"Markdown or text file"`
	URL   string `required:"" help:"URL the content is stored under"`
	Title string `help:"Page title; defaults to the file name"`
}

// SearchCmd is the "search" subcommand.
type SearchCmd struct {
	Query  string `arg:"" help:"Search query"`
	TopK   int    `short:"k" name:"top-k" default:"5" help:"Number of results"`
	Source string `help:"Only search records from this host"`
	URL    string `help:"Only search records from this page URL"`
	JSON   bool   `name:"json" help:"Print results as JSON"`
}

// SourcesCmd is the "sources" subcommand.
type SourcesCmd struct{}

// AskCmd is the "ask" subcommand.
type AskCmd struct {
	Question string `arg:"" help:"Question to ask about the documentation"`
	TopK     int    `short:"k" name:"top-k" default:"5" help:"Number of chunks used as context"`
	Source   string `help:"Only use records from this host"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	HTTP string `name:"http" placeholder:"ADDR" help:"Serve streamable HTTP on ADDR instead of stdio"`
}

// searchOptions builds options from the optional filter flags.
func searchOptions(topK int, source, url string) docrag.SearchOptions {
	opts := docrag.SearchOptions{TopK: topK}
	if source != "" {
		opts.Filter.Source = &source
	}
	if url != "" {
		opts.Filter.SourceURL = &url
	}
	return opts
}

// errorText returns the message of a domain error, or err.Error() for
// anything else.
func errorText(err error) string {
	var e *docrag.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}
