package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/docrag"
	"github.com/fwojciec/docrag/crawl"
	"github.com/fwojciec/docrag/embed"
	"github.com/fwojciec/docrag/gemini"
	"github.com/fwojciec/docrag/htmltomarkdown"
	dochttp "github.com/fwojciec/docrag/http"
	"github.com/fwojciec/docrag/ingest"
	"github.com/fwojciec/docrag/mcp"
	"github.com/fwojciec/docrag/openai"
	"github.com/fwojciec/docrag/postgres"
	"github.com/fwojciec/docrag/readability"
	"github.com/fwojciec/docrag/retrieve"
	docslog "github.com/fwojciec/docrag/slog"
	"github.com/fwojciec/docrag/sqlite"
	"github.com/fwojciec/docrag/trafilatura"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	closers []func() error
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases everything opened by Run, most recent first.
func (m *Main) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	m.closers = nil
	return first
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("docrag"),
		kong.Description("Crawl documentation into a vector store and search it."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Vars{"db_path": defaultDBPath()},
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'docrag --help' to see available commands")
	}
	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	defer m.Close()
	deps, err := m.wire(ctx, cli, commandName(kongCtx), stdout, stderr)
	if err != nil {
		return err
	}

	return kongCtx.Run(deps)
}

// wire builds the services needed by cmd.
func (m *Main) wire(ctx context.Context, cli *CLI, cmd string, stdout, stderr io.Writer) (*Dependencies, error) {
	logger := newLogger(stderr, cli.Verbose)
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
		Logger: logger,
	}

	records, err := m.openStore(ctx, cli, stderr)
	if err != nil {
		return nil, err
	}
	deps.Records = docslog.NewLoggingRecordStore(records, logger)
	deps.Sitemaps = docslog.NewLoggingSitemapService(
		dochttp.NewSitemapService(&http.Client{Timeout: cli.FetchTimeout}), logger)

	if cmd == "sources" {
		return deps, nil
	}

	docs, queries, err := m.newProvider(ctx, cli, stderr)
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if cli.EmbedRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cli.EmbedRPS), 1)
	}
	embedder := newBatchEmbedder(cli, docs, limiter, logger)

	search := &retrieve.Searcher{Embedder: newBatchEmbedder(cli, queries, limiter, logger), Records: deps.Records}
	deps.Search = search

	switch cmd {
	case "search":
		return deps, nil
	case "ask":
		client, err := newGeminiClient(ctx, cli.GeminiAPIKey, stderr)
		if err != nil {
			return nil, err
		}
		deps.Asker = gemini.NewAsker(client, search)
		return deps, nil
	}

	fetcher := dochttp.NewFetcher(dochttp.WithTimeout(cli.FetchTimeout))
	m.closers = append(m.closers, fetcher.Close)
	crawler := &crawl.Crawler{
		Fetcher:     docslog.NewLoggingFetcher(fetcher, logger),
		Extractor:   trafilatura.NewExtractor(),
		Converter:   htmltomarkdown.NewConverter(),
		Fallback:    readability.NewExtractor(),
		RateLimiter: crawl.NewDomainLimiter(cli.CrawlRPS, 1),
		Logger:      logger,
	}

	pipeline := &ingest.Pipeline{
		Crawler:     docslog.NewLoggingCrawler(crawler, logger),
		Embedder:    embedder,
		Records:     deps.Records,
		ChunkSize:   cli.ChunkSize,
		Concurrency: cli.Concurrency,
		Timeout:     cli.Timeout,
		Progress: func(o *docrag.PageOutcome) {
			logger.Info("page done", "url", o.URL, "status", o.Status(), "chunks", o.Chunks, "stored", o.Stored)
		},
	}
	if cli.CountTokens {
		tc, err := gemini.NewTokenCounter("")
		if err != nil {
			return nil, err
		}
		pipeline.TokenCounter = tc
	}
	deps.Ingester = pipeline

	if cmd == "serve" {
		server, err := mcp.NewServer(pipeline, search, deps.Records, deps.Sitemaps)
		if err != nil {
			return nil, err
		}
		deps.Server = server
	}

	return deps, nil
}

// openStore opens Postgres when a DSN is configured and SQLite otherwise.
func (m *Main) openStore(ctx context.Context, cli *CLI, stderr io.Writer) (docrag.RecordStore, error) {
	if cli.PostgresDSN != "" {
		db := postgres.NewDB(cli.PostgresDSN, cli.Dimensions)
		if err := db.Open(ctx); err != nil {
			fmt.Fprintln(stderr, "Hint: Check DOCRAG_POSTGRES_DSN and that the pgvector extension is available")
			return nil, fmt.Errorf("failed to open postgres: %w", err)
		}
		m.closers = append(m.closers, db.Close)
		return postgres.NewRecordStore(db), nil
	}

	if dir := filepath.Dir(cli.DB); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	db := sqlite.NewDB(cli.DB)
	if err := db.Open(); err != nil {
		fmt.Fprintln(stderr, "Hint: Set DOCRAG_DB to use a different database path")
		return nil, fmt.Errorf("failed to open database at %q: %w", cli.DB, err)
	}
	m.closers = append(m.closers, db.Close)
	return sqlite.NewRecordStore(db, cli.Dimensions), nil
}

// newProvider creates the embedding providers selected by --provider: one
// for stored documents and one for search queries.
func (m *Main) newProvider(ctx context.Context, cli *CLI, stderr io.Writer) (docs, queries docrag.Embedder, err error) {
	switch cli.Provider {
	case "openai":
		if cli.OpenAIAPIKey == "" {
			fmt.Fprintln(stderr, "Hint: Set OPENAI_API_KEY or use --provider=gemini")
			return nil, nil, docrag.Errorf(docrag.ECONFIG, "OPENAI_API_KEY not set")
		}
		opts := []openai.Option{openai.WithDimensions(cli.Dimensions)}
		if cli.EmbedModel != "" {
			opts = append(opts, openai.WithModel(cli.EmbedModel))
		}
		e, err := openai.NewEmbedder(cli.OpenAIAPIKey, opts...)
		if err != nil {
			return nil, nil, err
		}
		return e, e, nil
	default:
		client, err := newGeminiClient(ctx, cli.GeminiAPIKey, stderr)
		if err != nil {
			return nil, nil, err
		}
		e := gemini.NewEmbedder(client, cli.EmbedModel, cli.Dimensions)
		return e, e.ForQueries(), nil
	}
}

// newBatchEmbedder wraps provider with batching and retries. Embedders
// sharing limiter share its request budget.
func newBatchEmbedder(cli *CLI, provider docrag.Embedder, limiter *rate.Limiter, logger *slog.Logger) *embed.Embedder {
	return &embed.Embedder{
		Provider:   docslog.NewLoggingEmbedder(provider, logger),
		BatchSize:  cli.BatchSize,
		Dimensions: cli.Dimensions,
		Timeout:    cli.Timeout,
		Limiter:    limiter,
		Logger:     logger,
	}
}

func newGeminiClient(ctx context.Context, apiKey string, stderr io.Writer) (*genai.Client, error) {
	if apiKey == "" {
		fmt.Fprintln(stderr, "Hint: Set GEMINI_API_KEY. Get an API key at https://aistudio.google.com/apikey")
		return nil, docrag.Errorf(docrag.ECONFIG, "GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		fmt.Fprintln(stderr, "Hint: Check your GEMINI_API_KEY is valid")
		return nil, docrag.Errorf(docrag.ECONFIG, "failed to connect to Gemini API: %v", err)
	}
	return client, nil
}

// newLogger writes text logs to w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// commandName returns the first word of the selected command, e.g. "search".
func commandName(ctx *kong.Context) string {
	fields := strings.Fields(ctx.Command())
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "docrag.db"
	}
	return filepath.Join(home, ".docrag", "docrag.db")
}
