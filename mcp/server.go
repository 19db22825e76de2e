// Package mcp exposes docrag ingestion and retrieval as MCP (Model Context
// Protocol) tools so that AI assistants can crawl documentation into the
// store and query it.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/docrag"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is the MCP server version.
const Version = "0.1.0"

// Errors returned by NewServer when a dependency is missing.
var (
	ErrMissingIngester      = errors.New("mcp: ingester is required")
	ErrMissingSearchService = errors.New("mcp: search service is required")
	ErrMissingRecordStore   = errors.New("mcp: record store is required")
	ErrMissingSitemaps      = errors.New("mcp: sitemap service is required")
)

// Server serves the docrag tools over MCP.
type Server struct {
	ingester docrag.Ingester
	search   docrag.SearchService
	records  docrag.RecordStore
	sitemaps docrag.SitemapService

	server *sdk.Server
}

// NewServer creates a server and registers its tools.
func NewServer(ingester docrag.Ingester, search docrag.SearchService, records docrag.RecordStore, sitemaps docrag.SitemapService) (*Server, error) {
	switch {
	case ingester == nil:
		return nil, ErrMissingIngester
	case search == nil:
		return nil, ErrMissingSearchService
	case records == nil:
		return nil, ErrMissingRecordStore
	case sitemaps == nil:
		return nil, ErrMissingSitemaps
	}

	s := &Server{
		ingester: ingester,
		search:   search,
		records:  records,
		sitemaps: sitemaps,
		server:   sdk.NewServer(&sdk.Implementation{Name: "docrag", Version: Version}, nil),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr until ctx is canceled.
// It returns immediately if addr cannot be bound.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := sdk.NewStreamableHTTPHandler(func(_ *http.Request) *sdk.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
