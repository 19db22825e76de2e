// Package openai provides a docrag.Embedder backed by the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fwojciec/docrag"
	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = string(openai.SmallEmbedding3)

var _ docrag.Embedder = (*Embedder)(nil)

// Embedder implements docrag.Embedder using OpenAI's embeddings endpoint.
type Embedder struct {
	client     *openai.Client
	model      string
	baseURL    string
	dimensions int
	httpClient *http.Client
}

// Option configures an Embedder.
type Option func(*Embedder)

// WithModel sets the embedding model. Defaults to DefaultModel.
func WithModel(model string) Option {
	return func(e *Embedder) {
		if model != "" {
			e.model = model
		}
	}
}

// WithBaseURL sets the API base URL, e.g. for a compatible proxy.
func WithBaseURL(baseURL string) Option {
	return func(e *Embedder) {
		if baseURL != "" {
			e.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithDimensions requests vectors of the given length. Only the
// text-embedding-3 models support shortening.
func WithDimensions(n int) Option {
	return func(e *Embedder) {
		e.dimensions = n
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Embedder) {
		e.httpClient = c
	}
}

// NewEmbedder creates a new Embedder. A missing API key is an ECONFIG error.
func NewEmbedder(apiKey string, opts ...Option) (*Embedder, error) {
	if apiKey == "" {
		return nil, docrag.Errorf(docrag.ECONFIG, "OpenAI API key required")
	}

	e := &Embedder{
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}

	config := openai.DefaultConfig(apiKey)
	if e.baseURL != "" {
		config.BaseURL = e.baseURL
	}
	config.HTTPClient = e.httpClient
	e.client = openai.NewClientWithConfig(config)
	return e, nil
}

// Embed embeds texts in one request. Vectors are returned in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:          texts,
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.dimensions,
	})
	if err != nil {
		return nil, classify(err)
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, docrag.Errorf(docrag.EEMBED, "OpenAI returned embedding index %d for %d inputs", d.Index, len(texts))
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// classify marks credential and unknown-model responses as ECONFIG so callers
// stop retrying them. Other API failures are EEMBED.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return statusError(reqErr.HTTPStatusCode, http.StatusText(reqErr.HTTPStatusCode))
	}
	return err
}

func statusError(status int, msg string) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return docrag.Errorf(docrag.ECONFIG, "openai: %d %s", status, msg)
	}
	return docrag.Errorf(docrag.EEMBED, "openai: %d %s", status, msg)
}
