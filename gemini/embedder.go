package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fwojciec/docrag"
	"google.golang.org/genai"
)

// DefaultEmbedModel is the embedding model used when none is configured.
const DefaultEmbedModel = "gemini-embedding-001"

// Task types understood by the embedding API.
const (
	taskRetrievalDocument = "RETRIEVAL_DOCUMENT"
	taskRetrievalQuery    = "RETRIEVAL_QUERY"
)

var _ docrag.Embedder = (*Embedder)(nil)

// Embedder implements docrag.Embedder using the Gemini embedding API.
type Embedder struct {
	client     *genai.Client
	model      string
	dimensions int
	taskType   string
}

// NewEmbedder creates an Embedder for documents being stored. A positive
// dimensions value requests vectors of that length from the model.
func NewEmbedder(client *genai.Client, model string, dimensions int) *Embedder {
	if model == "" {
		model = DefaultEmbedModel
	}
	return &Embedder{client: client, model: model, dimensions: dimensions, taskType: taskRetrievalDocument}
}

// ForQueries returns a copy of e that embeds search queries instead of
// documents. Vectors from both share one space.
func (e *Embedder) ForQueries() *Embedder {
	q := *e
	q.taskType = taskRetrievalQuery
	return &q
}

// Embed embeds texts in one request.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	config := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		config.OutputDimensionality = &dims
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, classify(err)
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb != nil {
			vectors[i] = emb.Values
		}
	}
	return vectors, nil
}

// classify marks credential and model errors as ECONFIG so callers stop
// retrying them. Other API errors are EEMBED; anything else passes through.
func classify(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return err
	}
	switch apiErr.Code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return docrag.Errorf(docrag.ECONFIG, "gemini: %s", apiErr.Message)
	case http.StatusBadRequest:
		if strings.Contains(apiErr.Message, "API key") {
			return docrag.Errorf(docrag.ECONFIG, "gemini: %s", apiErr.Message)
		}
	}
	return docrag.Errorf(docrag.EEMBED, "gemini: %d %s", apiErr.Code, apiErr.Message)
}
