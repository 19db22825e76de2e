// Package retrieve answers similarity queries over stored records.
package retrieve

import (
	"context"
	"strings"

	"github.com/fwojciec/docrag"
)

var _ docrag.SearchService = (*Searcher)(nil)

// Searcher implements docrag.SearchService by embedding the query and
// delegating to the record store.
type Searcher struct {
	Embedder docrag.BatchEmbedder
	Records  docrag.RecordStore
}

// Search embeds query as a single text and returns the closest records.
// There is no lexical fallback: a query that cannot be embedded fails
// with EEMBED.
func (s *Searcher) Search(ctx context.Context, query string, opts docrag.SearchOptions) ([]*docrag.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, docrag.Errorf(docrag.EINVALID, "query required")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = docrag.DefaultTopK
	}

	embedded, err := s.Embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		if docrag.ErrorCode(err) == docrag.ECONFIG || ctx.Err() != nil {
			return nil, err
		}
		return nil, docrag.Errorf(docrag.EEMBED, "embed query: %s", docrag.ErrorMessage(err))
	}
	if embedded.Failed(0) {
		return nil, docrag.Errorf(docrag.EEMBED, "embed query: %s", docrag.ErrorMessage(embedded.Failures[0]))
	}

	return s.Records.SimilaritySearch(ctx, embedded.Vectors[0], topK, opts.Filter)
}
