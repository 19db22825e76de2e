package docrag

import "context"

// Embedder turns texts into fixed-length vectors using an embedding provider.
// Implementations make a single provider request per call and return one
// vector per input, in input order.
//
// Errors with code ECONFIG (bad credentials, unknown model) are treated
// as fatal by callers; any other error may be retried.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedResult holds the vectors for a batch of texts.
// Vectors[i] is nil exactly when Failures contains i.
type EmbedResult struct {
	Vectors  [][]float32
	Failures map[int]error
}

// Failed returns true if the text at index i could not be embedded.
func (r *EmbedResult) Failed(i int) bool {
	_, ok := r.Failures[i]
	return ok
}

// BatchEmbedder embeds arbitrarily large batches of texts, isolating
// individual failures instead of failing the whole batch.
type BatchEmbedder interface {
	// EmbedBatch returns one vector per text. Texts that cannot be embedded
	// are reported in EmbedResult.Failures. A non-nil error means the
	// pipeline cannot produce valid vectors at all (ECONFIG) or the
	// context was canceled.
	EmbedBatch(ctx context.Context, texts []string) (*EmbedResult, error)
}
