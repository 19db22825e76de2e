package docrag

import "context"

// Asker answers natural language questions from retrieved passages.
type Asker interface {
	// Ask retrieves passages relevant to the question and answers from them.
	// Returns ENOTFOUND if no passages match.
	Ask(ctx context.Context, question string, opts SearchOptions) (string, error)
}
