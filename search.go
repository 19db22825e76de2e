package docrag

import "context"

// DefaultTopK is the number of results returned when none is requested.
const DefaultTopK = 5

// SearchOptions configures a similarity search.
type SearchOptions struct {
	// Maximum number of results to return.
	TopK int `json:"topK,omitempty"`

	Filter RecordFilter `json:"filter"`
}

// SearchService provides semantic search over stored records.
type SearchService interface {
	// Search embeds the query and returns records ordered by relevance.
	// Returns EINVALID for a blank query and EEMBED if the query cannot
	// be embedded.
	Search(ctx context.Context, query string, opts SearchOptions) ([]*QueryResult, error)
}
