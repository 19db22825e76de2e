package docrag

import (
	"context"
	"time"
)

// Record is a chunk persisted together with its embedding and page metadata.
// Records are keyed by (SourceURL, ChunkIndex).
type Record struct {
	SourceURL  string    `json:"sourceUrl"`
	ChunkIndex int       `json:"chunkIndex"`
	Content    string    `json:"content"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Hash       string    `json:"hash"`
	Embedding  []float32 `json:"embedding,omitempty"`

	// Page metadata.
	Title     string    `json:"title,omitempty"`
	Source    string    `json:"source"` // Host of SourceURL, used for filtering
	CrawledAt time.Time `json:"crawledAt"`

	Info ChunkInfo `json:"info"`
}

// Validate returns an error if the record contains invalid fields.
func (r *Record) Validate() error {
	if r.SourceURL == "" {
		return Errorf(EINVALID, "record source URL required")
	}
	if r.ChunkIndex < 0 {
		return Errorf(EINVALID, "record chunk index must not be negative")
	}
	if len(r.Embedding) == 0 {
		return Errorf(EINVALID, "record embedding required")
	}
	return nil
}

// RecordFilter restricts similarity search to matching records.
// Nil fields are ignored.
type RecordFilter struct {
	SourceURL *string `json:"sourceUrl,omitempty"`
	Source    *string `json:"source,omitempty"`
}

// QueryResult is a record matched by a similarity query.
type QueryResult struct {
	Record *Record `json:"record"`
	Score  float64 `json:"score"` // Higher is more relevant
	Rank   int     `json:"rank"`  // 1-based
}

// RecordStore persists records and answers similarity queries.
// Failures to reach the underlying store carry the ESTORAGE code.
type RecordStore interface {
	// UpsertRecords writes records, replacing any existing record with the
	// same (SourceURL, ChunkIndex). Returns the number of records written.
	UpsertRecords(ctx context.Context, records []*Record) (int, error)

	// DeleteBySource removes all records for a URL.
	// Returns the number of records removed.
	DeleteBySource(ctx context.Context, sourceURL string) (int, error)

	// ReplaceSource atomically removes all records for a URL and writes
	// records in their place. If it fails, the stored records are unchanged.
	// Returns the number of records written.
	ReplaceSource(ctx context.Context, sourceURL string, records []*Record) (int, error)

	// CountBySource returns the number of records stored for a URL.
	CountBySource(ctx context.Context, sourceURL string) (int, error)

	// SimilaritySearch returns up to topK records ordered by descending
	// cosine similarity to vector. Equal scores are ordered by CrawledAt
	// descending, then SourceURL and ChunkIndex ascending.
	SimilaritySearch(ctx context.Context, vector []float32, topK int, filter RecordFilter) ([]*QueryResult, error)

	// ListSources returns the distinct sources (hosts) with stored records, sorted.
	ListSources(ctx context.Context) ([]string, error)
}
