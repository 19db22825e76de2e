package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fwojciec/docrag"
	"github.com/pgvector/pgvector-go"
)

// Compile-time interface verification.
var _ docrag.RecordStore = (*RecordStore)(nil)

// RecordStore implements docrag.RecordStore using PostgreSQL and pgvector.
// Similarity is the cosine similarity computed by the database.
type RecordStore struct {
	db *DB
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(db *DB) *RecordStore {
	return &RecordStore{db: db}
}

// UpsertRecords writes records in a single transaction, replacing existing
// rows with the same (source_url, chunk_index).
func (s *RecordStore) UpsertRecords(ctx context.Context, records []*docrag.Record) (int, error) {
	if err := s.validateAll(records); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "begin transaction: %v", err)
	}
	defer tx.Rollback()

	if err := upsert(ctx, tx, records); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "commit upsert: %v", err)
	}
	return len(records), nil
}

// ReplaceSource deletes every record for sourceURL and writes records in one
// transaction. On failure the previously stored records are left intact.
func (s *RecordStore) ReplaceSource(ctx context.Context, sourceURL string, records []*docrag.Record) (int, error) {
	if err := s.validateAll(records); err != nil {
		return 0, err
	}
	for _, r := range records {
		if r.SourceURL != sourceURL {
			return 0, docrag.Errorf(docrag.EINVALID, "record %s#%d does not belong to %s", r.SourceURL, r.ChunkIndex, sourceURL)
		}
	}

	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE source_url = $1", sourceURL); err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "delete records: %v", err)
	}
	if err := upsert(ctx, tx, records); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "commit replace: %v", err)
	}
	return len(records), nil
}

func (s *RecordStore) validateAll(records []*docrag.Record) error {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if len(r.Embedding) != s.db.dimensions {
			return docrag.Errorf(docrag.EINVALID, "record %s#%d has %d dimensions, store expects %d",
				r.SourceURL, r.ChunkIndex, len(r.Embedding), s.db.dimensions)
		}
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, records []*docrag.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (source_url, chunk_index, content, start_offset, end_offset, content_hash,
			embedding, title, source, metadata, crawled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source_url, chunk_index) DO UPDATE SET
			content = EXCLUDED.content,
			start_offset = EXCLUDED.start_offset,
			end_offset = EXCLUDED.end_offset,
			content_hash = EXCLUDED.content_hash,
			embedding = EXCLUDED.embedding,
			title = EXCLUDED.title,
			source = EXCLUDED.source,
			metadata = EXCLUDED.metadata,
			crawled_at = EXCLUDED.crawled_at
	`)
	if err != nil {
		return docrag.Errorf(docrag.ESTORAGE, "prepare upsert: %v", err)
	}
	defer stmt.Close()

	for _, r := range records {
		metadata, err := json.Marshal(r.Info)
		if err != nil {
			return docrag.Errorf(docrag.EINTERNAL, "encode metadata: %v", err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.SourceURL, r.ChunkIndex, r.Content, r.Start, r.End, r.Hash,
			pgvector.NewVector(r.Embedding), r.Title, r.Source, string(metadata), r.CrawledAt.UTC(),
		); err != nil {
			return docrag.Errorf(docrag.ESTORAGE, "upsert record %s#%d: %v", r.SourceURL, r.ChunkIndex, err)
		}
	}
	return nil
}

// DeleteBySource removes all records for a URL.
func (s *RecordStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	result, err := s.db.db.ExecContext(ctx, "DELETE FROM records WHERE source_url = $1", sourceURL)
	if err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "delete records: %v", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "delete records: %v", err)
	}
	return int(rows), nil
}

// CountBySource returns the number of records stored for a URL.
func (s *RecordStore) CountBySource(ctx context.Context, sourceURL string) (int, error) {
	var n int
	if err := s.db.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE source_url = $1", sourceURL).Scan(&n); err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "count records: %v", err)
	}
	return n, nil
}

// SimilaritySearch returns the topK records closest to vector by cosine distance.
func (s *RecordStore) SimilaritySearch(ctx context.Context, vector []float32, topK int, filter docrag.RecordFilter) ([]*docrag.QueryResult, error) {
	if len(vector) != s.db.dimensions {
		return nil, docrag.Errorf(docrag.EINVALID, "query vector has %d dimensions, store expects %d", len(vector), s.db.dimensions)
	}
	if topK <= 0 {
		topK = docrag.DefaultTopK
	}

	var query strings.Builder
	args := []any{pgvector.NewVector(vector)}

	query.WriteString(`SELECT source_url, chunk_index, content, start_offset, end_offset, content_hash,
		embedding, title, source, metadata, crawled_at, 1 - (embedding <=> $1) AS score
		FROM records WHERE TRUE`)

	if filter.SourceURL != nil {
		args = append(args, *filter.SourceURL)
		fmt.Fprintf(&query, " AND source_url = $%d", len(args))
	}
	if filter.Source != nil {
		args = append(args, *filter.Source)
		fmt.Fprintf(&query, " AND source = $%d", len(args))
	}

	args = append(args, topK)
	fmt.Fprintf(&query, " ORDER BY score DESC, crawled_at DESC, source_url ASC, chunk_index ASC LIMIT $%d", len(args))

	rows, err := s.db.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "query records: %v", err)
	}
	defer rows.Close()

	var results []*docrag.QueryResult
	for rows.Next() {
		var r docrag.Record
		var embedding pgvector.Vector
		var metadata []byte
		var score float64

		if err := rows.Scan(&r.SourceURL, &r.ChunkIndex, &r.Content, &r.Start, &r.End, &r.Hash,
			&embedding, &r.Title, &r.Source, &metadata, &r.CrawledAt, &score); err != nil {
			return nil, docrag.Errorf(docrag.ESTORAGE, "scan record: %v", err)
		}
		if err := json.Unmarshal(metadata, &r.Info); err != nil {
			return nil, docrag.Errorf(docrag.ESTORAGE, "record %s#%d metadata: %v", r.SourceURL, r.ChunkIndex, err)
		}
		r.Embedding = embedding.Slice()

		results = append(results, &docrag.QueryResult{
			Record: &r,
			Score:  score,
			Rank:   len(results) + 1,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "query records: %v", err)
	}
	return results, nil
}

// ListSources returns the distinct hosts with stored records.
func (s *RecordStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.db.QueryContext(ctx, "SELECT DISTINCT source FROM records WHERE source <> '' ORDER BY source ASC")
	if err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "list sources: %v", err)
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, docrag.Errorf(docrag.ESTORAGE, "list sources: %v", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "list sources: %v", err)
	}
	return sources, nil
}
