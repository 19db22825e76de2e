package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/fwojciec/docrag"
)

// Compile-time interface verification.
var _ docrag.RecordStore = (*RecordStore)(nil)

// RecordStore implements docrag.RecordStore using SQLite.
// Similarity is computed in process over the candidate rows.
type RecordStore struct {
	db *DB

	// dimensions, when positive, is enforced on every written record and query.
	dimensions int
}

// NewRecordStore creates a new RecordStore. A positive dimensions value
// rejects embeddings of any other length.
func NewRecordStore(db *DB, dimensions int) *RecordStore {
	return &RecordStore{db: db, dimensions: dimensions}
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

	tx, err := s.db.BeginTx(ctx)
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

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE source_url = ?", sourceURL); err != nil {
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
		if err := s.validate(r); err != nil {
			return err
		}
	}
	return nil
}

func upsert(ctx context.Context, tx *sql.Tx, records []*docrag.Record) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (source_url, chunk_index, content, start_offset, end_offset, content_hash,
			embedding, dimensions, title, source, metadata, crawled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_url, chunk_index) DO UPDATE SET
			content = excluded.content,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			content_hash = excluded.content_hash,
			embedding = excluded.embedding,
			dimensions = excluded.dimensions,
			title = excluded.title,
			source = excluded.source,
			metadata = excluded.metadata,
			crawled_at = excluded.crawled_at
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
			encodeVector(r.Embedding), len(r.Embedding), r.Title, r.Source, string(metadata),
			r.CrawledAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return docrag.Errorf(docrag.ESTORAGE, "upsert record %s#%d: %v", r.SourceURL, r.ChunkIndex, err)
		}
	}
	return nil
}

// DeleteBySource removes all records for a URL.
func (s *RecordStore) DeleteBySource(ctx context.Context, sourceURL string) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE source_url = ?", sourceURL)
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
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE source_url = ?", sourceURL).Scan(&n); err != nil {
		return 0, docrag.Errorf(docrag.ESTORAGE, "count records: %v", err)
	}
	return n, nil
}

// SimilaritySearch scores every record matching filter against vector and
// returns the best topK. Records of a different dimension are skipped.
func (s *RecordStore) SimilaritySearch(ctx context.Context, vector []float32, topK int, filter docrag.RecordFilter) ([]*docrag.QueryResult, error) {
	if len(vector) == 0 {
		return nil, docrag.Errorf(docrag.EINVALID, "query vector required")
	}
	if s.dimensions > 0 && len(vector) != s.dimensions {
		return nil, docrag.Errorf(docrag.EINVALID, "query vector has %d dimensions, store expects %d", len(vector), s.dimensions)
	}
	if topK <= 0 {
		topK = docrag.DefaultTopK
	}

	var query strings.Builder
	var args []any

	query.WriteString(`SELECT source_url, chunk_index, content, start_offset, end_offset, content_hash,
		embedding, title, source, metadata, crawled_at FROM records WHERE dimensions = ?`)
	args = append(args, len(vector))

	if filter.SourceURL != nil {
		query.WriteString(" AND source_url = ?")
		args = append(args, *filter.SourceURL)
	}
	if filter.Source != nil {
		query.WriteString(" AND source = ?")
		args = append(args, *filter.Source)
	}

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "query records: %v", err)
	}
	defer rows.Close()

	var results []*docrag.QueryResult
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &docrag.QueryResult{
			Record: r,
			Score:  cosine(vector, r.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "query records: %v", err)
	}

	slices.SortFunc(results, compareResults)
	if len(results) > topK {
		results = results[:topK]
	}
	for i, r := range results {
		r.Rank = i + 1
	}
	return results, nil
}

// ListSources returns the distinct hosts with stored records.
func (s *RecordStore) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT source FROM records WHERE source != '' ORDER BY source ASC")
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

func (s *RecordStore) validate(r *docrag.Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if s.dimensions > 0 && len(r.Embedding) != s.dimensions {
		return docrag.Errorf(docrag.EINVALID, "record %s#%d has %d dimensions, store expects %d",
			r.SourceURL, r.ChunkIndex, len(r.Embedding), s.dimensions)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*docrag.Record, error) {
	var r docrag.Record
	var embedding []byte
	var metadata, crawledAt string

	if err := row.Scan(&r.SourceURL, &r.ChunkIndex, &r.Content, &r.Start, &r.End, &r.Hash,
		&embedding, &r.Title, &r.Source, &metadata, &crawledAt); err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "scan record: %v", err)
	}

	var err error
	if r.Embedding, err = decodeVector(embedding); err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "record %s#%d: %v", r.SourceURL, r.ChunkIndex, err)
	}
	if err := json.Unmarshal([]byte(metadata), &r.Info); err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "record %s#%d metadata: %v", r.SourceURL, r.ChunkIndex, err)
	}
	if r.CrawledAt, err = parseTime(crawledAt, "crawled_at"); err != nil {
		return nil, docrag.Errorf(docrag.ESTORAGE, "record %s#%d: %v", r.SourceURL, r.ChunkIndex, err)
	}
	return &r, nil
}

// compareResults orders by score descending, then newest crawl, then
// URL and chunk index ascending.
func compareResults(a, b *docrag.QueryResult) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := b.Record.CrawledAt.Compare(a.Record.CrawledAt); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Record.SourceURL, b.Record.SourceURL); c != 0 {
		return c
	}
	return cmp.Compare(a.Record.ChunkIndex, b.Record.ChunkIndex)
}
