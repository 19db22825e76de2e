// Package postgres provides a docrag.RecordStore backed by PostgreSQL with
// the pgvector extension.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB represents a PostgreSQL connection pool.
type DB struct {
	db         *sql.DB
	dsn        string
	dimensions int
}

// NewDB creates a new DB for the given connection string. The dimensions
// value fixes the width of the embedding column.
func NewDB(dsn string, dimensions int) *DB {
	return &DB{dsn: dsn, dimensions: dimensions}
}

// Open connects to the database and creates the schema if needed.
func (db *DB) Open(ctx context.Context) error {
	if db.dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", db.dimensions)
	}

	conn, err := sql.Open("postgres", db.dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)
	conn.SetConnMaxIdleTime(1 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	db.db = conn

	if err := db.createSchema(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// createSchema is idempotent. The embedding column width is fixed when the
// table is first created.
func (db *DB) createSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE EXTENSION IF NOT EXISTS vector;

		CREATE TABLE IF NOT EXISTS records (
			source_url TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset INTEGER NOT NULL DEFAULT 0,
			content_hash TEXT NOT NULL DEFAULT '',
			embedding vector(%d) NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			crawled_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (source_url, chunk_index)
		);

		CREATE INDEX IF NOT EXISTS idx_records_source ON records(source);
	`, db.dimensions)

	_, err := db.db.ExecContext(ctx, schema)
	return err
}
