// Package postgres implements [corpus.Store] on PostgreSQL with the pgvector
// extension.
//
// Parent and child chunks live in two tables sharing one [pgxpool.Pool].
// Only children carry an embedding column; an HNSW cosine index over it
// serves similarity search. [Migrate] installs the extension and schema and
// is safe to run on every start.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 768)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlParentChunks = `
CREATE TABLE IF NOT EXISTS parent_chunks (
    id                 TEXT  PRIMARY KEY,
    text               TEXT  NOT NULL,
    speaker            TEXT  NOT NULL,
    source_file        TEXT  NOT NULL DEFAULT '',
    ts                 TEXT  NOT NULL DEFAULT '',
    preceding_question TEXT  NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_parent_chunks_speaker
    ON parent_chunks (speaker);
`

// ddlChildChunks returns the child-table DDL with the embedding dimension
// substituted. The dimension is baked into the column type at creation time.
func ddlChildChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS child_chunks (
    id         TEXT  PRIMARY KEY,
    parent_id  TEXT  NOT NULL REFERENCES parent_chunks (id) ON DELETE CASCADE,
    speaker    TEXT  NOT NULL,
    text       TEXT  NOT NULL,
    embedding  vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_child_chunks_parent_id
    ON child_chunks (parent_id);

CREATE INDEX IF NOT EXISTS idx_child_chunks_embedding
    ON child_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the pgvector extension, both chunk tables and
// their indexes. Idempotent and safe to call on every application start.
//
// embeddingDimensions must match the embedding model in use (e.g. 768 for
// nomic-embed-text, 1536 for OpenAI text-embedding-3-small). Changing it
// after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlParentChunks,
		ddlChildChunks(embeddingDimensions),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
