package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/quorumhq/quorum/pkg/corpus"
)

// UpsertChildren implements [corpus.ChildIndex]. Chunks are written in one
// batch round-trip; an existing chunk with the same ID is fully replaced.
func (s *Store) UpsertChildren(ctx context.Context, chunks []corpus.ChildChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const q = `
		INSERT INTO child_chunks (id, parent_id, speaker, text, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    parent_id = EXCLUDED.parent_id,
		    speaker   = EXCLUDED.speaker,
		    text      = EXCLUDED.text,
		    embedding = EXCLUDED.embedding`

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(q, c.ID, c.ParentID, c.Speaker, c.Text, pgvector.NewVector(c.Embedding))
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("child index: upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// Search implements [corpus.ChildIndex]. It returns the n children nearest
// to embedding by cosine distance, most similar first.
func (s *Store) Search(ctx context.Context, embedding []float32, n int) ([]corpus.ChildMatch, error) {
	const q = `
		SELECT id, parent_id, embedding <=> $1 AS distance
		FROM   child_chunks
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), n)
	if err != nil {
		return nil, fmt.Errorf("child index: search: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (corpus.ChildMatch, error) {
		var m corpus.ChildMatch
		err := row.Scan(&m.ChildID, &m.ParentID, &m.Distance)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("child index: scan rows: %w", err)
	}
	if matches == nil {
		matches = []corpus.ChildMatch{}
	}
	return matches, nil
}
