package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quorumhq/quorum/pkg/corpus"
)

// UpsertParents implements [corpus.ParentStore]. Chunks are written in one
// batch round-trip; an existing chunk with the same ID is fully replaced.
func (s *Store) UpsertParents(ctx context.Context, chunks []corpus.ParentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	const q = `
		INSERT INTO parent_chunks (id, text, speaker, source_file, ts, preceding_question)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
		    text               = EXCLUDED.text,
		    speaker            = EXCLUDED.speaker,
		    source_file        = EXCLUDED.source_file,
		    ts                 = EXCLUDED.ts,
		    preceding_question = EXCLUDED.preceding_question`

	batch := &pgx.Batch{}
	for _, p := range chunks {
		batch.Queue(q, p.ID, p.Text, p.Speaker, p.SourceFile, p.Timestamp, p.PrecedingQuestion)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("parent store: upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// GetParents implements [corpus.ParentStore]. IDs with no matching row are
// absent from the returned map.
func (s *Store) GetParents(ctx context.Context, ids []string) (map[string]corpus.ParentChunk, error) {
	if len(ids) == 0 {
		return map[string]corpus.ParentChunk{}, nil
	}

	const q = `
		SELECT id, text, speaker, source_file, ts, preceding_question
		FROM   parent_chunks
		WHERE  id = ANY($1)`

	rows, err := s.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("parent store: get %d parents: %w", len(ids), err)
	}

	parents := make(map[string]corpus.ParentChunk, len(ids))
	var p corpus.ParentChunk
	_, err = pgx.ForEachRow(rows, []any{&p.ID, &p.Text, &p.Speaker, &p.SourceFile, &p.Timestamp, &p.PrecedingQuestion}, func() error {
		parents[p.ID] = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("parent store: scan rows: %w", err)
	}
	return parents, nil
}

// ListSpeakers implements [corpus.ParentStore].
func (s *Store) ListSpeakers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT speaker FROM parent_chunks ORDER BY speaker`)
	if err != nil {
		return nil, fmt.Errorf("parent store: list speakers: %w", err)
	}

	speakers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("parent store: scan rows: %w", err)
	}
	if speakers == nil {
		speakers = []string{}
	}
	return speakers, nil
}
