// Package corpus defines the two-level chunk store behind speaker retrieval.
//
// The corpus holds every speaker turn twice, at different granularities:
//
//   - Parent chunks are coarse slices of a turn (on the order of 2 KB),
//     big enough to quote from. They carry the turn's provenance metadata
//     and are fetched by ID.
//   - Child chunks are fine slices of a parent (a few hundred characters),
//     small enough to embed precisely. They carry the embedding and are
//     what similarity search runs against.
//
// Searching small and reading big keeps match precision without starving
// downstream prompts of context. [ChildIndex] and [ParentStore] are the two
// halves; [Store] is a full backend implementing both.
package corpus

import "context"

// ParentChunk is a coarse, quotable slice of one speaker turn.
type ParentChunk struct {
	// ID is globally unique across the corpus and stable across re-ingests
	// of identical input.
	ID string

	// Text is the chunk body. When the turn had a preceding host question,
	// Text frames it as "Question: ...\n\nAnswer: ...".
	Text string

	Speaker    string
	SourceFile string
	Timestamp  string

	// PrecedingQuestion is the host question before this turn, truncated
	// to 500 characters.
	PrecedingQuestion string
}

// ChildChunk is a fine-grained slice of a parent, carrying the embedding
// used for similarity search.
type ChildChunk struct {
	ID       string
	ParentID string
	Speaker  string
	Text     string

	// Embedding has the store's configured dimensionality.
	Embedding []float32
}

// ChildMatch is one similarity-search hit against the child index.
type ChildMatch struct {
	ChildID  string
	ParentID string

	// Distance is the cosine distance in [0, 2]; similarity is 1−distance.
	Distance float64
}

// ChildIndex is the searchable fine-grained half of the corpus.
//
// Implementations must be safe for concurrent use.
type ChildIndex interface {
	// UpsertChildren inserts or replaces child chunks by ID.
	UpsertChildren(ctx context.Context, chunks []ChildChunk) error

	// Search returns up to n child chunks nearest to embedding, ordered by
	// ascending cosine distance. An empty index returns an empty slice.
	Search(ctx context.Context, embedding []float32, n int) ([]ChildMatch, error)
}

// ParentStore holds the coarse half of the corpus, addressed by ID.
//
// Implementations must be safe for concurrent use.
type ParentStore interface {
	// UpsertParents inserts or replaces parent chunks by ID.
	UpsertParents(ctx context.Context, chunks []ParentChunk) error

	// GetParents returns the parents for the given IDs, keyed by ID.
	// Unknown IDs are simply absent from the result, not an error.
	GetParents(ctx context.Context, ids []string) (map[string]ParentChunk, error)

	// ListSpeakers returns the distinct speaker names present in the
	// corpus, sorted ascending.
	ListSpeakers(ctx context.Context) ([]string, error)
}

// Store is a complete corpus backend.
type Store interface {
	ChildIndex
	ParentStore

	// Reset removes all parent and child chunks.
	Reset(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
