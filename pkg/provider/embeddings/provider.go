// Package embeddings abstracts the text-embedding service the corpus and
// ranker depend on.
//
// A provider maps text to fixed-length float32 vectors in a space where
// cosine distance tracks semantic similarity. Ingest embeds child chunks
// with it; the ranker embeds the free-text question with the same provider
// so both sides live in the same space.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is a text-embedding backend.
//
// Every vector a single Provider returns has length Dimensions(). Vectors
// from different providers (or the same provider with a different model)
// are not comparable; the corpus bakes its dimensionality into the schema
// at migration time for exactly this reason.
//
// Providers pass text through verbatim — any model-specific prefixing
// ("query: ", "passage: ") is the caller's concern.
type Provider interface {
	// Embed returns the embedding for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one provider call; element i of the result
	// corresponds to texts[i]. On error no partial results are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed length of every vector this provider emits.
	Dimensions() int

	// ModelID identifies the underlying model, for logging and for
	// detecting corpus/model mismatches.
	ModelID() string
}
