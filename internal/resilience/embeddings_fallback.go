package resilience

import (
	"context"

	"github.com/quorumhq/quorum/pkg/provider/embeddings"
)

// EmbeddingsFallback implements [embeddings.Provider] with automatic
// failover across backends. Fallbacks must produce vectors of the same
// dimensionality as the primary, or search results against an existing
// corpus will be meaningless.
type EmbeddingsFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an [EmbeddingsFallback] with primary as
// the preferred backend.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional embeddings backend.
func (f *EmbeddingsFallback) AddFallback(name string, provider embeddings.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed sends the text to the first healthy backend.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch sends the batch to the first healthy backend.
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions reports the primary's dimensionality. Static metadata does
// not participate in failover.
func (f *EmbeddingsFallback) Dimensions() int {
	return f.group.Primary().Dimensions()
}

// ModelID reports the primary's model identifier.
func (f *EmbeddingsFallback) ModelID() string {
	return f.group.Primary().ModelID()
}
