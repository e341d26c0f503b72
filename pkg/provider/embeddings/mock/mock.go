// Package mock provides a recording in-memory [embeddings.Provider] for
// tests.
//
// By default every text maps to a deterministic unit vector derived from a
// hash of its bytes, so distinct texts get distinct but stable embeddings
// without any canned data. Tests that need geometric control can pin exact
// vectors per text with [Provider.SetVector].
package mock

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sync"

	"github.com/quorumhq/quorum/pkg/provider/embeddings"
)

var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall records one Embed invocation.
type EmbedCall struct {
	Text string
}

// EmbedBatchCall records one EmbedBatch invocation.
type EmbedBatchCall struct {
	Texts []string
}

// Provider is a test double for [embeddings.Provider]. Safe for concurrent
// use.
type Provider struct {
	mu         sync.Mutex
	dims       int
	model      string
	vectors    map[string][]float32
	embedCalls []EmbedCall
	batchCalls []EmbedBatchCall

	// Err, when set, is returned by every Embed and EmbedBatch call.
	Err error
}

// New returns a mock provider emitting vectors of length dims.
func New(dims int) *Provider {
	return &Provider{
		dims:    dims,
		model:   fmt.Sprintf("mock-embed-%d", dims),
		vectors: make(map[string][]float32),
	}
}

// SetVector pins the embedding returned for text. The vector must have the
// provider's dimensionality.
func (p *Provider) SetVector(text string, vec []float32) {
	if len(vec) != p.dims {
		panic(fmt.Sprintf("mock embeddings: vector length %d, provider dims %d", len(vec), p.dims))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.vectors[text] = vec
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.embedCalls = append(p.embedCalls, EmbedCall{Text: text})
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vectorFor(text), nil
}

// EmbedBatch implements [embeddings.Provider].
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	recorded := make([]string, len(texts))
	copy(recorded, texts)
	p.batchCalls = append(p.batchCalls, EmbedBatchCall{Texts: recorded})
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorFor(t)
	}
	return out, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int { return p.dims }

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string { return p.model }

// EmbedCalls returns a copy of all recorded Embed invocations.
func (p *Provider) EmbedCalls() []EmbedCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EmbedCall, len(p.embedCalls))
	copy(out, p.embedCalls)
	return out
}

// EmbedBatchCalls returns a copy of all recorded EmbedBatch invocations.
func (p *Provider) EmbedBatchCalls() []EmbedBatchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EmbedBatchCall, len(p.batchCalls))
	copy(out, p.batchCalls)
	return out
}

// vectorFor returns the pinned vector for text, or a deterministic unit
// vector seeded from the text's FNV hash. Callers hold p.mu.
func (p *Provider) vectorFor(text string) []float32 {
	if vec, ok := p.vectors[text]; ok {
		out := make([]float32, len(vec))
		copy(out, vec)
		return out
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, p.dims)
	var norm float64
	for i := range vec {
		// xorshift keeps the sequence reproducible per text.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v := float64(int64(state%2000)-1000) / 1000
		vec[i] = float32(v)
		norm += v * v
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
