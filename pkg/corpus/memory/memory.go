// Package memory implements [corpus.Store] entirely in process.
//
// Child search is a brute-force cosine scan, so it stays exact and needs no
// extension or daemon — the right trade for tests and corpora of a few
// thousand chunks. Ordering is fully deterministic: ties on distance fall
// back to insertion order.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/quorumhq/quorum/pkg/corpus"
)

var _ corpus.Store = (*Store)(nil)

// Store is an in-memory corpus backend. All methods are safe for concurrent
// use.
type Store struct {
	mu sync.RWMutex

	parents map[string]corpus.ParentChunk

	children map[string]int // ID → index into childOrder
	// childOrder preserves insertion order so equal-distance results come
	// back in a stable order.
	childOrder []corpus.ChildChunk
}

// NewStore returns an empty in-memory corpus.
func NewStore() *Store {
	return &Store{
		parents:  make(map[string]corpus.ParentChunk),
		children: make(map[string]int),
	}
}

// UpsertChildren implements [corpus.ChildIndex]. Re-upserting an ID keeps
// its original insertion position.
func (s *Store) UpsertChildren(_ context.Context, chunks []corpus.ChildChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if i, ok := s.children[c.ID]; ok {
			s.childOrder[i] = c
			continue
		}
		s.children[c.ID] = len(s.childOrder)
		s.childOrder = append(s.childOrder, c)
	}
	return nil
}

// Search implements [corpus.ChildIndex] with an exact cosine scan.
func (s *Store) Search(_ context.Context, embedding []float32, n int) ([]corpus.ChildMatch, error) {
	if n <= 0 {
		return []corpus.ChildMatch{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		match corpus.ChildMatch
		order int
	}
	results := make([]scored, 0, len(s.childOrder))
	for i, c := range s.childOrder {
		d, err := cosineDistance(embedding, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("memory store: search: chunk %s: %w", c.ID, err)
		}
		results = append(results, scored{
			match: corpus.ChildMatch{ChildID: c.ID, ParentID: c.ParentID, Distance: d},
			order: i,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].match.Distance != results[j].match.Distance {
			return results[i].match.Distance < results[j].match.Distance
		}
		return results[i].order < results[j].order
	})

	if n > len(results) {
		n = len(results)
	}
	matches := make([]corpus.ChildMatch, n)
	for i := range matches {
		matches[i] = results[i].match
	}
	return matches, nil
}

// UpsertParents implements [corpus.ParentStore].
func (s *Store) UpsertParents(_ context.Context, chunks []corpus.ParentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range chunks {
		s.parents[p.ID] = p
	}
	return nil
}

// GetParents implements [corpus.ParentStore].
func (s *Store) GetParents(_ context.Context, ids []string) (map[string]corpus.ParentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]corpus.ParentChunk, len(ids))
	for _, id := range ids {
		if p, ok := s.parents[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// ListSpeakers implements [corpus.ParentStore].
func (s *Store) ListSpeakers(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var speakers []string
	for _, p := range s.parents {
		if _, ok := seen[p.Speaker]; !ok {
			seen[p.Speaker] = struct{}{}
			speakers = append(speakers, p.Speaker)
		}
	}
	sort.Strings(speakers)
	if speakers == nil {
		speakers = []string{}
	}
	return speakers, nil
}

// Reset implements [corpus.Store].
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents = make(map[string]corpus.ParentChunk)
	s.children = make(map[string]int)
	s.childOrder = nil
	return nil
}

// Close implements [corpus.Store]. It is a no-op.
func (s *Store) Close() error { return nil }

// cosineDistance returns 1 − cos(a, b). A zero vector on either side yields
// the maximum distance 1 rather than NaN.
func cosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1, nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}
