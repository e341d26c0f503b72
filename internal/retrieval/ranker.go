// Package retrieval ranks corpus speakers by relevance to a free-text
// question using parent-child retrieval.
//
// The question is embedded and searched against the fine-grained child
// index; hits are folded up to their parent chunks, parents are grouped by
// speaker, and each speaker is scored from their parents' best child
// similarities. Searching small and quoting big: children pinpoint the
// match, parents supply enough surrounding text to be worth reading.
//
// A ranking is a pure function of the search results — nothing is cached
// across calls and equal inputs produce equal output, including order.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quorumhq/quorum/internal/observe"
	"github.com/quorumhq/quorum/pkg/corpus"
	"github.com/quorumhq/quorum/pkg/provider/embeddings"
)

// defaultSearchN is how many child hits one ranking call requests. Wide on
// purpose: the per-speaker aggregation needs to see beyond the first few
// hits to gather multiple parents per speaker.
const defaultSearchN = 100

// Evidence is one parent chunk supporting a speaker's ranking.
type Evidence struct {
	ParentID          string
	Text              string
	Speaker           string
	SourceFile        string
	Timestamp         string
	PrecedingQuestion string

	// Similarity is the best child-match similarity (1−distance) among
	// this parent's matched children.
	Similarity float64

	// ChildMatches is how many child hits pointed at this parent.
	ChildMatches int
}

// SpeakerContext is one ranked speaker with supporting evidence, sorted by
// descending similarity. Immutable once returned.
type SpeakerContext struct {
	Speaker  string
	Score    float64
	Evidence []Evidence
}

// ContextText renders up to maxChunks evidence chunks (all of them when
// maxChunks <= 0) as labelled quotes suitable for a prompt:
//
//	[From <source> at <timestamp>]
//	"<text>"
func (sc SpeakerContext) ContextText(maxChunks int) string {
	n := len(sc.Evidence)
	if maxChunks > 0 && maxChunks < n {
		n = maxChunks
	}
	blocks := make([]string, 0, n)
	for _, ev := range sc.Evidence[:n] {
		source := ev.SourceFile
		if source == "" {
			source = "Unknown"
		}
		// Plain quote characters around the raw text: the body keeps its
		// newlines, so question-framed and multi-paragraph chunks arrive in
		// the prompt as written, not as one escaped line.
		blocks = append(blocks, fmt.Sprintf("[From %s at %s]\n\"%s\"", source, ev.Timestamp, ev.Text))
	}
	return strings.Join(blocks, "\n\n")
}

// Ranker scores corpus speakers against free-text questions. Read-only
// after construction and safe for concurrent use.
type Ranker struct {
	embedder embeddings.Provider
	children corpus.ChildIndex
	parents  corpus.ParentStore
	searchN  int
	metrics  *observe.Metrics
}

// Option configures a [Ranker].
type Option func(*Ranker)

// WithSearchN sets how many child hits each ranking call requests.
// Default: 100.
func WithSearchN(n int) Option {
	return func(r *Ranker) { r.searchN = n }
}

// WithMetrics overrides the metrics instance, for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Ranker) { r.metrics = m }
}

// NewRanker creates a Ranker over the given embedding provider and corpus
// halves.
func NewRanker(embedder embeddings.Provider, children corpus.ChildIndex, parents corpus.ParentStore, opts ...Option) *Ranker {
	r := &Ranker{
		embedder: embedder,
		children: children,
		parents:  parents,
		searchN:  defaultSearchN,
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// parentEvidence accumulates child-hit similarities per parent during one
// ranking call.
type parentEvidence struct {
	best  float64
	count int
}

// RankSpeakers returns up to topK speakers ranked by relevance to query.
//
// Each speaker's score is the sum of their parents' best child similarities
// divided by the square root of the parent count, rewarding both strength
// and breadth of evidence without letting prolific speakers win on volume
// alone. Speakers with fewer than minChunks parents are gated out first; a
// backfill pass readmits them (in first-seen order) only when the gate
// leaves fewer than topK speakers.
//
// Ties on score keep first-seen order: the order in which speakers first
// appeared while walking the child hits by descending search rank.
//
// Zero child hits yield an empty, non-nil slice.
func (r *Ranker) RankSpeakers(ctx context.Context, query string, topK, minChunks int) ([]SpeakerContext, error) {
	ctx, span := observe.StartSpan(ctx, "retrieval.rank_speakers", trace.WithAttributes(
		attribute.Int("top_k", topK),
		attribute.Int("min_chunks", minChunks),
	))
	defer span.End()

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	start := time.Now()
	hits, err := r.children.Search(ctx, queryVec, r.searchN)
	r.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("retrieval: search children: %w", err)
	}
	span.SetAttributes(attribute.Int("child_hits", len(hits)))
	if len(hits) == 0 {
		return []SpeakerContext{}, nil
	}

	// Fold child hits per parent, remembering first-seen parent order.
	perParent := make(map[string]*parentEvidence, len(hits))
	var parentOrder []string
	for _, h := range hits {
		if h.ParentID == "" {
			continue
		}
		similarity := 1 - h.Distance
		pe, ok := perParent[h.ParentID]
		if !ok {
			pe = &parentEvidence{best: similarity}
			perParent[h.ParentID] = pe
			parentOrder = append(parentOrder, h.ParentID)
		}
		if similarity > pe.best {
			pe.best = similarity
		}
		pe.count++
	}

	parentMap, err := r.parents.GetParents(ctx, parentOrder)
	if err != nil {
		return nil, fmt.Errorf("retrieval: get parents: %w", err)
	}

	// Group parents by speaker, keeping first-seen speaker order. A parent
	// missing from the store is dropped, not an error — the child index may
	// briefly run ahead of the parent table during re-ingest.
	perSpeaker := make(map[string][]Evidence)
	var speakerOrder []string
	for _, pid := range parentOrder {
		parent, ok := parentMap[pid]
		if !ok {
			continue
		}
		pe := perParent[pid]
		if _, seen := perSpeaker[parent.Speaker]; !seen {
			speakerOrder = append(speakerOrder, parent.Speaker)
		}
		perSpeaker[parent.Speaker] = append(perSpeaker[parent.Speaker], Evidence{
			ParentID:          pid,
			Text:              parent.Text,
			Speaker:           parent.Speaker,
			SourceFile:        parent.SourceFile,
			Timestamp:         parent.Timestamp,
			PrecedingQuestion: parent.PrecedingQuestion,
			Similarity:        pe.best,
			ChildMatches:      pe.count,
		})
	}

	// Gate, score and rank.
	var ranked []SpeakerContext
	included := make(map[string]bool, len(speakerOrder))
	for _, speaker := range speakerOrder {
		evidence := perSpeaker[speaker]
		if len(evidence) < minChunks {
			continue
		}
		ranked = append(ranked, buildContext(speaker, evidence))
		included[speaker] = true
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	// Backfill below-gate speakers when the gate leaves the list short.
	if len(ranked) < topK {
		for _, speaker := range speakerOrder {
			if included[speaker] {
				continue
			}
			if len(ranked) >= topK {
				break
			}
			ranked = append(ranked, buildContext(speaker, perSpeaker[speaker]))
			included[speaker] = true
		}
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	}

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	if ranked == nil {
		ranked = []SpeakerContext{}
	}
	span.SetAttributes(attribute.Int("speakers_ranked", len(ranked)))
	return ranked, nil
}

// Speakers lists every speaker present in the corpus.
func (r *Ranker) Speakers(ctx context.Context) ([]string, error) {
	speakers, err := r.parents.ListSpeakers(ctx)
	if err != nil {
		return nil, fmt.Errorf("retrieval: list speakers: %w", err)
	}
	return speakers, nil
}

// buildContext scores one speaker and orders their evidence by descending
// similarity (stable, so equal similarities keep parent first-seen order).
func buildContext(speaker string, evidence []Evidence) SpeakerContext {
	// Every grouped speaker has at least one parent by construction; a
	// zero-evidence speaker here is a bug upstream, not a scorable state.
	if len(evidence) == 0 {
		panic("retrieval: speaker grouped with no evidence")
	}
	total := 0.0
	for _, ev := range evidence {
		total += ev.Similarity
	}
	sorted := make([]Evidence, len(evidence))
	copy(sorted, evidence)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Similarity > sorted[j].Similarity })

	return SpeakerContext{
		Speaker:  speaker,
		Score:    total / math.Sqrt(float64(len(evidence))),
		Evidence: sorted,
	}
}
