// Package speakers canonicalises speaker names across a transcript corpus.
//
// The same guest can be labelled differently from one episode to the next:
// "KUNAL SHAH" vs "Kunal Shah" (casing handled upstream by the parser), or a
// mistranscribed "Shreyas Dosh" next to "Shreyas Doshi". Left alone, these
// variants fragment one speaker's evidence across several identities and
// dilute their retrieval score.
//
// The [Resolver] matches in two stages, the same shape as the phonetic
// entity correction this grew out of: exact case-insensitive lookup first,
// then Double Metaphone code overlap combined with a high Jaro-Winkler
// floor against every name seen so far. The first-seen spelling of a name
// becomes its canonical form.
package speakers

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultSimilarity is the Jaro-Winkler floor for merging two phonetically
// overlapping names. High on purpose: a false merge (two real people
// collapsed into one) is far worse than a missed one.
const defaultSimilarity = 0.93

// Resolver maps observed speaker names to canonical forms. Names are
// registered on first sight; later near-duplicates resolve to the earlier
// spelling.
//
// A Resolver is not safe for concurrent use. Ingest resolves names while
// committing files in order, which is inherently sequential.
type Resolver struct {
	similarity float64

	// canonical holds first-seen display forms in registration order.
	canonical []string
	// byLower maps lowercase spellings (canonical and merged variants) to
	// an index into canonical.
	byLower map[string]int
	// codes holds the Double Metaphone code set of each canonical name.
	codes []map[string]struct{}
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithSimilarity sets the Jaro-Winkler floor for merging phonetically
// overlapping names. Default: 0.93.
func WithSimilarity(threshold float64) Option {
	return func(r *Resolver) { r.similarity = threshold }
}

// NewResolver returns an empty Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		similarity: defaultSimilarity,
		byLower:    make(map[string]int),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the canonical form of name, registering it as a new
// identity when nothing seen so far matches.
//
// Two names are only ever merged when their Double Metaphone codes overlap,
// their Jaro-Winkler similarity reaches the configured floor, and their
// token counts differ by at most one. The token guard keeps "Shreyas" from
// swallowing "Shreyas Doshi Advisors" no matter how similar the strings
// score.
func (r *Resolver) Resolve(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)

	if i, ok := r.byLower[lower]; ok {
		return r.canonical[i]
	}

	tokens := strings.Fields(lower)
	inCodes := nameCodes(tokens)

	bestIdx := -1
	bestScore := 0.0
	for i, canon := range r.canonical {
		canonLower := strings.ToLower(canon)
		canonTokens := strings.Fields(canonLower)
		if diff := len(tokens) - len(canonTokens); diff > 1 || diff < -1 {
			continue
		}
		if !codesOverlap(inCodes, r.codes[i]) {
			continue
		}
		score := matchr.JaroWinkler(lower, canonLower, false)
		if score >= r.similarity && score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	if bestIdx >= 0 {
		r.byLower[lower] = bestIdx
		return r.canonical[bestIdx]
	}

	r.canonical = append(r.canonical, trimmed)
	r.codes = append(r.codes, inCodes)
	r.byLower[lower] = len(r.canonical) - 1
	return trimmed
}

// Names returns the canonical names in first-seen order.
func (r *Resolver) Names() []string {
	out := make([]string, len(r.canonical))
	copy(out, r.canonical)
	return out
}

// nameCodes returns the union of Double Metaphone codes over the tokens.
func nameCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
