// Package panel turns ranked speakers into a multi-round roundtable
// discussion.
//
// Each speaker answers strictly from their own retrieved quotes: the prompt
// hands the model the speaker's evidence verbatim and forbids inventing
// beyond it. Round one is answered in ranking order without cross-talk;
// later rounds shuffle the speaking order and feed each speaker everyone
// else's responses so far, pushing for disagreement instead of consensus.
package panel

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/quorumhq/quorum/internal/observe"
	"github.com/quorumhq/quorum/internal/retrieval"
	"github.com/quorumhq/quorum/pkg/provider/chat"
)

const (
	defaultRounds         = 3
	defaultBrevity        = 2
	defaultMaxQuoteChunks = 3
	defaultTemperature    = 0.7
)

const systemPrompt = `You are %s. Answer based ONLY on the quotes provided - do not invent information.

STRICT RULES:
1. First word must NOT be: Okay, Well, So, Look, Honestly, I think, I agree, That's, You
2. NO stage directions like (smiling), (adjusting mic), etc.
3. NO quotation marks around your response
4. NEVER repeat or paraphrase what others said - use YOUR OWN words
5. Reference SPECIFIC examples from your quotes
6. Keep to %s`

const initialPrompt = `Question: %q

YOUR ACTUAL QUOTES FROM THE PODCAST:
---
%s
---

Share YOUR unique perspective using a specific example from your quotes. Start with a concrete insight.`

const discussionPrompt = `Question: %q

WHAT OTHERS SAID:
%s

YOUR ACTUAL QUOTES FROM THE PODCAST:
---
%s
---

IMPORTANT: Do NOT echo or restate what others said. Start with YOUR OWN fresh angle.

Either:
- DISAGREE with a specific point and explain why
- ADD a different example that challenges the consensus
- SHARE a contrarian take from your experience

Be specific and concrete. No generic agreement.`

// brevityLengths maps the 1-5 brevity level to the length instruction in
// the system prompt. Unknown levels fall back to level 2.
var brevityLengths = map[int]string{
	1: "1-2 sentences",
	2: "2-3 sentences",
	3: "3-5 sentences",
	4: "1-2 paragraphs",
	5: "2-3 paragraphs",
}

// Response is one speaker's contribution to the discussion.
type Response struct {
	Speaker string
	Text    string
	Round   int
}

// Generator runs roundtable discussions over a [chat.Provider].
type Generator struct {
	chat           chat.Provider
	rounds         int
	brevity        int
	maxQuoteChunks int
	temperature    float64
	rng            *rand.Rand
	logger         *slog.Logger
	metrics        *observe.Metrics
}

// Option configures a [Generator].
type Option func(*Generator)

// WithRounds sets how many discussion rounds [Generator.RunDiscussion]
// plays. Default: 3.
func WithRounds(n int) Option {
	return func(g *Generator) { g.rounds = n }
}

// WithBrevity sets the 1-5 response length level. Default: 2.
func WithBrevity(level int) Option {
	return func(g *Generator) { g.brevity = level }
}

// WithMaxQuoteChunks caps how many evidence chunks each prompt quotes.
// Default: 3.
func WithMaxQuoteChunks(n int) Option {
	return func(g *Generator) { g.maxQuoteChunks = n }
}

// WithTemperature overrides the sampling temperature. Default: 0.7.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithRand pins the shuffle source, for reproducible discussions and tests.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithMetrics overrides the metrics instance, for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// New creates a Generator over the given chat provider.
func New(provider chat.Provider, opts ...Option) *Generator {
	g := &Generator{
		chat:           provider,
		rounds:         defaultRounds,
		brevity:        defaultBrevity,
		maxQuoteChunks: defaultMaxQuoteChunks,
		temperature:    defaultTemperature,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(g)
	}
	if g.rng == nil {
		g.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Respond generates one speaker's answer. previous carries the discussion
// so far; the speaker's own earlier responses are filtered out of the
// prompt. With no previous responses the speaker answers from their quotes
// alone.
func (g *Generator) Respond(ctx context.Context, sc retrieval.SpeakerContext, question string, previous []Response, round int) (Response, error) {
	req := g.buildRequest(sc, question, previous)

	start := time.Now()
	resp, err := g.chat.Complete(ctx, req)
	g.metrics.CompletionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordProviderError(ctx, "chat", "completion")
		return Response{}, fmt.Errorf("panel: respond as %s: %w", sc.Speaker, err)
	}
	g.metrics.RecordProviderRequest(ctx, "chat", "completion", "ok")

	return Response{Speaker: sc.Speaker, Text: resp.Content, Round: round}, nil
}

// RespondStream is [Generator.Respond] delivered incrementally. The channel
// is closed when the reply ends; a failed stream carries the error in its
// last [chat.Delta].
func (g *Generator) RespondStream(ctx context.Context, sc retrieval.SpeakerContext, question string, previous []Response) (<-chan chat.Delta, error) {
	req := g.buildRequest(sc, question, previous)
	deltas, err := g.chat.Stream(ctx, req)
	if err != nil {
		g.metrics.RecordProviderError(ctx, "chat", "completion")
		return nil, fmt.Errorf("panel: stream as %s: %w", sc.Speaker, err)
	}
	return deltas, nil
}

// RunDiscussion plays the configured number of rounds across all speakers
// and returns the responses grouped by round.
//
// Round one keeps the ranking order and gives no speaker sight of the
// others. From round two on the speaking order is shuffled and every
// speaker sees the accumulated discussion.
func (g *Generator) RunDiscussion(ctx context.Context, speakers []retrieval.SpeakerContext, question string) ([][]Response, error) {
	if len(speakers) == 0 {
		return nil, fmt.Errorf("panel: no speakers to discuss with")
	}

	var (
		rounds []([]Response)
		all    []Response
	)
	for round := 1; round <= g.rounds; round++ {
		order := make([]retrieval.SpeakerContext, len(speakers))
		copy(order, speakers)
		if round > 1 {
			g.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var roundResponses []Response
		for _, sc := range order {
			var previous []Response
			if round > 1 {
				previous = all
			}
			resp, err := g.Respond(ctx, sc, question, previous, round)
			if err != nil {
				return nil, err
			}
			roundResponses = append(roundResponses, resp)
			all = append(all, resp)
			g.logger.Debug("panel response", "round", round, "speaker", sc.Speaker, "chars", len(resp.Text))
		}
		rounds = append(rounds, roundResponses)
	}
	return rounds, nil
}

// buildRequest assembles the system and user prompts for one response.
func (g *Generator) buildRequest(sc retrieval.SpeakerContext, question string, previous []Response) chat.Request {
	length, ok := brevityLengths[g.brevity]
	if !ok {
		length = brevityLengths[defaultBrevity]
	}
	system := fmt.Sprintf(systemPrompt, sc.Speaker, length)
	quotes := sc.ContextText(g.maxQuoteChunks)

	var prompt string
	if len(previous) == 0 {
		prompt = fmt.Sprintf(initialPrompt, question, quotes)
	} else {
		var others []string
		for _, r := range previous {
			if r.Speaker == sc.Speaker {
				continue
			}
			others = append(others, fmt.Sprintf("[%s]: %s", r.Speaker, r.Text))
		}
		prev := "No other responses yet."
		if len(others) > 0 {
			prev = strings.Join(others, "\n\n")
		}
		prompt = fmt.Sprintf(discussionPrompt, question, prev, quotes)
	}

	return chat.Request{
		System:      system,
		Messages:    []chat.Message{{Role: "user", Content: prompt}},
		Temperature: g.temperature,
	}
}
