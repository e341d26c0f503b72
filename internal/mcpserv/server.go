// Package mcpserv exposes the retrieval corpus as an MCP server over stdio,
// so MCP-capable clients can rank and list speakers without going through
// the CLI.
//
// Two tools are registered:
//   - "rank_speakers" — rank corpus speakers by relevance to a question,
//     returning each speaker's score and supporting quotes.
//   - "list_speakers" — list every speaker in the corpus.
package mcpserv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quorumhq/quorum/internal/retrieval"
)

const (
	defaultTopK      = 5
	defaultMinChunks = 2
)

// Ranker is the retrieval surface the server exposes. Implemented by
// [retrieval.Ranker].
type Ranker interface {
	RankSpeakers(ctx context.Context, query string, topK, minChunks int) ([]retrieval.SpeakerContext, error)
	Speakers(ctx context.Context) ([]string, error)
}

var _ Ranker = (*retrieval.Ranker)(nil)

// RankArgs is the input of the rank_speakers tool.
type RankArgs struct {
	// Question is the free-text question to rank speakers against.
	Question string `json:"question"`

	// TopK caps how many speakers are returned. Defaults to 5.
	TopK int `json:"top_k,omitempty"`

	// MinChunks is the evidence floor per speaker. Defaults to 2.
	MinChunks int `json:"min_chunks,omitempty"`
}

// Quote is one supporting chunk in a rank_speakers result.
type Quote struct {
	Text       string  `json:"text"`
	SourceFile string  `json:"source_file"`
	Timestamp  string  `json:"timestamp"`
	Similarity float64 `json:"similarity"`
}

// RankedSpeaker is one speaker in a rank_speakers result.
type RankedSpeaker struct {
	Speaker string  `json:"speaker"`
	Score   float64 `json:"score"`
	Quotes  []Quote `json:"quotes"`
}

// RankResult is the output of the rank_speakers tool.
type RankResult struct {
	Speakers []RankedSpeaker `json:"speakers"`
}

// ListArgs is the (empty) input of the list_speakers tool.
type ListArgs struct{}

// ListResult is the output of the list_speakers tool.
type ListResult struct {
	Speakers []string `json:"speakers"`
}

// Server wraps a [Ranker] in an MCP stdio server.
type Server struct {
	ranker    Ranker
	topK      int
	minChunks int
	logger    *slog.Logger
	srv       *mcp.Server
}

// Option configures a [Server].
type Option func(*Server)

// WithDefaults sets the topK and minChunks used when the client omits them.
func WithDefaults(topK, minChunks int) Option {
	return func(s *Server) {
		s.topK = topK
		s.minChunks = minChunks
	}
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates the server and registers its tools. version is reported to
// clients during the MCP handshake.
func New(ranker Ranker, version string, opts ...Option) *Server {
	s := &Server{
		ranker:    ranker,
		topK:      defaultTopK,
		minChunks: defaultMinChunks,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	s.srv = mcp.NewServer(&mcp.Implementation{Name: "quorum", Version: version}, nil)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "rank_speakers",
		Description: "Rank podcast speakers by how relevant their recorded viewpoints are to a question. Returns each speaker with a relevance score and their most relevant quotes.",
	}, s.rankSpeakers)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "list_speakers",
		Description: "List every speaker present in the ingested corpus, alphabetically.",
	}, s.listSpeakers)

	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	if err := s.srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpserv: run: %w", err)
	}
	return nil
}

// Connect attaches the server to an arbitrary transport. Used by tests; Run
// is the stdio production path.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.srv.Connect(ctx, t, nil)
}

func (s *Server) rankSpeakers(ctx context.Context, _ *mcp.CallToolRequest, args RankArgs) (*mcp.CallToolResult, RankResult, error) {
	if args.Question == "" {
		return nil, RankResult{}, fmt.Errorf("question must not be empty")
	}
	topK := args.TopK
	if topK <= 0 {
		topK = s.topK
	}
	minChunks := args.MinChunks
	if minChunks <= 0 {
		minChunks = s.minChunks
	}

	ranked, err := s.ranker.RankSpeakers(ctx, args.Question, topK, minChunks)
	if err != nil {
		s.logger.Error("rank_speakers failed", "error", err)
		return nil, RankResult{}, err
	}

	result := RankResult{Speakers: make([]RankedSpeaker, 0, len(ranked))}
	for _, sc := range ranked {
		quotes := make([]Quote, 0, len(sc.Evidence))
		for _, ev := range sc.Evidence {
			quotes = append(quotes, Quote{
				Text:       ev.Text,
				SourceFile: ev.SourceFile,
				Timestamp:  ev.Timestamp,
				Similarity: ev.Similarity,
			})
		}
		result.Speakers = append(result.Speakers, RankedSpeaker{
			Speaker: sc.Speaker,
			Score:   sc.Score,
			Quotes:  quotes,
		})
	}
	s.logger.Debug("rank_speakers served", "question_chars", len(args.Question), "speakers", len(result.Speakers))
	return nil, result, nil
}

func (s *Server) listSpeakers(ctx context.Context, _ *mcp.CallToolRequest, _ ListArgs) (*mcp.CallToolResult, ListResult, error) {
	names, err := s.ranker.Speakers(ctx)
	if err != nil {
		s.logger.Error("list_speakers failed", "error", err)
		return nil, ListResult{}, err
	}
	if names == nil {
		names = []string{}
	}
	return nil, ListResult{Speakers: names}, nil
}
