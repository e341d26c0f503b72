// Package ingest builds the retrieval corpus from a directory of transcript
// files.
//
// Files are parsed in parallel but committed strictly in sorted file order,
// with one global parent counter, so re-ingesting the same directory always
// produces the same parent IDs. The pipeline per file: parse into guest
// turns, canonicalise speaker names, cut parent chunks, frame each with its
// preceding host question, cut child chunks from the framed text, embed the
// children in batches and upsert parents before children.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/quorumhq/quorum/internal/observe"
	"github.com/quorumhq/quorum/internal/speakers"
	"github.com/quorumhq/quorum/internal/transcript"
	"github.com/quorumhq/quorum/pkg/corpus"
	"github.com/quorumhq/quorum/pkg/provider/embeddings"
)

const (
	// maxQuestionChars bounds the preceding_question metadata field. The
	// full question still appears in the framed parent text.
	maxQuestionChars = 500

	defaultParentMaxChars = 2048
	defaultParentOverlap  = 200
	defaultChildMaxChars  = 512
	defaultChildOverlap   = 50

	defaultEmbedBatchSize = 64
	defaultConcurrency    = 4
)

// Stats summarises one ingest run.
type Stats struct {
	Files       int
	FilesFailed int
	Turns       int
	Parents     int
	Children    int
}

// Ingestor builds the corpus. Construct with [New]; safe for a single Run
// at a time.
type Ingestor struct {
	parser      *transcript.Parser
	resolver    *speakers.Resolver
	embedder    embeddings.Provider
	store       corpus.Store
	parentSplit transcript.Splitter
	childSplit  transcript.Splitter
	batchSize   int
	concurrency int
	logger      *slog.Logger
	metrics     *observe.Metrics
}

// Option configures an [Ingestor].
type Option func(*Ingestor)

// WithChunking overrides the parent and child chunk budgets.
func WithChunking(parentMax, parentOverlap, childMax, childOverlap int) Option {
	return func(ing *Ingestor) {
		ing.parentSplit = transcript.Splitter{MaxChars: parentMax, Overlap: parentOverlap}
		ing.childSplit = transcript.Splitter{MaxChars: childMax, Overlap: childOverlap}
	}
}

// WithEmbedBatchSize sets how many child chunks go into one EmbedBatch
// call. Default: 64.
func WithEmbedBatchSize(n int) Option {
	return func(ing *Ingestor) { ing.batchSize = n }
}

// WithConcurrency bounds how many files parse in parallel. Default: 4.
func WithConcurrency(n int) Option {
	return func(ing *Ingestor) { ing.concurrency = n }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// WithMetrics overrides the metrics instance, for tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(ing *Ingestor) { ing.metrics = m }
}

// New creates an Ingestor over the given parser, embedding provider and
// corpus store.
func New(parser *transcript.Parser, embedder embeddings.Provider, store corpus.Store, opts ...Option) *Ingestor {
	ing := &Ingestor{
		parser:      parser,
		resolver:    speakers.NewResolver(),
		embedder:    embedder,
		store:       store,
		parentSplit: transcript.Splitter{MaxChars: defaultParentMaxChars, Overlap: defaultParentOverlap},
		childSplit:  transcript.Splitter{MaxChars: defaultChildMaxChars, Overlap: defaultChildOverlap},
		batchSize:   defaultEmbedBatchSize,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		metrics:     nil,
	}
	for _, o := range opts {
		o(ing)
	}
	if ing.metrics == nil {
		ing.metrics = observe.DefaultMetrics()
	}
	return ing
}

// Run ingests every *.txt file under dir. With reset, both corpus
// collections are emptied first.
//
// A file that fails to parse (unreadable, not UTF-8) is logged and skipped;
// the run continues and the failure is counted in [Stats.FilesFailed]. Any
// storage or embedding error aborts the run.
func (ing *Ingestor) Run(ctx context.Context, dir string, reset bool) (Stats, error) {
	var stats Stats

	ctx, span := observe.StartSpan(ctx, "ingest.run", trace.WithAttributes(
		attribute.String("dir", dir),
		attribute.Bool("reset", reset),
	))
	defer span.End()

	if reset {
		if err := ing.store.Reset(ctx); err != nil {
			return stats, fmt.Errorf("ingest: reset corpus: %w", err)
		}
		ing.logger.Info("corpus reset")
	}

	files, err := listTranscripts(dir)
	if err != nil {
		return stats, err
	}
	if len(files) == 0 {
		return stats, fmt.Errorf("ingest: no transcript files in %s", dir)
	}
	ing.logger.Info("ingest starting", "dir", dir, "files", len(files))

	// Parse in parallel; results land in file order so the commit pass and
	// the parent counter stay deterministic. Success is tracked separately
	// from the turn slices: a clean file with zero guest turns parses to an
	// empty result, which is not a failure.
	parsed := make([][]transcript.Turn, len(files))
	parsedOK := make([]bool, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.concurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fctx, fileSpan := observe.StartSpan(gctx, "ingest.parse_file",
				trace.WithAttributes(attribute.String("file", filepath.Base(path))))
			defer fileSpan.End()

			start := time.Now()
			turns, err := ing.parser.ParseFile(path)
			ing.metrics.ParseDuration.Record(fctx, time.Since(start).Seconds())
			if err != nil {
				// Local failure: skip the file, keep the run alive.
				ing.logger.Warn("skipping file", "file", filepath.Base(path), "error", err)
				ing.metrics.FilesParsed.Add(fctx, 1, metric.WithAttributes(attribute.String("status", "error")))
				return nil
			}
			fileSpan.SetAttributes(attribute.Int("turns", len(turns)))
			ing.metrics.FilesParsed.Add(fctx, 1, metric.WithAttributes(attribute.String("status", "ok")))
			parsed[i] = turns
			parsedOK[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("ingest: parse files: %w", err)
	}

	// Commit pass: sequential, in file order.
	var (
		parents  []corpus.ParentChunk
		children []corpus.ChildChunk
		counter  int
	)
	for i, path := range files {
		if !parsedOK[i] {
			stats.FilesFailed++
			continue
		}
		turns := parsed[i]
		stats.Files++
		stats.Turns += len(turns)

		for _, turn := range turns {
			turn.Speaker = ing.resolver.Resolve(turn.Speaker)

			for _, chunk := range ing.parentSplit.SplitTurn(turn) {
				parent := buildParent(chunk, counter)
				counter++
				parents = append(parents, parent)

				for ci, childText := range ing.childSplit.SplitText(parent.Text) {
					children = append(children, corpus.ChildChunk{
						ID:       fmt.Sprintf("%s_c%03d", parent.ID, ci),
						ParentID: parent.ID,
						Speaker:  parent.Speaker,
						Text:     childText,
					})
				}
			}
		}
		ing.logger.Debug("parsed file", "file", filepath.Base(path), "turns", len(turns))
	}

	if len(parents) == 0 {
		return stats, fmt.Errorf("ingest: no turns recovered from %d files", len(files))
	}

	if err := ing.store.UpsertParents(ctx, parents); err != nil {
		return stats, fmt.Errorf("ingest: upsert parents: %w", err)
	}
	ing.metrics.ChunksIndexed.Add(ctx, int64(len(parents)), metric.WithAttributes(attribute.String("level", "parent")))

	if err := ing.embedAndUpsert(ctx, children); err != nil {
		return stats, err
	}
	ing.metrics.ChunksIndexed.Add(ctx, int64(len(children)), metric.WithAttributes(attribute.String("level", "child")))

	stats.Parents = len(parents)
	stats.Children = len(children)
	ing.logger.Info("ingest complete",
		"files", stats.Files,
		"failed", stats.FilesFailed,
		"turns", stats.Turns,
		"parents", stats.Parents,
		"children", stats.Children,
	)
	return stats, nil
}

// Speakers returns the canonical speaker names seen so far, in first-seen
// order.
func (ing *Ingestor) Speakers() []string {
	return ing.resolver.Names()
}

// embedAndUpsert embeds children in batches and writes each batch as soon
// as its vectors arrive.
func (ing *Ingestor) embedAndUpsert(ctx context.Context, children []corpus.ChildChunk) error {
	for start := 0; start < len(children); start += ing.batchSize {
		end := start + ing.batchSize
		if end > len(children) {
			end = len(children)
		}
		batch := children[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		embedStart := time.Now()
		vecs, err := ing.embedder.EmbedBatch(ctx, texts)
		ing.metrics.EmbedDuration.Record(ctx, time.Since(embedStart).Seconds())
		if err != nil {
			ing.metrics.RecordProviderError(ctx, ing.embedder.ModelID(), "embeddings")
			return fmt.Errorf("ingest: embed batch at %d: %w", start, err)
		}
		ing.metrics.RecordProviderRequest(ctx, ing.embedder.ModelID(), "embeddings", "ok")
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}

		if err := ing.store.UpsertChildren(ctx, batch); err != nil {
			return fmt.Errorf("ingest: upsert children at %d: %w", start, err)
		}
	}
	return nil
}

// buildParent frames one parent chunk and assigns its corpus-wide ID.
func buildParent(chunk transcript.Chunk, counter int) corpus.ParentChunk {
	text := chunk.Text
	if chunk.PrecedingQuestion != "" {
		text = fmt.Sprintf("Question: %s\n\nAnswer: %s", chunk.PrecedingQuestion, chunk.Text)
	}

	question := chunk.PrecedingQuestion
	if len(question) > maxQuestionChars {
		question = question[:maxQuestionChars]
	}

	id := fmt.Sprintf("doc_%06d_%s_%s", counter, chunk.Speaker, chunk.Timestamp)
	id = strings.ReplaceAll(id, " ", "_")
	id = strings.ReplaceAll(id, ":", "-")

	return corpus.ParentChunk{
		ID:                id,
		Text:              text,
		Speaker:           chunk.Speaker,
		SourceFile:        chunk.SourceFile,
		Timestamp:         chunk.Timestamp,
		PrecedingQuestion: question,
	}
}

// listTranscripts returns the sorted *.txt files directly under dir.
func listTranscripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ingest: read dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
