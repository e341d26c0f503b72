// Command quorum ingests interview transcripts and answers questions with a
// panel of the speakers who actually talked about the topic.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/health"
	"github.com/quorumhq/quorum/internal/ingest"
	"github.com/quorumhq/quorum/internal/mcpserv"
	"github.com/quorumhq/quorum/internal/observe"
	"github.com/quorumhq/quorum/internal/panel"
	"github.com/quorumhq/quorum/internal/resilience"
	"github.com/quorumhq/quorum/internal/retrieval"
	"github.com/quorumhq/quorum/internal/transcript"
	"github.com/quorumhq/quorum/pkg/corpus"
	corpusmem "github.com/quorumhq/quorum/pkg/corpus/memory"
	corpuspg "github.com/quorumhq/quorum/pkg/corpus/postgres"
	"github.com/quorumhq/quorum/pkg/provider/chat"
	chatanyllm "github.com/quorumhq/quorum/pkg/provider/chat/anyllm"
	"github.com/quorumhq/quorum/pkg/provider/embeddings"
	ollamaembed "github.com/quorumhq/quorum/pkg/provider/embeddings/ollama"
	oaembed "github.com/quorumhq/quorum/pkg/provider/embeddings/openai"
)

const version = "0.1.0"

const usage = `usage: quorum <command> [flags]

commands:
  ingest    parse transcripts and build the retrieval corpus
  verify    report parser capture ratios for transcript files
  speakers  list every speaker in the corpus
  ask       rank speakers by relevance to a question
  panel     run a multi-round panel discussion on a question
  mcp       serve rank_speakers/list_speakers over MCP stdio

run "quorum <command> -h" for command flags.
`

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := os.Args[1]; cmd {
	case "ingest":
		err = runIngest(ctx, os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "speakers":
		err = runSpeakers(ctx, os.Args[2:])
	case "ask":
		err = runAsk(ctx, os.Args[2:])
	case "panel":
		err = runPanel(ctx, os.Args[2:])
	case "mcp":
		err = runMCP(ctx, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "quorum: unknown command %q\n\n%s", cmd, usage)
		return 2
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "quorum: %v\n", err)
		return 1
	}
	return 0
}

// env holds everything a subcommand needs after setup.
type env struct {
	cfg      *config.Config
	store    corpus.Store
	embedder embeddings.Provider
	shutdown func(context.Context) error
}

func (e *env) close(ctx context.Context) {
	if err := e.store.Close(); err != nil {
		slog.Warn("store close error", "err", err)
	}
	if e.shutdown != nil {
		if err := e.shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}
}

// setup loads configuration, installs the logger and telemetry, and opens
// the corpus store and embedding provider shared by every subcommand.
func setup(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %q not found — copy configs/example.yaml to get started", configPath)
		}
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Server.LogLevel.Slog()}))
	slog.SetDefault(logger)

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "quorum",
		ServiceVersion: version,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	embedder, err := newEmbeddingsProvider(cfg, reg)
	if err != nil {
		return nil, err
	}
	slog.Info("provider created", "kind", "embeddings", "name", cfg.Providers.Embeddings.Name, "model", embedder.ModelID())

	var store corpus.Store
	if cfg.Storage.PostgresDSN != "" {
		pg, err := corpuspg.NewStore(ctx, cfg.Storage.PostgresDSN, cfg.Storage.EmbeddingDimensions)
		if err != nil {
			return nil, fmt.Errorf("open corpus store: %w", err)
		}
		store = pg
		slog.Info("corpus store ready", "backend", "postgres", "dimensions", cfg.Storage.EmbeddingDimensions)
	} else {
		store = corpusmem.NewStore()
		slog.Info("corpus store ready", "backend", "memory")
	}

	return &env{cfg: cfg, store: store, embedder: embedder, shutdown: shutdown}, nil
}

// newEmbeddingsProvider builds the primary embedding backend and, when
// fallbacks are configured, wraps the set in a circuit-breaking failover
// group.
func newEmbeddingsProvider(cfg *config.Config, reg *config.Registry) (embeddings.Provider, error) {
	primary, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("create embeddings provider %q: %w", cfg.Providers.Embeddings.Name, err)
	}
	if len(cfg.Providers.EmbeddingsFallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewEmbeddingsFallback(primary, cfg.Providers.Embeddings.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.EmbeddingsFallbacks {
		fb, err := reg.CreateEmbeddings(entry)
		if err != nil {
			return nil, fmt.Errorf("create embeddings fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, fb)
	}
	slog.Info("embeddings failover enabled", "fallbacks", len(cfg.Providers.EmbeddingsFallbacks))
	return group, nil
}

// newChatProvider builds the chat backend the same way.
func newChatProvider(cfg *config.Config) (chat.Provider, error) {
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	primary, err := reg.CreateChat(cfg.Providers.Chat)
	if err != nil {
		return nil, fmt.Errorf("create chat provider %q: %w", cfg.Providers.Chat.Name, err)
	}
	if len(cfg.Providers.ChatFallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewChatFallback(primary, cfg.Providers.Chat.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.ChatFallbacks {
		fb, err := reg.CreateChat(entry)
		if err != nil {
			return nil, fmt.Errorf("create chat fallback %q: %w", entry.Name, err)
		}
		group.AddFallback(entry.Name, fb)
	}
	slog.Info("chat failover enabled", "fallbacks", len(cfg.Providers.ChatFallbacks))
	return group, nil
}

func newParser(cfg *config.Config) *transcript.Parser {
	return transcript.NewParser(
		transcript.WithHosts(cfg.Parser.Hosts...),
		transcript.WithMinTurnChars(cfg.Parser.MinTurnChars),
	)
}

func newRanker(e *env) *retrieval.Ranker {
	return retrieval.NewRanker(e.embedder, e.store, e.store,
		retrieval.WithSearchN(e.cfg.Retrieval.SearchN))
}

// registerBuiltinProviders wires the shipped provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return ollamaembed.New(entry.BaseURL, entry.Model)
	})

	// Hosted chat backends share the key+URL pattern.
	for _, name := range []string{"openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp"} {
		reg.RegisterChat(name, func(entry config.ProviderEntry) (chat.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return chatanyllm.New(name, entry.Model, opts...)
		})
	}
	// ollama is a local server; BaseURL is the address, no key.
	reg.RegisterChat("ollama", func(entry config.ProviderEntry) (chat.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return chatanyllm.New("ollama", entry.Model, opts...)
	})
}

// startAdmin serves /healthz, /readyz and /metrics when an admin address is
// configured. Returns a no-op stopper otherwise.
func startAdmin(e *env) func(context.Context) {
	if e.cfg.Server.AdminAddr == "" {
		return func(context.Context) {}
	}

	checkers := []health.Checker{health.EmbeddingsCheck(e.embedder)}
	if pinger, ok := e.store.(health.Pinger); ok {
		checkers = append([]health.Checker{health.CorpusCheck(pinger)}, checkers...)
	}

	mux := http.NewServeMux()
	health.New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{Addr: e.cfg.Server.AdminAddr, Handler: mux}
	go func() {
		slog.Info("admin listener started", "addr", e.cfg.Server.AdminAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin listener error", "err", err)
		}
	}()
	return func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("admin listener shutdown error", "err", err)
		}
	}
}

// ── Subcommands ───────────────────────────────────────────────────────────────

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	dir := fs.String("dir", "transcripts", "directory of *.txt transcript files")
	reset := fs.Bool("reset", false, "empty the corpus before ingesting")
	fs.Parse(args)

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	stopAdmin := startAdmin(e)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopAdmin(shutdownCtx)
	}()

	ing := ingest.New(newParser(e.cfg), e.embedder, e.store,
		ingest.WithChunking(
			e.cfg.Chunking.ParentMaxChars, e.cfg.Chunking.ParentOverlap,
			e.cfg.Chunking.ChildMaxChars, e.cfg.Chunking.ChildOverlap,
		),
	)
	stats, err := ing.Run(ctx, *dir, *reset)
	if err != nil {
		return err
	}

	fmt.Printf("ingested %d files (%d failed): %d turns, %d parent chunks, %d child chunks\n",
		stats.Files, stats.FilesFailed, stats.Turns, stats.Parents, stats.Children)
	fmt.Printf("speakers: %v\n", ing.Speakers())
	return nil
}

func runVerify(args []string) error {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	threshold := fs.Float64("threshold", 0.95, "minimum acceptable capture ratio")
	fs.Parse(args)
	files := fs.Args()
	if len(files) == 0 {
		return fmt.Errorf("verify: no transcript files given")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	parser := newParser(cfg)

	failed := 0
	for _, path := range files {
		report, err := parser.VerifyFile(path)
		if err != nil {
			return err
		}
		status := "ok"
		if report.CaptureRatio < *threshold {
			status = "LOW"
			failed++
		}
		fmt.Printf("%-40s capture=%.3f turns=%-4d speakers=%-2d %s\n",
			report.File, report.CaptureRatio, report.ParsedTurns, len(report.Speakers), status)
	}
	if failed > 0 {
		return fmt.Errorf("verify: %d of %d files below capture threshold %.2f", failed, len(files), *threshold)
	}
	return nil
}

func runSpeakers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("speakers", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	fs.Parse(args)

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	names, err := newRanker(e).Speakers(ctx)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("corpus is empty — run \"quorum ingest\" first")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runAsk(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	topK := fs.Int("top-k", 0, "speakers to return (default from config)")
	minChunks := fs.Int("min-chunks", 0, "evidence floor per speaker (default from config)")
	fs.Parse(args)
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("ask: usage: quorum ask [flags] <question>")
	}

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	if *topK <= 0 {
		*topK = e.cfg.Retrieval.TopK
	}
	if *minChunks <= 0 {
		*minChunks = e.cfg.Retrieval.MinChunks
	}

	ranked, err := newRanker(e).RankSpeakers(ctx, question, *topK, *minChunks)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		fmt.Println("no speakers matched — is the corpus ingested?")
		return nil
	}
	for i, sc := range ranked {
		fmt.Printf("%d. %s (score %.3f, %d chunks)\n", i+1, sc.Speaker, sc.Score, len(sc.Evidence))
		for _, ev := range sc.Evidence[:min(len(sc.Evidence), e.cfg.Panel.MaxQuoteChunks)] {
			fmt.Printf("   [%s at %s, sim %.3f]\n", ev.SourceFile, ev.Timestamp, ev.Similarity)
		}
	}
	return nil
}

func runPanel(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("panel", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	rounds := fs.Int("rounds", 0, "discussion rounds (default from config)")
	brevity := fs.Int("brevity", 0, "response length 1-5 (default from config)")
	fs.Parse(args)
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		return fmt.Errorf("panel: usage: quorum panel [flags] <question>")
	}

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	chatProvider, err := newChatProvider(e.cfg)
	if err != nil {
		return err
	}

	if *rounds <= 0 {
		*rounds = e.cfg.Panel.Rounds
	}
	if *brevity <= 0 {
		*brevity = e.cfg.Panel.Brevity
	}

	ranked, err := newRanker(e).RankSpeakers(ctx, question, e.cfg.Retrieval.TopK, e.cfg.Retrieval.MinChunks)
	if err != nil {
		return err
	}
	if len(ranked) == 0 {
		return fmt.Errorf("panel: no speakers matched the question — is the corpus ingested?")
	}

	fmt.Printf("Question: %s\n\nPanel: ", question)
	for i, sc := range ranked {
		if i > 0 {
			fmt.Print(", ")
		}
		fmt.Print(sc.Speaker)
	}
	fmt.Println()

	gen := panel.New(chatProvider,
		panel.WithRounds(*rounds),
		panel.WithBrevity(*brevity),
		panel.WithMaxQuoteChunks(e.cfg.Panel.MaxQuoteChunks),
		panel.WithTemperature(e.cfg.Panel.Temperature),
	)
	discussion, err := gen.RunDiscussion(ctx, ranked, question)
	if err != nil {
		return err
	}

	for i, round := range discussion {
		fmt.Printf("\n━━━ Round %d ━━━\n", i+1)
		for _, resp := range round {
			fmt.Printf("\n%s:\n%s\n", resp.Speaker, resp.Text)
		}
	}
	return nil
}

func runMCP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	fs.Parse(args)

	e, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	stopAdmin := startAdmin(e)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopAdmin(shutdownCtx)
	}()

	srv := mcpserv.New(newRanker(e), version,
		mcpserv.WithDefaults(e.cfg.Retrieval.TopK, e.cfg.Retrieval.MinChunks))
	return srv.Run(ctx)
}
