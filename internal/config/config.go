// Package config provides the configuration schema, loader, and provider
// registry for the quorum retrieval pipeline.
package config

import "log/slog"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Slog maps l to the corresponding [slog.Level]. Unrecognised levels map
// to info.
func (l LogLevel) Slog() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration, typically loaded from a YAML file with
// [Load]. Zero fields are filled from [Default] before validation.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Parser    ParserConfig    `yaml:"parser"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Panel     PanelConfig     `yaml:"panel"`
}

// ServerConfig holds the admin listener and logging settings.
type ServerConfig struct {
	// AdminAddr is the TCP address of the health/metrics listener
	// (e.g. ":9090"). Empty disables the listener.
	AdminAddr string `yaml:"admin_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig selects the embedding and chat backends.
type ProvidersConfig struct {
	Embeddings ProviderEntry `yaml:"embeddings"`
	Chat       ProviderEntry `yaml:"chat"`

	// EmbeddingsFallbacks and ChatFallbacks are optional backup backends,
	// tried in order when the primary fails or its circuit breaker is open.
	// Embedding fallbacks must produce vectors of the configured
	// dimensionality or search results will be meaningless.
	EmbeddingsFallbacks []ProviderEntry `yaml:"embeddings_fallbacks"`
	ChatFallbacks       []ProviderEntry `yaml:"chat_fallbacks"`
}

// ProviderEntry is the configuration block shared by both provider kinds.
// Name is looked up in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g. "ollama", "openai").
	Name string `yaml:"name"`

	// APIKey authenticates against the provider, when it needs one.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider (e.g. "nomic-embed-text",
	// "qwen3:4b").
	Model string `yaml:"model"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// StorageConfig holds the corpus store settings.
type StorageConfig struct {
	// PostgresDSN is the pgvector connection string. Empty selects the
	// in-memory store, which does not survive the process.
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions is the vector column width. Must match the
	// configured embedding model.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// ParserConfig tunes transcript segmentation.
type ParserConfig struct {
	// Hosts lists the interviewer names whose turns become questions
	// rather than indexed viewpoints.
	Hosts []string `yaml:"hosts"`

	// MinTurnChars drops guest turns shorter than this many characters.
	MinTurnChars int `yaml:"min_turn_chars"`
}

// ChunkingConfig sets the parent and child chunk budgets, in characters.
type ChunkingConfig struct {
	ParentMaxChars int `yaml:"parent_max_chars"`
	ParentOverlap  int `yaml:"parent_overlap"`
	ChildMaxChars  int `yaml:"child_max_chars"`
	ChildOverlap   int `yaml:"child_overlap"`
}

// RetrievalConfig tunes speaker ranking.
type RetrievalConfig struct {
	// TopK is how many speakers a ranking returns.
	TopK int `yaml:"top_k"`

	// MinChunks is the evidence floor: speakers with fewer matched parent
	// chunks are gated out (and backfilled only when the list runs short).
	MinChunks int `yaml:"min_chunks"`

	// SearchN is how many child hits each ranking requests from the index.
	SearchN int `yaml:"search_n"`
}

// PanelConfig tunes roundtable generation.
type PanelConfig struct {
	// Rounds is how many discussion rounds a panel plays.
	Rounds int `yaml:"rounds"`

	// Brevity is the 1-5 response length level.
	Brevity int `yaml:"brevity"`

	// MaxQuoteChunks caps how many evidence chunks each prompt quotes.
	MaxQuoteChunks int `yaml:"max_quote_chunks"`

	// Temperature is the chat sampling temperature.
	Temperature float64 `yaml:"temperature"`
}

// Default returns the configuration used when a field is left unset.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LogLevel: LogInfo,
		},
		Providers: ProvidersConfig{
			Embeddings: ProviderEntry{Name: "ollama", Model: "nomic-embed-text"},
			Chat:       ProviderEntry{Name: "ollama", Model: "qwen3:4b"},
		},
		Storage: StorageConfig{
			EmbeddingDimensions: 768,
		},
		Parser: ParserConfig{
			Hosts:        []string{"Lenny", "Lenny Rachitsky"},
			MinTurnChars: 100,
		},
		Chunking: ChunkingConfig{
			ParentMaxChars: 2048,
			ParentOverlap:  200,
			ChildMaxChars:  512,
			ChildOverlap:   50,
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			MinChunks: 2,
			SearchN:   100,
		},
		Panel: PanelConfig{
			Rounds:         3,
			Brevity:        2,
			MaxQuoteChunks: 3,
			Temperature:    0.7,
		},
	}
}

// applyDefaults fills zero fields from [Default].
func (c *Config) applyDefaults() {
	d := Default()
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = d.Server.LogLevel
	}
	if c.Providers.Embeddings.Name == "" {
		c.Providers.Embeddings = d.Providers.Embeddings
	}
	if c.Providers.Chat.Name == "" {
		c.Providers.Chat = d.Providers.Chat
	}
	if c.Storage.EmbeddingDimensions == 0 {
		c.Storage.EmbeddingDimensions = d.Storage.EmbeddingDimensions
	}
	if len(c.Parser.Hosts) == 0 {
		c.Parser.Hosts = d.Parser.Hosts
	}
	if c.Parser.MinTurnChars == 0 {
		c.Parser.MinTurnChars = d.Parser.MinTurnChars
	}
	if c.Chunking.ParentMaxChars == 0 {
		c.Chunking.ParentMaxChars = d.Chunking.ParentMaxChars
	}
	if c.Chunking.ParentOverlap == 0 {
		c.Chunking.ParentOverlap = d.Chunking.ParentOverlap
	}
	if c.Chunking.ChildMaxChars == 0 {
		c.Chunking.ChildMaxChars = d.Chunking.ChildMaxChars
	}
	if c.Chunking.ChildOverlap == 0 {
		c.Chunking.ChildOverlap = d.Chunking.ChildOverlap
	}
	if c.Retrieval.TopK == 0 {
		c.Retrieval.TopK = d.Retrieval.TopK
	}
	if c.Retrieval.MinChunks == 0 {
		c.Retrieval.MinChunks = d.Retrieval.MinChunks
	}
	if c.Retrieval.SearchN == 0 {
		c.Retrieval.SearchN = d.Retrieval.SearchN
	}
	if c.Panel.Rounds == 0 {
		c.Panel.Rounds = d.Panel.Rounds
	}
	if c.Panel.Brevity == 0 {
		c.Panel.Brevity = d.Panel.Brevity
	}
	if c.Panel.MaxQuoteChunks == 0 {
		c.Panel.MaxQuoteChunks = d.Panel.MaxQuoteChunks
	}
	if c.Panel.Temperature == 0 {
		c.Panel.Temperature = d.Panel.Temperature
	}
}
