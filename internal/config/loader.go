package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind. Used by
// [Validate] to warn about likely typos without rejecting third-party
// implementations.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai", "ollama"},
	"chat":       {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp"},
}

// Load reads the YAML configuration file at path, fills defaults, and
// returns a validated [Config].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills defaults, and
// validates the result. Unknown YAML fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent and returns a joined error listing
// every failure found. Suspicious-but-workable values are logged as
// warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	validateProviderName("chat", cfg.Providers.Chat.Name)
	for i, entry := range cfg.Providers.EmbeddingsFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.embeddings_fallbacks[%d].name must be set", i))
			continue
		}
		validateProviderName("embeddings", entry.Name)
	}
	for i, entry := range cfg.Providers.ChatFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.chat_fallbacks[%d].name must be set", i))
			continue
		}
		validateProviderName("chat", entry.Name)
	}

	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; using the in-memory store, the corpus will not survive the process")
	}
	if cfg.Storage.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("storage.embedding_dimensions must be positive, got %d", cfg.Storage.EmbeddingDimensions))
	}

	if cfg.Parser.MinTurnChars < 0 {
		errs = append(errs, fmt.Errorf("parser.min_turn_chars must not be negative, got %d", cfg.Parser.MinTurnChars))
	}

	if cfg.Chunking.ParentMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("chunking.parent_max_chars must be positive, got %d", cfg.Chunking.ParentMaxChars))
	}
	if cfg.Chunking.ChildMaxChars <= 0 {
		errs = append(errs, fmt.Errorf("chunking.child_max_chars must be positive, got %d", cfg.Chunking.ChildMaxChars))
	}
	if cfg.Chunking.ParentOverlap < 0 || (cfg.Chunking.ParentMaxChars > 0 && cfg.Chunking.ParentOverlap >= cfg.Chunking.ParentMaxChars) {
		errs = append(errs, fmt.Errorf("chunking.parent_overlap %d must be in [0, parent_max_chars)", cfg.Chunking.ParentOverlap))
	}
	if cfg.Chunking.ChildOverlap < 0 || (cfg.Chunking.ChildMaxChars > 0 && cfg.Chunking.ChildOverlap >= cfg.Chunking.ChildMaxChars) {
		errs = append(errs, fmt.Errorf("chunking.child_overlap %d must be in [0, child_max_chars)", cfg.Chunking.ChildOverlap))
	}
	if cfg.Chunking.ChildMaxChars > cfg.Chunking.ParentMaxChars {
		slog.Warn("chunking.child_max_chars exceeds parent_max_chars; children will never split their parents",
			"child", cfg.Chunking.ChildMaxChars,
			"parent", cfg.Chunking.ParentMaxChars,
		)
	}

	if cfg.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.top_k must be positive, got %d", cfg.Retrieval.TopK))
	}
	if cfg.Retrieval.MinChunks <= 0 {
		errs = append(errs, fmt.Errorf("retrieval.min_chunks must be positive, got %d", cfg.Retrieval.MinChunks))
	}
	if cfg.Retrieval.SearchN < cfg.Retrieval.TopK {
		errs = append(errs, fmt.Errorf("retrieval.search_n %d must be at least top_k %d", cfg.Retrieval.SearchN, cfg.Retrieval.TopK))
	}

	if cfg.Panel.Rounds <= 0 {
		errs = append(errs, fmt.Errorf("panel.rounds must be positive, got %d", cfg.Panel.Rounds))
	}
	if cfg.Panel.Brevity < 1 || cfg.Panel.Brevity > 5 {
		errs = append(errs, fmt.Errorf("panel.brevity %d is out of range [1, 5]", cfg.Panel.Brevity))
	}
	if cfg.Panel.MaxQuoteChunks <= 0 {
		errs = append(errs, fmt.Errorf("panel.max_quote_chunks must be positive, got %d", cfg.Panel.MaxQuoteChunks))
	}
	if cfg.Panel.Temperature < 0 || cfg.Panel.Temperature > 2 {
		errs = append(errs, fmt.Errorf("panel.temperature %.2f is out of range [0, 2]", cfg.Panel.Temperature))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning when name is non-empty and not found
// in [ValidProviderNames] for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
