// Package ollama implements [embeddings.Provider] against a local Ollama
// server's native /api/embed endpoint.
//
// This is the default backend for local-first setups: models like
// nomic-embed-text or all-minilm run entirely on the operator's machine and
// the whole corpus can be ingested without an API key. Only net/http and
// encoding/json are involved; Ollama's own SDK is not needed for one
// endpoint.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quorumhq/quorum/pkg/provider/embeddings"
)

// DefaultBaseURL targets a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// Provider embeds text via an Ollama server. Safe for concurrent use.
//
// The vector dimension is resolved in order: an explicit [WithDimensions]
// value, a built-in table of recognised model names, and finally a single
// probe request on the first Dimensions call whose result is cached.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client

	dimensions int
	probeOnce  sync.Once
}

type config struct {
	timeout    time.Duration
	dimensions int
}

// Option configures the provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout. Zero (the default) means no
// timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithDimensions pre-sets the vector dimension, skipping both the model
// table and the probe request.
func WithDimensions(dims int) Option {
	return func(c *config) { c.dimensions = dims }
}

// New constructs the provider. baseURL falls back to [DefaultBaseURL] when
// empty; model is required.
func New(baseURL, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	client := &http.Client{}
	if cfg.timeout > 0 {
		client.Timeout = cfg.timeout
	}

	p := &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		client:     client,
		dimensions: cfg.dimensions,
	}
	if p.dimensions == 0 {
		p.dimensions = knownDimensions(model)
	}
	return p, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.callEmbed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	return vecs[0], nil
}

// EmbedBatch implements [embeddings.Provider]. All texts go out in a single
// /api/embed request, ordered as given.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.callEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: embed batch: got %d embeddings for %d texts", len(vecs), len(texts))
	}
	return vecs, nil
}

// Dimensions implements [embeddings.Provider]. For a model outside the
// built-in table it issues one probe embed against the live server and
// caches the vector length; a failed probe reports 0.
func (p *Provider) Dimensions() int {
	if p.dimensions != 0 {
		return p.dimensions
	}
	p.probeOnce.Do(func() {
		vecs, err := p.callEmbed(context.Background(), []string{"probe"})
		if err == nil && len(vecs) > 0 {
			p.dimensions = len(vecs[0])
		}
	})
	return p.dimensions
}

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string { return p.model }

func (p *Provider) callEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}
	return result.Embeddings, nil
}

// knownDimensions maps recognised Ollama embedding models to their output
// dimension. Unknown models return 0, which triggers the probe.
func knownDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	default:
		return 0
	}
}
