// Package anyllm implements [chat.Provider] on github.com/mozilla-ai/any-llm-go,
// a unified client for OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral,
// Groq and llama.cpp-style servers.
//
// The provider name selects the backend:
//
//	p, err := anyllm.New("ollama", "qwen3:4b")
//	p, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
//
// Without an explicit API key option, each backend falls back to its usual
// environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/quorumhq/quorum/pkg/provider/chat"
)

var _ chat.Provider = (*Provider)(nil)

// Provider adapts an any-llm-go backend to [chat.Provider]. Safe for
// concurrent use.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New constructs a Provider for the named backend. providerName is one of
// "openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
// "llamacpp"; model is the backend-specific model identifier.
func New(providerName, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm chat: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm chat: model must not be empty")
	}
	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm chat: create %q backend: %w", providerName, err)
	}
	return &Provider{backend: backend, model: model}, nil
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp", providerName)
	}
}

// Complete implements [chat.Provider].
func (p *Provider) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm chat: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm chat: empty choices in response")
	}

	out := &chat.Response{Content: resp.Choices[0].Message.ContentString()}
	if resp.Usage != nil {
		out.Usage = chat.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Stream implements [chat.Provider].
func (p *Provider) Stream(ctx context.Context, req chat.Request) (<-chan chat.Delta, error) {
	backendChunks, backendErrs := p.backend.CompletionStream(ctx, p.buildParams(req))

	ch := make(chan chat.Delta, 32)
	go func() {
		defer close(ch)

		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				continue
			}
			select {
			case ch <- chat.Delta{Text: text}:
			case <-ctx.Done():
				return
			}
		}

		// Backend errors surface only after the chunk channel drains.
		if err := <-backendErrs; err != nil {
			select {
			case ch <- chat.Delta{Err: fmt.Errorf("anyllm chat: stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

func (p *Provider) buildParams(req chat.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message
	if req.System != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}
