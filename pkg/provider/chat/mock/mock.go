// Package mock provides a recording [chat.Provider] for tests, playing back
// canned responses in order.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/quorumhq/quorum/pkg/provider/chat"
)

var _ chat.Provider = (*Provider)(nil)

// Provider is a test double for [chat.Provider]. Responses queued with
// [Provider.QueueResponse] are returned one per call, in order; once the
// queue is exhausted a fixed fallback reply is returned. Safe for
// concurrent use.
type Provider struct {
	mu        sync.Mutex
	responses []string
	requests  []chat.Request

	// Err, when set, fails every Complete call and every stream.
	Err error

	// Fallback is returned once the queue is empty. Defaults to
	// "mock response".
	Fallback string
}

// New returns an empty mock provider.
func New() *Provider {
	return &Provider{Fallback: "mock response"}
}

// QueueResponse appends a canned reply to the playback queue.
func (p *Provider) QueueResponse(content string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = append(p.responses, content)
}

// Requests returns a copy of every request seen so far, in call order.
func (p *Provider) Requests() []chat.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]chat.Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Complete implements [chat.Provider].
func (p *Provider) Complete(_ context.Context, req chat.Request) (*chat.Response, error) {
	content, err := p.next(req)
	if err != nil {
		return nil, err
	}
	return &chat.Response{Content: content}, nil
}

// Stream implements [chat.Provider]. The canned reply is delivered in
// word-sized deltas to exercise incremental consumers.
func (p *Provider) Stream(ctx context.Context, req chat.Request) (<-chan chat.Delta, error) {
	content, err := p.next(req)

	ch := make(chan chat.Delta, 8)
	go func() {
		defer close(ch)
		if err != nil {
			ch <- chat.Delta{Err: err}
			return
		}
		for i := 0; i < len(content); {
			end := i
			for end < len(content) && content[end] != ' ' {
				end++
			}
			if end < len(content) {
				end++ // keep the space with its word
			}
			select {
			case ch <- chat.Delta{Text: content[i:end]}:
			case <-ctx.Done():
				return
			}
			i = end
		}
	}()
	return ch, nil
}

func (p *Provider) next(req chat.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.Err != nil {
		return "", fmt.Errorf("mock chat: %w", p.Err)
	}
	if len(p.responses) > 0 {
		content := p.responses[0]
		p.responses = p.responses[1:]
		return content, nil
	}
	return p.Fallback, nil
}
