package resilience

import (
	"context"

	"github.com/quorumhq/quorum/pkg/provider/chat"
)

// ChatFallback implements [chat.Provider] with automatic failover across
// completion backends.
type ChatFallback struct {
	group *FallbackGroup[chat.Provider]
}

var _ chat.Provider = (*ChatFallback)(nil)

// NewChatFallback creates a [ChatFallback] with primary as the preferred
// backend.
func NewChatFallback(primary chat.Provider, primaryName string, cfg FallbackConfig) *ChatFallback {
	return &ChatFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional chat backend.
func (f *ChatFallback) AddFallback(name string, provider chat.Provider) {
	f.group.AddFallback(name, provider)
}

// Complete runs the request against the first healthy backend.
func (f *ChatFallback) Complete(ctx context.Context, req chat.Request) (*chat.Response, error) {
	return ExecuteWithResult(f.group, func(p chat.Provider) (*chat.Response, error) {
		return p.Complete(ctx, req)
	})
}

// Stream runs the request against the first healthy backend. Only the
// initial connection is covered by failover; once a stream is established,
// mid-stream errors surface through the delta channel.
func (f *ChatFallback) Stream(ctx context.Context, req chat.Request) (<-chan chat.Delta, error) {
	return ExecuteWithResult(f.group, func(p chat.Provider) (<-chan chat.Delta, error) {
		return p.Stream(ctx, req)
	})
}
