// Package provider defines the adapter contract every upstream AI vendor
// implements, plus a factory registry so adapters can self-register.
package provider

import (
	"context"

	"github.com/flowstate-app/gateway/internal/ratelimit"
	"github.com/flowstate-app/gateway/pkg/api"
)

// Config is the unified configuration shape handed to adapter factories.
type Config struct {
	// Type selects the adapter implementation ("openai", "anthropic", "google").
	Type string
	// ID is the routing identity ("openai", "deepseek", "huggingface", ...).
	// Several OpenAI-compatible vendors share one adapter type but keep
	// distinct IDs.
	ID      string
	Name    string
	BaseURL string
	APIKey  string
}

// ChatResult is the outcome of a non-streaming completion.
type ChatResult struct {
	Content    string
	Usage      *api.Usage
	RateLimits ratelimit.Headers
}

// Provider is a chat backend for one upstream vendor.
type Provider interface {
	// ID returns the routing identity this instance was configured with.
	ID() string
	Name() string
	// IsConfigured reports whether the instance holds a usable API key.
	IsConfigured() bool

	Chat(ctx context.Context, modelID string, messages []api.ChatMessage) (*ChatResult, error)

	// StreamChat sends the conversation upstream and invokes onChunk for each
	// content delta, then exactly once with a done chunk. Rate-limit headers
	// from the upstream response are returned even when the stream errors.
	StreamChat(ctx context.Context, modelID string, messages []api.ChatMessage, onChunk api.ChunkHandler) (ratelimit.Headers, error)
}
