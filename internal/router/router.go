// Package router routes chat requests to providers, falling back across the
// model catalog when a provider is rate-limited or failing.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowstate-app/gateway/internal/httpclient"
	"github.com/flowstate-app/gateway/internal/logger"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/ratelimit"
	"github.com/flowstate-app/gateway/internal/registry"
	"github.com/flowstate-app/gateway/pkg/api"
)

// ErrNoProviders means no provider in the chain could take the request.
var ErrNoProviders = errors.New("No AI providers available. Add an API key for this model or try a free model.")

// fallbackOrder is the order models are tried when the preferred one is
// unavailable: paid models first, then free ones roughly by quality.
var fallbackOrder = []string{
	"claude", "chatgpt", "deepseek", "gemini",
	"mixtral", "llama3", "mistral", "qwen-coder", "phi3", "codellama", "starcoder2",
}

// Options tune a single routed request.
type Options struct {
	// Fallback allows trying other models when the preferred one fails.
	Fallback bool
	// SessionProviders are per-user instances built from session API keys.
	// They shadow server providers with the same ID.
	SessionProviders map[string]provider.Provider
}

// Router is the core of the gateway. Server-side providers (free tiers) are
// registered once at startup; paid providers built from user keys arrive
// per-request via Options.
type Router struct {
	registry *registry.Registry
	tracker  *ratelimit.Tracker

	mu        sync.RWMutex
	providers map[string]provider.Provider
}

func New(reg *registry.Registry, tracker *ratelimit.Tracker) *Router {
	return &Router{
		registry:  reg,
		tracker:   tracker,
		providers: make(map[string]provider.Provider),
	}
}

// RegisterProvider adds a server-side provider. Unconfigured providers are
// skipped so their models show up as unavailable rather than erroring.
func (r *Router) RegisterProvider(p provider.Provider) {
	if !p.IsConfigured() {
		logger.Info("provider skipped, no API key", zap.String("provider", p.Name()))
		return
	}
	r.mu.Lock()
	r.providers[p.ID()] = p
	r.mu.Unlock()
	logger.Info("provider registered", zap.String("provider", p.Name()))
}

// Tracker exposes the rate-limit tracker for status endpoints.
func (r *Router) Tracker() *ratelimit.Tracker {
	return r.tracker
}

// resolveProvider checks session providers first, then server providers.
func (r *Router) resolveProvider(providerID string, session map[string]provider.Provider) (provider.Provider, bool) {
	if p, ok := session[providerID]; ok {
		return p, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[providerID]
	return p, ok
}

// AvailableModels reports every registered model with its availability,
// taking both server and session providers into account.
func (r *Router) AvailableModels(session map[string]provider.Provider) []api.ModelInfo {
	mappings := r.registry.List()
	out := make([]api.ModelInfo, 0, len(mappings))
	for _, m := range mappings {
		_, configured := r.resolveProvider(m.ProviderID, session)
		out = append(out, api.ModelInfo{
			ID:        m.ModelID,
			Name:      m.DisplayName,
			Provider:  m.ProviderID,
			Available: configured && r.tracker.IsAvailable(m.ProviderID),
		})
	}
	return out
}

// LimitStatus reports per-provider rate-limit state for the status endpoint.
func (r *Router) LimitStatus() map[string]api.ProviderLimitStatus {
	out := make(map[string]api.ProviderLimitStatus)
	for id, st := range r.tracker.Snapshot() {
		out[id] = api.ProviderLimitStatus{
			Available: st.Available,
			WaitMs:    st.Wait.Milliseconds(),
			Remaining: st.Remaining,
		}
	}
	return out
}

// hop is one candidate in a fallback chain.
type hop struct {
	provider   provider.Provider
	modelID    string
	upstreamID string
}

// buildChain assembles the fallback chain: the preferred model first, then
// the static fallback order, keeping at most one model per provider.
func (r *Router) buildChain(preferred string, session map[string]provider.Provider) []hop {
	var chain []hop
	seen := make(map[string]bool)

	tryAdd := func(modelID string) {
		m, ok := r.registry.Get(modelID)
		if !ok || seen[m.ProviderID] {
			return
		}
		p, ok := r.resolveProvider(m.ProviderID, session)
		if !ok {
			return
		}
		seen[m.ProviderID] = true
		chain = append(chain, hop{provider: p, modelID: m.ModelID, upstreamID: m.UpstreamID})
	}

	tryAdd(preferred)
	for _, modelID := range fallbackOrder {
		if modelID != preferred {
			tryAdd(modelID)
		}
	}
	return chain
}

// markLimited records a 429, preferring the upstream's own retry hint.
func (r *Router) markLimited(providerID string, limits ratelimit.Headers) {
	var retryAfter time.Duration
	if limits.RetryAfter != nil {
		retryAfter = time.Duration(*limits.RetryAfter * float64(time.Second))
	}
	r.tracker.MarkLimited(providerID, retryAfter)
}

// StreamChat streams a response for the preferred model, walking the fallback
// chain on rate limits and transient failures. Outcomes are delivered as
// chunks; the returned error is non-nil only when the caller's context ended
// the stream.
func (r *Router) StreamChat(ctx context.Context, preferred string, messages []api.ChatMessage, onChunk api.ChunkHandler, opts Options) error {
	chain := r.buildChain(preferred, opts.SessionProviders)
	if len(chain) == 0 {
		onChunk(api.StreamChunk{Type: api.ChunkError, Error: ErrNoProviders.Error()})
		return nil
	}

	var lastErr error

	for _, h := range chain {
		if !r.tracker.IsAvailable(h.provider.ID()) {
			logger.Debug("provider rate-limited, skipping", zap.String("provider", h.provider.Name()))
			if !opts.Fallback {
				break
			}
			continue
		}

		// Tell the client a fallback happened before any content flows.
		if h.modelID != preferred {
			onChunk(api.StreamChunk{
				Type:     api.ChunkInfo,
				Content:  fmt.Sprintf("%s unavailable, falling back to %s", preferred, h.modelID),
				Model:    h.modelID,
				Provider: h.provider.ID(),
			})
		}

		logger.Debug("routing chat",
			zap.String("provider", h.provider.Name()),
			zap.String("model", h.upstreamID))

		limits, err := h.provider.StreamChat(ctx, h.upstreamID, messages, onChunk)
		if err == nil {
			r.tracker.Update(h.provider.ID(), limits)
			return nil
		}

		// A closed client connection is not a provider failure: stop quietly.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err

		if ue, ok := httpclient.AsUpstreamError(err); ok {
			if ue.IsRateLimited() {
				logger.Warn("provider returned 429, marking limited", zap.String("provider", h.provider.Name()))
				r.markLimited(h.provider.ID(), limits)
				if !opts.Fallback {
					break
				}
				continue
			}
			if ue.IsAuthError() {
				onChunk(api.StreamChunk{
					Type:  api.ChunkError,
					Error: fmt.Sprintf("%s: Authentication failed. Check your API key.", h.provider.Name()),
				})
				return nil
			}
		}

		logger.Error("provider error", zap.String("provider", h.provider.Name()), zap.Error(err))
		if !opts.Fallback {
			break
		}
	}

	if lastErr != nil {
		onChunk(api.StreamChunk{Type: api.ChunkError, Error: "All providers failed. Last error: " + lastErr.Error()})
	} else {
		onChunk(api.StreamChunk{Type: api.ChunkError, Error: "No available providers."})
	}
	return nil
}

// Chat is the non-streaming variant of StreamChat.
func (r *Router) Chat(ctx context.Context, preferred string, messages []api.ChatMessage, opts Options) (*api.ChatResponse, error) {
	chain := r.buildChain(preferred, opts.SessionProviders)
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error

	for _, h := range chain {
		if !r.tracker.IsAvailable(h.provider.ID()) {
			if !opts.Fallback {
				break
			}
			continue
		}

		result, err := h.provider.Chat(ctx, h.upstreamID, messages)
		if err == nil {
			r.tracker.Update(h.provider.ID(), result.RateLimits)
			return &api.ChatResponse{
				Model:    h.modelID,
				Provider: h.provider.ID(),
				Content:  result.Content,
				Usage:    result.Usage,
			}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err

		if ue, ok := httpclient.AsUpstreamError(err); ok {
			if ue.IsRateLimited() {
				r.markLimited(h.provider.ID(), ratelimit.Headers{})
				if !opts.Fallback {
					break
				}
				continue
			}
			if ue.IsAuthError() {
				return nil, fmt.Errorf("%s: Authentication failed. Check your API key.", h.provider.Name())
			}
		}

		if !opts.Fallback {
			break
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("No available providers.")
}
