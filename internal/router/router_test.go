package router_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstate-app/gateway/internal/httpclient"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/ratelimit"
	"github.com/flowstate-app/gateway/internal/registry"
	"github.com/flowstate-app/gateway/internal/router"
	"github.com/flowstate-app/gateway/pkg/api"
)

// mockProvider scripts one upstream outcome per instance.
type mockProvider struct {
	id         string
	configured bool
	content    string
	err        error
	limits     ratelimit.Headers

	calls     int
	lastModel string
}

func (m *mockProvider) ID() string         { return m.id }
func (m *mockProvider) Name() string       { return m.id }
func (m *mockProvider) IsConfigured() bool { return m.configured }

func (m *mockProvider) Chat(ctx context.Context, modelID string, messages []api.ChatMessage) (*provider.ChatResult, error) {
	m.calls++
	m.lastModel = modelID
	if m.err != nil {
		return nil, m.err
	}
	return &provider.ChatResult{Content: m.content, RateLimits: m.limits}, nil
}

func (m *mockProvider) StreamChat(ctx context.Context, modelID string, messages []api.ChatMessage, onChunk api.ChunkHandler) (ratelimit.Headers, error) {
	m.calls++
	m.lastModel = modelID
	if m.err != nil {
		return m.limits, m.err
	}
	onChunk(api.StreamChunk{Type: api.ChunkContent, Content: m.content})
	onChunk(api.StreamChunk{Type: api.ChunkDone})
	return m.limits, nil
}

func newRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(registry.Mapping{ModelID: "claude", ProviderID: "anthropic", UpstreamID: "claude-sonnet-4-20250514", DisplayName: "Claude (Sonnet 4)"})
	reg.Register(registry.Mapping{ModelID: "chatgpt", ProviderID: "openai", UpstreamID: "gpt-4o", DisplayName: "ChatGPT (GPT-4o)"})
	reg.Register(registry.Mapping{ModelID: "gemini", ProviderID: "google", UpstreamID: "gemini-2.0-flash", DisplayName: "Gemini 2.0 Flash"})
	reg.Register(registry.Mapping{ModelID: "mixtral", ProviderID: "huggingface", UpstreamID: "mistralai/Mixtral-8x7B-Instruct-v0.1", DisplayName: "Mixtral 8x7B (HF Free)"})
	reg.Register(registry.Mapping{ModelID: "llama3", ProviderID: "huggingface", UpstreamID: "meta-llama/Llama-3.1-8B-Instruct", DisplayName: "Llama 3.1 8B (HF Free)"})
	return reg
}

func rateLimitErr(providerID string) error {
	return &httpclient.UpstreamError{Provider: providerID, StatusCode: http.StatusTooManyRequests, Body: []byte("slow down")}
}

func collect(chunks *[]api.StreamChunk) api.ChunkHandler {
	return func(c api.StreamChunk) { *chunks = append(*chunks, c) }
}

func TestStreamChat_PreferredModel(t *testing.T) {
	reg := newRegistry()
	tracker := ratelimit.NewTracker()
	r := router.New(reg, tracker)

	google := &mockProvider{id: "google", configured: true, content: "hello from gemini"}
	r.RegisterProvider(google)

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "gemini", nil, collect(&chunks), router.Options{Fallback: true})

	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, api.ChunkContent, chunks[0].Type)
	assert.Equal(t, "hello from gemini", chunks[0].Content)
	assert.Equal(t, "gemini-2.0-flash", google.lastModel)
}

func TestStreamChat_FallbackOnRateLimit(t *testing.T) {
	reg := newRegistry()
	tracker := ratelimit.NewTracker()
	r := router.New(reg, tracker)

	google := &mockProvider{id: "google", configured: true, err: rateLimitErr("google")}
	hf := &mockProvider{id: "huggingface", configured: true, content: "fallback answer"}
	r.RegisterProvider(google)
	r.RegisterProvider(hf)

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "gemini", nil, collect(&chunks), router.Options{Fallback: true})

	require.NoError(t, err)
	require.Len(t, chunks, 3)
	// info chunk announces the switch before any content
	assert.Equal(t, api.ChunkInfo, chunks[0].Type)
	assert.Equal(t, "mixtral", chunks[0].Model)
	assert.Equal(t, "huggingface", chunks[0].Provider)
	assert.Equal(t, "fallback answer", chunks[1].Content)

	// the 429 provider is now marked limited
	assert.False(t, tracker.IsAvailable("google"))
	assert.True(t, tracker.IsAvailable("huggingface"))
}

func TestStreamChat_SkipsLimitedProvider(t *testing.T) {
	reg := newRegistry()
	tracker := ratelimit.NewTracker()
	r := router.New(reg, tracker)

	google := &mockProvider{id: "google", configured: true, content: "should not run"}
	hf := &mockProvider{id: "huggingface", configured: true, content: "from hf"}
	r.RegisterProvider(google)
	r.RegisterProvider(hf)

	tracker.MarkLimited("google", 0)

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "gemini", nil, collect(&chunks), router.Options{Fallback: true})

	require.NoError(t, err)
	assert.Zero(t, google.calls)
	assert.Equal(t, 1, hf.calls)
	require.NotEmpty(t, chunks)
	assert.Equal(t, api.ChunkInfo, chunks[0].Type)
}

func TestStreamChat_AuthErrorIsTerminal(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	anthropic := &mockProvider{
		id: "anthropic", configured: true,
		err: &httpclient.UpstreamError{Provider: "anthropic", StatusCode: http.StatusUnauthorized},
	}
	google := &mockProvider{id: "google", configured: true, content: "unreachable"}
	r.RegisterProvider(anthropic)
	r.RegisterProvider(google)

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "claude", nil, collect(&chunks), router.Options{Fallback: true})

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, api.ChunkError, chunks[0].Type)
	assert.Contains(t, chunks[0].Error, "Authentication failed")
	// no fallback after a bad key: the user must fix it
	assert.Zero(t, google.calls)
}

func TestStreamChat_NoProviders(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "claude", nil, collect(&chunks), router.Options{Fallback: true})

	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, api.ChunkError, chunks[0].Type)
	assert.Equal(t, "No AI providers available. Add an API key for this model or try a free model.", chunks[0].Error)
}

func TestStreamChat_FallbackDisabled(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	google := &mockProvider{id: "google", configured: true, err: rateLimitErr("google")}
	hf := &mockProvider{id: "huggingface", configured: true, content: "never"}
	r.RegisterProvider(google)
	r.RegisterProvider(hf)

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "gemini", nil, collect(&chunks), router.Options{Fallback: false})

	require.NoError(t, err)
	assert.Zero(t, hf.calls)
	require.Len(t, chunks, 1)
	assert.Equal(t, api.ChunkError, chunks[0].Type)
	assert.Contains(t, chunks[0].Error, "All providers failed")
}

func TestStreamChat_SessionProviderShadowsServer(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	server := &mockProvider{id: "google", configured: true, content: "server key"}
	session := &mockProvider{id: "google", configured: true, content: "session key"}
	r.RegisterProvider(server)

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "gemini", nil, collect(&chunks), router.Options{
		Fallback:         true,
		SessionProviders: map[string]provider.Provider{"google": session},
	})

	require.NoError(t, err)
	assert.Zero(t, server.calls)
	assert.Equal(t, 1, session.calls)
	assert.Equal(t, "session key", chunks[0].Content)
}

func TestStreamChat_DedupesProviders(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	// mixtral and llama3 both route to huggingface; a failing provider is
	// tried once, not once per model
	hf := &mockProvider{id: "huggingface", configured: true, err: errors.New("boom")}
	r.RegisterProvider(hf)

	var chunks []api.StreamChunk
	err := r.StreamChat(context.Background(), "mixtral", nil, collect(&chunks), router.Options{Fallback: true})

	require.NoError(t, err)
	assert.Equal(t, 1, hf.calls)
}

func TestStreamChat_ClientCancel(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	ctx, cancel := context.WithCancel(context.Background())

	google := &mockProvider{id: "google", configured: true}
	google.err = context.Canceled
	r.RegisterProvider(google)
	hf := &mockProvider{id: "huggingface", configured: true, content: "never"}
	r.RegisterProvider(hf)

	cancel()

	var chunks []api.StreamChunk
	err := r.StreamChat(ctx, "gemini", nil, collect(&chunks), router.Options{Fallback: true})

	// a gone client gets no error chunk and no fallback attempt
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, chunks)
	assert.Zero(t, hf.calls)
}

func TestChat_Fallback(t *testing.T) {
	reg := newRegistry()
	tracker := ratelimit.NewTracker()
	r := router.New(reg, tracker)

	google := &mockProvider{id: "google", configured: true, err: rateLimitErr("google")}
	hf := &mockProvider{id: "huggingface", configured: true, content: "42"}
	r.RegisterProvider(google)
	r.RegisterProvider(hf)

	resp, err := r.Chat(context.Background(), "gemini", nil, router.Options{Fallback: true})

	require.NoError(t, err)
	assert.Equal(t, "mixtral", resp.Model)
	assert.Equal(t, "huggingface", resp.Provider)
	assert.Equal(t, "42", resp.Content)
	assert.False(t, tracker.IsAvailable("google"))
}

func TestChat_NoProviders(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	_, err := r.Chat(context.Background(), "claude", nil, router.Options{Fallback: true})
	require.ErrorIs(t, err, router.ErrNoProviders)
}

func TestChat_AuthError(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	anthropic := &mockProvider{
		id: "anthropic", configured: true,
		err: &httpclient.UpstreamError{Provider: "anthropic", StatusCode: http.StatusForbidden},
	}
	r.RegisterProvider(anthropic)

	_, err := r.Chat(context.Background(), "claude", nil, router.Options{Fallback: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestRegisterProvider_SkipsUnconfigured(t *testing.T) {
	reg := newRegistry()
	r := router.New(reg, ratelimit.NewTracker())

	r.RegisterProvider(&mockProvider{id: "google", configured: false})

	models := r.AvailableModels(nil)
	for _, m := range models {
		assert.False(t, m.Available, "model %s should be unavailable", m.ID)
	}
}

func TestAvailableModels(t *testing.T) {
	reg := newRegistry()
	tracker := ratelimit.NewTracker()
	r := router.New(reg, tracker)

	r.RegisterProvider(&mockProvider{id: "google", configured: true})
	r.RegisterProvider(&mockProvider{id: "huggingface", configured: true})

	byID := map[string]api.ModelInfo{}
	for _, m := range r.AvailableModels(nil) {
		byID[m.ID] = m
	}

	assert.True(t, byID["gemini"].Available)
	assert.True(t, byID["mixtral"].Available)
	assert.False(t, byID["claude"].Available, "no key registered for anthropic")

	// session keys flip paid models to available
	session := map[string]provider.Provider{
		"anthropic": &mockProvider{id: "anthropic", configured: true},
	}
	for _, m := range r.AvailableModels(session) {
		if m.ID == "claude" {
			assert.True(t, m.Available)
		}
	}

	// rate-limited providers drop out
	tracker.MarkLimited("google", 0)
	for _, m := range r.AvailableModels(nil) {
		if m.ID == "gemini" {
			assert.False(t, m.Available)
		}
	}
}
