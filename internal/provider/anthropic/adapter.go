// Package anthropic implements the Anthropic Messages API for Claude models.
package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/flowstate-app/gateway/internal/httpclient"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/ratelimit"
	"github.com/flowstate-app/gateway/pkg/api"
)

const (
	apiVersion = "2023-06-01"
	// maxTokens caps completion length; Anthropic requires the field.
	maxTokens = 4096
)

func init() {
	provider.Register("anthropic", NewAdapter)
}

type Adapter struct {
	cfg    provider.Config
	client httpclient.HTTPClient
}

func NewAdapter(cfg provider.Config) (provider.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1"
	}
	if cfg.ID == "" {
		cfg.ID = "anthropic"
	}
	if cfg.Name == "" {
		cfg.Name = "Anthropic"
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Adapter) ID() string         { return a.cfg.ID }
func (a *Adapter) Name() string       { return a.cfg.Name }
func (a *Adapter) IsConfigured() bool { return a.cfg.APIKey != "" }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Stream    bool          `json:"stream,omitempty"`
}

type wireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u *wireUsage) toAPI() *api.Usage {
	if u == nil {
		return nil
	}
	return &api.Usage{
		PromptTokens:     u.InputTokens,
		CompletionTokens: u.OutputTokens,
		TotalTokens:      u.InputTokens + u.OutputTokens,
	}
}

// streamEvent covers the subset of Anthropic SSE event types the gateway
// consumes: content_block_delta, message_delta, and message_stop.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
	Usage *wireUsage `json:"usage"`
}

type chatResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage *wireUsage `json:"usage"`
}

// payload splits any system message out of the conversation, since the
// Messages API carries it in a dedicated field.
func (a *Adapter) payload(modelID string, messages []api.ChatMessage, stream bool) chatPayload {
	p := chatPayload{Model: modelID, MaxTokens: maxTokens, Stream: stream}
	for _, m := range messages {
		if m.Role == api.RoleSystem {
			p.System = m.Content
			continue
		}
		p.Messages = append(p.Messages, wireMessage{Role: m.Role, Content: m.Content})
	}
	return p
}

func (a *Adapter) url() string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/messages"
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.cfg.APIKey,
		"anthropic-version": apiVersion,
	}
}

func (a *Adapter) tag(err error) error {
	if ue, ok := httpclient.AsUpstreamError(err); ok {
		ue.Provider = a.cfg.ID
	}
	return err
}

func (a *Adapter) Chat(ctx context.Context, modelID string, messages []api.ChatMessage) (*provider.ChatResult, error) {
	var resp chatResponse
	hdr, err := httpclient.SendRequest(ctx, a.client, "POST", a.url(), a.headers(), a.payload(modelID, messages, false), &resp)
	if err != nil {
		return nil, a.tag(err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &provider.ChatResult{
		Content:    sb.String(),
		Usage:      resp.Usage.toAPI(),
		RateLimits: ratelimit.ParseHeaders(hdr),
	}, nil
}

func (a *Adapter) StreamChat(ctx context.Context, modelID string, messages []api.ChatMessage, onChunk api.ChunkHandler) (ratelimit.Headers, error) {
	doneSent := false

	hdr, err := httpclient.StreamRequest(ctx, a.client, "POST", a.url(), a.headers(), a.payload(modelID, messages, true), func(line string) error {
		if !strings.HasPrefix(line, "data: ") {
			return nil
		}

		var ev streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return nil
		}

		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Text != "" {
				onChunk(api.StreamChunk{Type: api.ChunkContent, Content: ev.Delta.Text})
			}
		case "message_delta":
			if ev.Usage != nil && !doneSent {
				doneSent = true
				onChunk(api.StreamChunk{Type: api.ChunkDone, Usage: ev.Usage.toAPI()})
			}
		case "message_stop":
			if !doneSent {
				doneSent = true
				onChunk(api.StreamChunk{Type: api.ChunkDone})
			}
		}
		return nil
	})

	limits := ratelimit.ParseHeaders(hdr)
	if err != nil {
		return limits, a.tag(err)
	}
	if !doneSent {
		onChunk(api.StreamChunk{Type: api.ChunkDone})
	}
	return limits, nil
}
