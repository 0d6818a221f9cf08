// Package openai implements the OpenAI chat completions protocol. DeepSeek
// and Hugging Face expose the same wire format, so one adapter serves all
// three behind different base URLs and routing IDs.
package openai

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

func init() {
	provider.Register("openai", NewAdapter)
}

type Adapter struct {
	cfg    provider.Config
	client httpclient.HTTPClient
}

func NewAdapter(cfg provider.Config) (provider.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Name == "" {
		cfg.Name = "OpenAI"
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
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type wireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
}

func (u *wireUsage) toAPI() *api.Usage {
	if u == nil {
		return nil
	}
	return &api.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func (a *Adapter) url() string {
	return strings.TrimRight(a.cfg.BaseURL, "/") + "/chat/completions"
}

func (a *Adapter) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + a.cfg.APIKey}
}

func (a *Adapter) payload(modelID string, messages []api.ChatMessage, stream bool) chatPayload {
	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage{Role: m.Role, Content: m.Content})
	}
	return chatPayload{Model: modelID, Messages: wire, Stream: stream}
}

// tag stamps the routing identity onto upstream errors so the router can
// attribute rate limits to the right provider.
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

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	return &provider.ChatResult{
		Content:    content,
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
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			if !doneSent {
				doneSent = true
				onChunk(api.StreamChunk{Type: api.ChunkDone})
			}
			return nil
		}

		var resp chatResponse
		if err := json.Unmarshal([]byte(data), &resp); err != nil {
			// skip malformed chunks
			return nil
		}

		if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
			onChunk(api.StreamChunk{Type: api.ChunkContent, Content: resp.Choices[0].Delta.Content})
		}
		if resp.Usage != nil && !doneSent {
			doneSent = true
			onChunk(api.StreamChunk{Type: api.ChunkDone, Usage: resp.Usage.toAPI()})
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
