// Package google implements the Gemini API (generativelanguage.googleapis.com).
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/flowstate-app/gateway/internal/httpclient"
	"github.com/flowstate-app/gateway/internal/provider"
	"github.com/flowstate-app/gateway/internal/ratelimit"
	"github.com/flowstate-app/gateway/pkg/api"
)

func init() {
	provider.Register("google", NewAdapter)
}

type Adapter struct {
	cfg    provider.Config
	client httpclient.HTTPClient
}

func NewAdapter(cfg provider.Config) (provider.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.ID == "" {
		cfg.ID = "google"
	}
	if cfg.Name == "" {
		cfg.Name = "Google AI"
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Adapter) ID() string         { return a.cfg.ID }
func (a *Adapter) Name() string       { return a.cfg.Name }
func (a *Adapter) IsConfigured() bool { return a.cfg.APIKey != "" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type chatPayload struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func (u *usageMetadata) toAPI() *api.Usage {
	if u == nil {
		return nil
	}
	return &api.Usage{
		PromptTokens:     u.PromptTokenCount,
		CompletionTokens: u.CandidatesTokenCount,
		TotalTokens:      u.TotalTokenCount,
	}
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata"`
}

func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	return r.Candidates[0].Content.Parts[0].Text
}

// payload maps chat roles onto Gemini's contents format: assistant turns
// become role "model" and the system message moves to systemInstruction.
func (a *Adapter) payload(messages []api.ChatMessage) chatPayload {
	var p chatPayload
	for _, m := range messages {
		if m.Role == api.RoleSystem {
			p.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
			continue
		}
		role := "user"
		if m.Role == api.RoleAssistant {
			role = "model"
		}
		p.Contents = append(p.Contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	return p
}

func (a *Adapter) tag(err error) error {
	if ue, ok := httpclient.AsUpstreamError(err); ok {
		ue.Provider = a.cfg.ID
	}
	return err
}

// headers carry the API key; keeping it out of the URL keeps it out of
// error text and logs.
func (a *Adapter) headers() map[string]string {
	return map[string]string{"x-goog-api-key": a.cfg.APIKey}
}

func (a *Adapter) Chat(ctx context.Context, modelID string, messages []api.ChatMessage) (*provider.ChatResult, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(a.cfg.BaseURL, "/"), modelID)

	var resp generateResponse
	hdr, err := httpclient.SendRequest(ctx, a.client, "POST", url, a.headers(), a.payload(messages), &resp)
	if err != nil {
		return nil, a.tag(err)
	}

	return &provider.ChatResult{
		Content:    resp.text(),
		Usage:      resp.UsageMetadata.toAPI(),
		RateLimits: ratelimit.ParseHeaders(hdr),
	}, nil
}

func (a *Adapter) StreamChat(ctx context.Context, modelID string, messages []api.ChatMessage, onChunk api.ChunkHandler) (ratelimit.Headers, error) {
	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", strings.TrimRight(a.cfg.BaseURL, "/"), modelID)

	// Gemini attaches cumulative usageMetadata to intermediate events, so
	// the last one seen wins and done is emitted only once the body closes.
	var usage *usageMetadata

	hdr, err := httpclient.StreamRequest(ctx, a.client, "POST", url, a.headers(), a.payload(messages), func(line string) error {
		if !strings.HasPrefix(line, "data: ") {
			return nil
		}

		var resp generateResponse
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &resp); err != nil {
			return nil
		}

		if text := resp.text(); text != "" {
			onChunk(api.StreamChunk{Type: api.ChunkContent, Content: text})
		}
		if resp.UsageMetadata != nil {
			usage = resp.UsageMetadata
		}
		return nil
	})

	limits := ratelimit.ParseHeaders(hdr)
	if err != nil {
		return limits, a.tag(err)
	}
	onChunk(api.StreamChunk{Type: api.ChunkDone, Usage: usage.toAPI()})
	return limits, nil
}
