package api

// ChatMessage is the canonical message shape flowing through the router.
// Adapters translate it into whatever the vendor wants.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content" binding:"required"`
}

// Role values accepted on a chat message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type ChatRequest struct {
	// Logical model id, e.g. "claude" or "gemini". Resolved via the registry,
	// never forwarded upstream as-is.
	Model string `json:"model" binding:"required"`

	// message array is required, dive in and deep validate
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`

	// Fall back to other providers when the preferred one is unavailable.
	// Defaults to true; send false to pin the request to one provider.
	Fallback *bool `json:"fallback,omitempty"`
}

// AllowFallback resolves the tri-state Fallback field.
func (r *ChatRequest) AllowFallback() bool {
	return r.Fallback == nil || *r.Fallback
}

type ChatResponse struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Content  string `json:"content"`
	Usage    *Usage `json:"usage,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}
