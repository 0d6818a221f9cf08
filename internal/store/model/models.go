package model

import (
	"database/sql"
	"time"
)

// RequestLog captures one routed chat request for usage analytics. API keys
// and message contents are deliberately absent.
type RequestLog struct {
	ID         string `db:"id" json:"id"`
	SessionID  string `db:"session_id" json:"session_id"`
	ModelID    string `db:"model_id" json:"model_id"`
	ProviderID string `db:"provider_id" json:"provider_id"`
	UpstreamID string `db:"upstream_id" json:"upstream_id"`

	Streamed bool `db:"streamed" json:"streamed"`
	FellBack bool `db:"fell_back" json:"fell_back"`

	// Status is "ok", "error", or "rate_limited".
	Status       string         `db:"status" json:"status"`
	ErrorMessage sql.NullString `db:"error_message" json:"error_message,omitempty"`

	PromptTokens     int   `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int   `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int   `db:"total_tokens" json:"total_tokens"`
	DurationMs       int64 `db:"duration_ms" json:"duration_ms"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DailyStats is aggregated usage for one day.
type DailyStats struct {
	Day         string `db:"day" json:"day"`
	Requests    int64  `db:"requests" json:"requests"`
	TotalTokens int64  `db:"total_tokens" json:"total_tokens"`
	Errors      int64  `db:"errors" json:"errors"`
	Fallbacks   int64  `db:"fallbacks" json:"fallbacks"`
}
