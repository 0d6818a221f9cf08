package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/flowstate-app/gateway/internal/httpclient"
)

// validationEndpoint describes the cheapest authenticated call a vendor
// exposes, used to probe whether a key works before storing it.
type validationEndpoint struct {
	url     string
	method  string
	headers func(key string) map[string]string
	body    func() interface{}
}

var validationEndpoints = map[string]validationEndpoint{
	"openai": {
		url:    "https://api.openai.com/v1/models",
		method: "GET",
		headers: func(key string) map[string]string {
			return map[string]string{"Authorization": "Bearer " + key}
		},
	},
	"anthropic": {
		// Anthropic has no key-scoped GET endpoint, so probe with a
		// one-token message instead.
		url:    "https://api.anthropic.com/v1/messages",
		method: "POST",
		headers: func(key string) map[string]string {
			return map[string]string{
				"x-api-key":         key,
				"anthropic-version": "2023-06-01",
			}
		},
		body: func() interface{} {
			return map[string]interface{}{
				"model":      "claude-sonnet-4-20250514",
				"max_tokens": 1,
				"messages": []map[string]string{
					{"role": "user", "content": "hi"},
				},
			}
		},
	},
	"deepseek": {
		url:    "https://api.deepseek.com/v1/models",
		method: "GET",
		headers: func(key string) map[string]string {
			return map[string]string{"Authorization": "Bearer " + key}
		},
	},
}

const validateTimeout = 10 * time.Second

// ValidateKey probes the vendor with a lightweight authenticated request.
// Only auth rejections mark a key invalid; any other upstream failure means
// the key itself is fine.
func ValidateKey(ctx context.Context, client httpclient.HTTPClient, providerID, apiKey string) (bool, string) {
	endpoint, ok := validationEndpoints[providerID]
	if !ok {
		return false, "Unknown provider"
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	var body interface{}
	if endpoint.body != nil {
		body = endpoint.body()
	}

	_, err := httpclient.SendRequest(ctx, client, endpoint.method, endpoint.url, endpoint.headers(apiKey), body, nil)
	if err == nil {
		return true, ""
	}
	if ue, ok := httpclient.AsUpstreamError(err); ok {
		if ue.IsAuthError() {
			return false, "Invalid API key"
		}
		// rate limits, quota errors, bad requests: the key authenticated
		return true, ""
	}
	return false, fmt.Sprintf("Connection failed: %v", err)
}

// SetValidationURL rewires a vendor's validation endpoint. Tests use this to
// point probes at a local server.
func SetValidationURL(providerID, url string) func() {
	endpoint, ok := validationEndpoints[providerID]
	if !ok {
		return func() {}
	}
	prev := endpoint.url
	endpoint.url = url
	validationEndpoints[providerID] = endpoint
	return func() {
		endpoint.url = prev
		validationEndpoints[providerID] = endpoint
	}
}
