package provider

import "fmt"

// paidConfigs describes how to instantiate an adapter for each provider that
// runs on a user-supplied key. DeepSeek speaks the OpenAI protocol, so it
// reuses that adapter type under its own identity.
var paidConfigs = map[string]Config{
	"openai":    {Type: "openai", ID: "openai", Name: "OpenAI"},
	"anthropic": {Type: "anthropic", ID: "anthropic", Name: "Anthropic"},
	"deepseek":  {Type: "openai", ID: "deepseek", Name: "DeepSeek", BaseURL: "https://api.deepseek.com/v1"},
}

// NewSession builds a short-lived provider instance around a user's API key.
// These never get registered on the router; they travel with the request.
func NewSession(providerID, apiKey string) (Provider, error) {
	cfg, ok := paidConfigs[providerID]
	if !ok {
		return nil, fmt.Errorf("no session provider for %q", providerID)
	}
	cfg.APIKey = apiKey
	return New(cfg)
}
