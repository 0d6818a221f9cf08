package api

type KeyRequest struct {
	Model  string `json:"model" binding:"required"`
	APIKey string `json:"apiKey" binding:"required"`
}

// KeyResponse never carries the submitted key back.
type KeyResponse struct {
	Valid    bool   `json:"valid"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Error    string `json:"error,omitempty"`
}

type KeyStatusResponse struct {
	Configured    map[string]bool  `json:"configured"`
	PaidProviders []string         `json:"paidProviders"`
	Models        []KeyModelStatus `json:"models"`
}

type KeyModelStatus struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	HasKey   bool   `json:"hasKey"`
}
