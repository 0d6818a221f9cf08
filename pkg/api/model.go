package api

// ModelInfo is the caller-facing availability view of one logical model.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	Available bool   `json:"available"`
}

// ProviderLimitStatus is the rate-limit snapshot exposed on /api/models/status.
type ProviderLimitStatus struct {
	Available bool   `json:"available"`
	WaitMs    int64  `json:"waitMs"`
	Remaining *int64 `json:"remaining"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
