// Package registry holds the model catalog: the mapping from friendly model
// IDs to the provider that serves them and the vendor-specific model name.
package registry

import "sync"

// Mapping ties a friendly model ID to its provider.
type Mapping struct {
	// ModelID is the client-facing identity ("claude", "gemini", ...).
	ModelID string
	// ProviderID names the provider that serves this model.
	ProviderID string
	// UpstreamID is the vendor's model name ("gpt-4o", "deepseek-chat", ...).
	UpstreamID  string
	DisplayName string
}

// Registry is an append-only model catalog. Registration happens at startup;
// lookups happen on every request.
type Registry struct {
	mu       sync.RWMutex
	mappings []Mapping
}

func New() *Registry {
	return &Registry{}
}

func (r *Registry) Register(m Mapping) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings = append(r.mappings, m)
}

// Get returns the mapping for a model ID.
func (r *Registry) Get(modelID string) (Mapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.mappings {
		if m.ModelID == modelID {
			return m, true
		}
	}
	return Mapping{}, false
}

// List returns all mappings in registration order.
func (r *Registry) List() []Mapping {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Mapping, len(r.mappings))
	copy(out, r.mappings)
	return out
}
