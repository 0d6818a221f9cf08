package provider

import (
	"fmt"
	"sync"
)

// Factory creates a Provider instance from a configuration.
type Factory func(cfg Config) (Provider, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes an adapter factory available under a type key. Adapters call
// this from init, so a duplicate key is a programming error.
func Register(providerType string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := factories[providerType]; exists {
		panic(fmt.Sprintf("provider factory %s already registered", providerType))
	}
	factories[providerType] = f
}

// New creates a provider of the type named in cfg.
func New(cfg Config) (Provider, error) {
	mu.RLock()
	f, ok := factories[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("provider factory not found for type: %s", cfg.Type)
	}
	return f(cfg)
}
