package keystore

import (
	"sync"
	"time"

	"github.com/flowstate-app/gateway/internal/crypto"
)

// PaidProviders require the caller's own API key; the server never holds
// credentials for them.
var PaidProviders = []string{"openai", "anthropic", "deepseek"}

// FreeProviders run on server-side keys.
var FreeProviders = []string{"google", "huggingface"}

type entry struct {
	encrypted string
	storedAt  time.Time
}

// Store keeps user-supplied API keys encrypted at rest, scoped by
// (session, provider). It is in-memory only: credentials must not outlive
// the server process.
type Store struct {
	vault *crypto.Vault

	mu       sync.RWMutex
	sessions map[string]map[string]entry
}

func New(vault *crypto.Vault) *Store {
	return &Store{
		vault:    vault,
		sessions: make(map[string]map[string]entry),
	}
}

// SetKey encrypts and stores a key, overwriting any prior entry for the
// (session, provider) pair. Validation happens before this call, not here.
func (s *Store) SetKey(sessionID, provider, apiKey string) error {
	encrypted, err := s.vault.Encrypt(apiKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys, ok := s.sessions[sessionID]
	if !ok {
		keys = make(map[string]entry)
		s.sessions[sessionID] = keys
	}
	keys[provider] = entry{encrypted: encrypted, storedAt: time.Now()}
	return nil
}

// GetKey decrypts and returns a stored key, or "" when none exists. An entry
// that fails to decrypt is evicted and reported as absent: a corrupted key is
// the same as no key.
func (s *Store) GetKey(sessionID, provider string) string {
	s.mu.RLock()
	e, ok := s.sessions[sessionID][provider]
	s.mu.RUnlock()
	if !ok {
		return ""
	}

	plaintext, err := s.vault.Decrypt(e.encrypted)
	if err != nil {
		s.mu.Lock()
		delete(s.sessions[sessionID], provider)
		s.mu.Unlock()
		return ""
	}
	return plaintext
}

// Status reports key presence (not validity) for every paid provider.
func (s *Store) Status(sessionID string) map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.sessions[sessionID]
	status := make(map[string]bool, len(PaidProviders))
	for _, provider := range PaidProviders {
		_, ok := keys[provider]
		status[provider] = ok
	}
	return status
}

func (s *Store) RemoveKey(sessionID, provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions[sessionID], provider)
}

func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// IsPaidProvider reports whether a provider requires a user key.
func IsPaidProvider(provider string) bool {
	for _, p := range PaidProviders {
		if p == provider {
			return true
		}
	}
	return false
}
