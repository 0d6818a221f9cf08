// Package tokenstore holds per-session OAuth tokens, encrypted at rest.
package tokenstore

import (
	"sync"
	"time"

	"github.com/flowstate-app/gateway/internal/crypto"
)

// refreshMargin makes IsExpired fire early so a refresh can finish before
// the access token actually lapses.
const refreshMargin = 60 * time.Second

type entry struct {
	accessEnc  string
	refreshEnc string
	expiresAt  time.Time
}

// Store keeps OAuth access and refresh tokens per session in memory.
type Store struct {
	vault *crypto.Vault

	mu       sync.RWMutex
	sessions map[string]entry

	now func() time.Time
}

func New(vault *crypto.Vault) *Store {
	return &Store{
		vault:    vault,
		sessions: make(map[string]entry),
		now:      time.Now,
	}
}

// SetTokens stores a fresh token pair for a session, replacing any previous one.
func (s *Store) SetTokens(sessionID, accessToken, refreshToken string, expiresIn time.Duration) error {
	accessEnc, err := s.vault.Encrypt(accessToken)
	if err != nil {
		return err
	}
	refreshEnc, err := s.vault.Encrypt(refreshToken)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = entry{
		accessEnc:  accessEnc,
		refreshEnc: refreshEnc,
		expiresAt:  s.now().Add(expiresIn),
	}
	return nil
}

// AccessToken returns the decrypted access token, or "" when absent. An entry
// that no longer decrypts is evicted.
func (s *Store) AccessToken(sessionID string) string {
	return s.decryptField(sessionID, func(e entry) string { return e.accessEnc })
}

// RefreshToken returns the decrypted refresh token, or "" when absent.
func (s *Store) RefreshToken(sessionID string) string {
	return s.decryptField(sessionID, func(e entry) string { return e.refreshEnc })
}

func (s *Store) decryptField(sessionID string, field func(entry) string) string {
	s.mu.RLock()
	e, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return ""
	}

	plain, err := s.vault.Decrypt(field(e))
	if err != nil {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
		return ""
	}
	return plain
}

// IsExpired reports whether the session's access token needs a refresh.
// Unknown sessions count as expired.
func (s *Store) IsExpired(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return true
	}
	return !s.now().Before(e.expiresAt.Add(-refreshMargin))
}

// IsConnected reports whether the session has tokens stored.
func (s *Store) IsConnected(sessionID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok
}

// Disconnect drops the session's tokens.
func (s *Store) Disconnect(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
