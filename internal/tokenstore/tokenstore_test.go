package tokenstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowstate-app/gateway/internal/crypto"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	vault, err := crypto.NewVault("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	return New(vault)
}

func TestSetAndGetTokens(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.SetTokens("sess-1", "access-xyz", "refresh-abc", time.Hour))

	assert.Equal(t, "access-xyz", s.AccessToken("sess-1"))
	assert.Equal(t, "refresh-abc", s.RefreshToken("sess-1"))
	assert.True(t, s.IsConnected("sess-1"))
	assert.False(t, s.IsConnected("sess-2"))
}

func TestTokensEncryptedAtRest(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetTokens("sess-1", "access-xyz", "refresh-abc", time.Hour))

	s.mu.RLock()
	e := s.sessions["sess-1"]
	s.mu.RUnlock()

	assert.NotContains(t, e.accessEnc, "access-xyz")
	assert.NotContains(t, e.refreshEnc, "refresh-abc")
}

func TestExpiryWithRefreshMargin(t *testing.T) {
	s := newStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetTokens("sess-1", "a", "r", time.Hour))

	assert.False(t, s.IsExpired("sess-1"))

	// a minute before actual expiry counts as expired
	now = base.Add(time.Hour - refreshMargin)
	assert.True(t, s.IsExpired("sess-1"))

	assert.True(t, s.IsExpired("unknown-session"))
}

func TestDisconnect(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetTokens("sess-1", "a", "r", time.Hour))

	s.Disconnect("sess-1")

	assert.False(t, s.IsConnected("sess-1"))
	assert.Empty(t, s.AccessToken("sess-1"))
}

func TestCorruptedEntryEvicted(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.SetTokens("sess-1", "a", "r", time.Hour))

	s.mu.Lock()
	e := s.sessions["sess-1"]
	e.accessEnc = "not-valid-ciphertext"
	s.sessions["sess-1"] = e
	s.mu.Unlock()

	assert.Empty(t, s.AccessToken("sess-1"))
	assert.False(t, s.IsConnected("sess-1"), "undecryptable entry should be evicted")
}
