package keystore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/flowstate-app/gateway/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	vault, err := crypto.NewVault("")
	require.NoError(t, err)
	return New(vault)
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.SetKey("sess-1", "openai", "sk-first"))
	assert.Equal(t, "sk-first", s.GetKey("sess-1", "openai"))

	// Re-submission overwrites
	require.NoError(t, s.SetKey("sess-1", "openai", "sk-second"))
	assert.Equal(t, "sk-second", s.GetKey("sess-1", "openai"))
}

func TestStore_MissingKey(t *testing.T) {
	s := newStore(t)

	assert.Equal(t, "", s.GetKey("unknown-session", "openai"))
	assert.Equal(t, "", s.GetKey("sess-1", "anthropic"))
}

func TestStore_SessionIsolation(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.SetKey("sess-a", "anthropic", "sk-a"))
	require.NoError(t, s.SetKey("sess-b", "anthropic", "sk-b"))

	assert.Equal(t, "sk-a", s.GetKey("sess-a", "anthropic"))
	assert.Equal(t, "sk-b", s.GetKey("sess-b", "anthropic"))
}

func TestStore_Status(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.SetKey("sess-1", "anthropic", "sk-ant"))

	status := s.Status("sess-1")
	assert.Equal(t, map[string]bool{
		"openai":    false,
		"anthropic": true,
		"deepseek":  false,
	}, status)

	// A session with nothing stored still reports the full paid set
	status = s.Status("empty-session")
	assert.Len(t, status, len(PaidProviders))
	for provider, configured := range status {
		assert.False(t, configured, provider)
	}
}

func TestStore_RemoveAndClear(t *testing.T) {
	s := newStore(t)

	require.NoError(t, s.SetKey("sess-1", "openai", "sk-1"))
	require.NoError(t, s.SetKey("sess-1", "deepseek", "sk-2"))

	s.RemoveKey("sess-1", "openai")
	assert.Equal(t, "", s.GetKey("sess-1", "openai"))
	assert.Equal(t, "sk-2", s.GetKey("sess-1", "deepseek"))

	s.ClearSession("sess-1")
	assert.Equal(t, "", s.GetKey("sess-1", "deepseek"))
}

func TestStore_CorruptedEntryEvicted(t *testing.T) {
	vault, err := crypto.NewVault("")
	require.NoError(t, err)
	s := New(vault)

	require.NoError(t, s.SetKey("sess-1", "openai", "sk-good"))

	// Corrupt the stored ciphertext behind the store's back
	s.mu.Lock()
	e := s.sessions["sess-1"]["openai"]
	e.encrypted = "bm90IGEgdmFsaWQgY2lwaGVydGV4dA=="
	s.sessions["sess-1"]["openai"] = e
	s.mu.Unlock()

	assert.Equal(t, "", s.GetKey("sess-1", "openai"))
	// Self-healing: the corrupted entry is gone, not stuck
	assert.False(t, s.Status("sess-1")["openai"])
}

func TestStore_ConcurrentLastWriteWins(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.SetKey("sess-1", "openai", fmt.Sprintf("sk-%d", n))
		}(i)
	}
	wg.Wait()

	// Whichever write landed last, the entry must decrypt cleanly
	got := s.GetKey("sess-1", "openai")
	assert.Regexp(t, `^sk-\d+$`, got)
}

func TestIsPaidProvider(t *testing.T) {
	assert.True(t, IsPaidProvider("openai"))
	assert.True(t, IsPaidProvider("deepseek"))
	assert.False(t, IsPaidProvider("google"))
	assert.False(t, IsPaidProvider("huggingface"))
}
