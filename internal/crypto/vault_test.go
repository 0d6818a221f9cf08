package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestVault_RoundTrip(t *testing.T) {
	v, err := NewVault(testSecret)
	require.NoError(t, err)

	for _, plaintext := range []string{
		"sk-ant-api03-secret",
		"",
		"short",
		strings.Repeat("long-key-material-", 100),
		"unicode ✓ ключ 鍵",
	} {
		packed, err := v.Encrypt(plaintext)
		require.NoError(t, err)

		got, err := v.Decrypt(packed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	}
}

func TestVault_NonceIsFresh(t *testing.T) {
	v, err := NewVault(testSecret)
	require.NoError(t, err)

	a, err := v.Encrypt("same input")
	require.NoError(t, err)
	b, err := v.Encrypt("same input")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVault_TamperDetection(t *testing.T) {
	v, err := NewVault(testSecret)
	require.NoError(t, err)

	packed, err := v.Encrypt("sk-test-key")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(packed)
	require.NoError(t, err)

	// Every single-byte mutation must fail authentication
	for i := range raw {
		mutated := make([]byte, len(raw))
		copy(mutated, raw)
		mutated[i] ^= 0x01

		_, err := v.Decrypt(base64.StdEncoding.EncodeToString(mutated))
		assert.ErrorIs(t, err, ErrDecrypt, "mutation at byte %d went undetected", i)
	}
}

func TestVault_MalformedInput(t *testing.T) {
	v, err := NewVault(testSecret)
	require.NoError(t, err)

	for _, packed := range []string{"", "not base64 !!!", "AAAA", base64.StdEncoding.EncodeToString([]byte("tooshort"))} {
		_, err := v.Decrypt(packed)
		assert.ErrorIs(t, err, ErrDecrypt)
	}
}

func TestVault_ShortSecretRejected(t *testing.T) {
	_, err := NewVault("too-short")
	assert.Error(t, err)
}

func TestVault_EphemeralKeysDiffer(t *testing.T) {
	a, err := NewVault("")
	require.NoError(t, err)
	b, err := NewVault("")
	require.NoError(t, err)

	packed, err := a.Encrypt("secret")
	require.NoError(t, err)

	// A second vault cannot open the first vault's output
	_, err = b.Decrypt(packed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestVault_LongSecretTruncated(t *testing.T) {
	a, err := NewVault(testSecret + "trailing-ignored")
	require.NoError(t, err)
	b, err := NewVault(testSecret)
	require.NoError(t, err)

	packed, err := a.Encrypt("secret")
	require.NoError(t, err)

	got, err := b.Decrypt(packed)
	require.NoError(t, err)
	assert.Equal(t, "secret", got)
}
