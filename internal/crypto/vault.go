package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/flowstate-app/gateway/internal/logger"
)

// ErrDecrypt signals that a packed ciphertext could not be opened: the input
// was tampered with, truncated, or encrypted under a different key. Callers
// must treat the secret as lost, not retry.
var ErrDecrypt = errors.New("decryption failed")

const keySize = 32 // AES-256

// Vault encrypts and decrypts opaque secret strings with AES-256-GCM.
//
// The key is either derived from an operator-supplied secret or generated
// randomly at construction. A generated key exists only in process memory,
// so every secret stored under it becomes permanently undecryptable on
// restart. That is the point: with no configured secret, a key leak is
// bounded to a single process lifetime.
type Vault struct {
	aead cipher.AEAD
}

// NewVault builds a vault from the operator secret. Secrets shorter than 32
// bytes are rejected rather than padded; an empty secret selects an ephemeral
// random key.
func NewVault(secret string) (*Vault, error) {
	var key []byte
	switch {
	case secret == "":
		key = make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
		}
		logger.Warn("No encryption secret configured, using ephemeral key (stored keys lost on restart)")
	case len(secret) < keySize:
		return nil, fmt.Errorf("encryption secret must be at least %d bytes, got %d", keySize, len(secret))
	default:
		key = []byte(secret[:keySize])
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns a single
// transportable string: base64(nonce || ciphertext || tag).
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := v.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a string produced by Encrypt. Any malformed or tampered
// input yields ErrDecrypt.
func (v *Vault) Decrypt(packed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(packed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	nonceSize := v.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("%w: packed ciphertext too short", ErrDecrypt)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return string(plaintext), nil
}
