// Package vault seals secrets into self-contained handles with
// XChaCha20-Poly1305. A handle is base64url(nonce || ciphertext).
package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	ErrInvalidKey    = errors.New("vault key must be 32 bytes")
	ErrInvalidHandle = errors.New("invalid secret handle")
)

// developmentKey is used only when no key is configured outside production.
var developmentKey = []byte("budgetpro-development-vault-key!")

type Vault struct {
	key []byte
}

func New(key []byte) (*Vault, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	return &Vault{key: append([]byte(nil), key...)}, nil
}

// NewFromBase64 decodes a standard base64 key. An empty key selects the
// development key.
func NewFromBase64(encoded string) (*Vault, error) {
	if encoded == "" {
		return New(developmentKey)
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode vault key: %w", err)
	}
	return New(key)
}

// GenerateKey returns a fresh random key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("generate vault key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

func (v *Vault) Store(_ context.Context, secret string) (string, error) {
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(secret)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(secret), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (v *Vault) Reveal(_ context.Context, handle string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(handle)
	if err != nil {
		return "", ErrInvalidHandle
	}
	aead, err := chacha20poly1305.NewX(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidHandle
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidHandle
	}
	return string(plain), nil
}
