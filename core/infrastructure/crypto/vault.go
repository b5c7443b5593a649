package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// ciphertextMarker prefixes every value sealed by the vault so legacy
// plaintext passwords can be told apart without attempting a decrypt.
const ciphertextMarker = "arv1:"

var (
	// ErrNotEncrypted marks a value that does not carry the vault marker.
	ErrNotEncrypted = errors.New("value is not vault ciphertext")
	// ErrEmptySecret rejects sealing an empty password.
	ErrEmptySecret = errors.New("secret must not be empty")
)

// Vault seals device passwords at rest with AES-256-GCM under a key
// derived from the master secret via HKDF-SHA256.
type Vault struct {
	aead cipher.AEAD
}

// NewVault derives the sealing key from masterKey and prepares the AEAD.
func NewVault(masterKey []byte) (*Vault, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("master key must not be empty")
	}
	kdf := hkdf.New(sha256.New, masterKey, nil, []byte("arava-credential-vault"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive vault key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init vault cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init vault aead: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt seals a secret and returns marker-prefixed base64 ciphertext.
func (v *Vault) Encrypt(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := v.aead.Seal(nonce, nonce, []byte(secret), nil)
	return ciphertextMarker + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens marker-prefixed ciphertext. Values without the marker
// fail with ErrNotEncrypted so callers can fall back to legacy
// plaintext storage.
func (v *Vault) Decrypt(value string) (string, error) {
	if !v.IsEncrypted(value) {
		return "", ErrNotEncrypted
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(value, ciphertextMarker))
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < v.aead.NonceSize() {
		return "", errors.New("ciphertext too short")
	}
	nonce, sealed := raw[:v.aead.NonceSize()], raw[v.aead.NonceSize():]
	plain, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}

// IsEncrypted reports whether value carries the vault marker.
func (v *Vault) IsEncrypted(value string) bool {
	return strings.HasPrefix(value, ciphertextMarker)
}

// GenerateKey returns a fresh random master key encoded for config files.
func GenerateKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate master key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(key), nil
}
