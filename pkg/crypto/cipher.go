// Package crypto provides encryption for upstream credentials at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrInvalidKey is returned when the encryption key is not 32 bytes.
	ErrInvalidKey = errors.New("crypto: invalid encryption key")
	// ErrInvalidCiphertext is returned when the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("crypto: invalid ciphertext")
)

// Encryptor encrypts and decrypts strings.
type Encryptor interface {
	EncryptString(plaintext string) (string, error)
	DecryptString(encoded string) (string, error)
}

// Cipher provides AES-256-GCM encryption.
type Cipher struct {
	aead cipher.AEAD
}

var _ Encryptor = (*Cipher)(nil)

// NewCipher creates a Cipher. The key must be exactly 32 bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// EncryptString encrypts plaintext and returns base64(nonce || ciphertext).
// Empty input round-trips to empty output so unset credentials stay unset.
func (c *Cipher) EncryptString(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (c *Cipher) DecryptString(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(data) < c.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plaintext), nil
}

// FromKey builds an Encryptor from a configuration key. The key may be raw
// 32 bytes or base64-encoded; an empty key yields the pass-through encryptor.
func FromKey(key string) (Encryptor, error) {
	if key == "" {
		return NoOpEncryptor{}, nil
	}
	if decoded, err := base64.StdEncoding.DecodeString(key); err == nil && len(decoded) == 32 {
		return NewCipher(decoded)
	}
	return NewCipher([]byte(key))
}

// NoOpEncryptor passes values through unchanged. For development and tests.
type NoOpEncryptor struct{}

// EncryptString returns the plaintext as-is.
func (NoOpEncryptor) EncryptString(plaintext string) (string, error) { return plaintext, nil }

// DecryptString returns the encoded string as-is.
func (NoOpEncryptor) DecryptString(encoded string) (string, error) { return encoded, nil }
