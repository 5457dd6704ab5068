// Package crypto seals portal session data stored outside the process.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
)

var (
	ErrEmptyKey        = errors.New("encryption key is empty")
	ErrKeySize         = errors.New("encryption key must be 32 bytes")
	ErrCiphertextShort = errors.New("ciphertext too short")
)

// Sealer encrypts and decrypts opaque blobs.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) ([]byte, error)
}

// AESSealer uses AES-256-GCM with a random nonce prepended to each blob.
type AESSealer struct {
	aead cipher.AEAD
}

// NewAESSealerFromBase64Key creates a sealer from a base64-encoded 32-byte key.
func NewAESSealerFromBase64Key(encodedKey string) (*AESSealer, error) {
	if encodedKey == "" {
		return nil, ErrEmptyKey
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, ErrKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESSealer{aead: aead}, nil
}

// Seal encrypts plaintext.
func (s *AESSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return append(nonce, s.aead.Seal(nil, nonce, plaintext, nil)...), nil
}

// Open decrypts a blob produced by Seal.
func (s *AESSealer) Open(ciphertext []byte) ([]byte, error) {
	nonceSize := s.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrCiphertextShort
	}
	return s.aead.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
}

// PlainSealer passes data through unchanged.
type PlainSealer struct{}

func (PlainSealer) Seal(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (PlainSealer) Open(ciphertext []byte) ([]byte, error) { return ciphertext, nil }
