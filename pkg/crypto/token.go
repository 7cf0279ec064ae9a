package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrInvalidToken = errors.New("invalid or tampered token")

// TokenCodec seals integration tokens at rest.
// Format: base64url([nonce_24][ciphertext+tag]).
type TokenCodec interface {
	Encrypt(token string) (string, error)
	Decrypt(encrypted string) (string, error)
}

type XChaCha struct {
	aead cipher.AEAD
}

// NewTokenCodec derives a 32 byte key from secret with sha256.
func NewTokenCodec(secret string) (*XChaCha, error) {
	if secret == "" {
		return nil, errors.New("token secret is empty")
	}
	key := sha256.Sum256([]byte(secret))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, err
	}
	return &XChaCha{aead: aead}, nil
}

func (c *XChaCha) Encrypt(token string) (string, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(token)+c.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(c.aead.Seal(nonce, nonce, []byte(token), nil)), nil
}

func (c *XChaCha) Decrypt(encrypted string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX+c.aead.Overhead() {
		return "", ErrInvalidToken
	}

	plaintext, err := c.aead.Open(nil, raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:], nil)
	if err != nil {
		return "", ErrInvalidToken
	}
	return string(plaintext), nil
}
