// Retail CMS - Digital Signage Content Management Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailcms

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Token encryption errors
var (
	// ErrEncryptionKeyMissing indicates no key material was configured.
	ErrEncryptionKeyMissing = errors.New("encryption key not configured")

	// ErrDecryptionFailed indicates the ciphertext failed authentication.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext indicates the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

const (
	tokenEncryptionContext = "retailcms-session-tokens"
	minKeyMaterial         = 16
)

// TokenEncryptor encrypts backend tokens before they are put in the session
// cookie. The cookie is signed, not encrypted, so without this the bearer
// tokens would be readable by anyone holding the cookie value.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor derives an AES-256-GCM key from secret with HKDF-SHA256.
func NewTokenEncryptor(secret string) (*TokenEncryptor, error) {
	if secret == "" {
		return nil, ErrEncryptionKeyMissing
	}
	if len(secret) < minKeyMaterial {
		return nil, fmt.Errorf("encryption key must be at least %d bytes", minKeyMaterial)
	}

	key, err := deriveKey([]byte(secret), []byte(tokenEncryptionContext), 32)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}
	return &TokenEncryptor{aead: aead}, nil
}

func deriveKey(secret, info []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt returns base64url(nonce || ciphertext). Empty input stays empty.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.RawURLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+1+e.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
