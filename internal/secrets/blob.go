// Package secrets provides the AES-256-GCM encryption used by shared memory
// and adaptive-state persistence. The key is loaded from (or created at) an
// explicit path and injected into a Cipher, so tests can run with isolated
// throwaway keys.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const keySize = 32

type encryptedBlob struct {
	Version    string `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Cipher encrypts and decrypts blobs with a fixed 32-byte key.
type Cipher struct {
	key []byte
}

// NewCipher creates a Cipher from a 32-byte AES key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	return &Cipher{key: append([]byte(nil), key...)}, nil
}

// LoadOrCreateKey reads the key file at path, creating it with a fresh
// random key if it does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.RawStdEncoding.DecodeString(strings.TrimSpace(string(data)))
		if decErr != nil {
			return nil, fmt.Errorf("decode key file %s: %w", path, decErr)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("key file %s holds %d bytes, want %d", path, len(key), keySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}

	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	encoded := base64.RawStdEncoding.EncodeToString(key) + "\n"
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, fmt.Errorf("write key file %s: %w", path, err)
	}
	return key, nil
}

// OpenCipher loads or creates the key at path and returns a ready Cipher.
func OpenCipher(path string) (*Cipher, error) {
	key, err := LoadOrCreateKey(path)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// Encrypt seals plain bytes into a versioned JSON blob.
func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plain, nil)
	out := encryptedBlob{
		Version:    "v1",
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(ciphertext),
	}
	return json.Marshal(out)
}

// Decrypt opens a blob produced by Encrypt.
func (c *Cipher) Decrypt(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty encrypted blob")
	}
	var wrapped encryptedBlob
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("parse encrypted blob: %w", err)
	}
	if wrapped.Version != "v1" {
		return nil, fmt.Errorf("unsupported blob version: %q", wrapped.Version)
	}
	nonce, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(wrapped.Nonce))
	if err != nil {
		return nil, err
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(strings.TrimSpace(wrapped.Ciphertext))
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt blob: %w", err)
	}
	return plain, nil
}
