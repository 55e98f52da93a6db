// Package auth issues access tokens and hashes passwords.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// PASETO v4 requires a 256-bit symmetric key.
	keyLength    = 32
	keyHexLength = 64
	keyFileName  = "token.key"
)

// ParseKeyHex decodes a 64-character hex token key.
func ParseKeyHex(keyHex string) ([]byte, error) {
	keyHex = strings.TrimSpace(keyHex)
	if len(keyHex) != keyHexLength {
		return nil, fmt.Errorf("invalid token key length: expected %d hex chars, got %d", keyHexLength, len(keyHex))
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid token key: not valid hex: %w", err)
	}
	return key, nil
}

// LoadOrGenerateKey reads <dir>/token.key, creating it with a fresh random
// key on first start so tokens survive restarts.
func LoadOrGenerateKey(dir string) ([]byte, error) {
	keyPath := filepath.Join(dir, keyFileName)

	//#nosec G304 -- path comes from configuration
	if data, err := os.ReadFile(keyPath); err == nil {
		return ParseKeyHex(string(data))
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read token key: %w", err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate token key: %w", err)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to save token key: %w", err)
	}
	return key, nil
}
