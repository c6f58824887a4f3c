package state

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrNotFound   = errors.New("key not found")
	ErrClosed     = errors.New("store closed")
	ErrInvalidKey = errors.New("invalid key")
)

// Store is a byte-valued key-value store.
type Store interface {
	// Get retrieves a value by key.
	// Returns ErrNotFound if the key does not exist.
	Get(key string) ([]byte, error)

	// Put stores a value, replacing any previous value.
	// An empty value is stored as such; it is not a delete.
	Put(key string, value []byte) error

	// Delete removes a key.
	// Returns nil if the key does not exist.
	Delete(key string) error

	// Close shuts down the store and releases resources.
	Close() error
}

// ValidateKey checks if a key is valid for every backend. Keys follow
// the NATS KV rules: no spaces, no leading or trailing dot.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, " \t\n*>") {
		return ErrInvalidKey
	}
	if strings.HasPrefix(key, ".") || strings.HasSuffix(key, ".") {
		return ErrInvalidKey
	}
	if len(key) > 1024 {
		return ErrInvalidKey
	}
	return nil
}
