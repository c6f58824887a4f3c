package storage

import (
	"errors"

	hberrors "github.com/vinayprograms/heartbeatkit/errors"
	"github.com/vinayprograms/heartbeatkit/state"
)

// KeyValueStorage stores the blob under one key of a state.Store.
type KeyValueStorage struct {
	store state.Store
	key   string
}

// NewKeyValueStorage creates a storage for key in store.
func NewKeyValueStorage(store state.Store, key string) (*KeyValueStorage, error) {
	if store == nil {
		return nil, hberrors.InvalidInput("key-value storage requires a store")
	}
	if err := state.ValidateKey(key); err != nil {
		return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeInvalidInput, "key "+key)
	}
	return &KeyValueStorage{store: store, key: key}, nil
}

// Key returns the key holding the blob.
func (s *KeyValueStorage) Key() string {
	return s.key
}

// Read returns the stored value.
func (s *KeyValueStorage) Read() ([]byte, error) {
	data, err := s.store.Get(s.key)
	if errors.Is(err, state.ErrNotFound) {
		return nil, hberrors.Wrap(ErrNotFound, "get "+s.key)
	}
	if err != nil {
		return nil, hberrors.WrapWithCode(err, hberrors.ErrCodeUnavailable, "get "+s.key)
	}
	return data, nil
}

// Write stores data, or an empty value for nil.
func (s *KeyValueStorage) Write(data []byte) error {
	if data == nil {
		data = []byte{}
	}
	if err := s.store.Put(s.key, data); err != nil {
		return hberrors.WrapWithCode(err, hberrors.ErrCodeStorageWrite, "put "+s.key)
	}
	return nil
}
