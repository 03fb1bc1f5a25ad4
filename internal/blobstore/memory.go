package blobstore

import (
	"bytes"
	"context"
	"sync"

	"paperlock/internal/paperlock"
)

// MemoryStore is an in-memory BlobStore, useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	blobs map[string][]byte // locator -> ciphertext
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores data under its content address.
// Storing the same bytes twice is a no-op.
func (m *MemoryStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	locator := Locator(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[locator]; !ok {
		m.blobs[locator] = bytes.Clone(data)
	}
	return locator, nil
}

// Get returns a copy of the blob stored under locator.
func (m *MemoryStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkLocator(locator); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[locator]
	if !ok {
		return nil, &paperlock.NotFoundError{Kind: "blob", ID: locator}
	}
	return bytes.Clone(data), nil
}

// ValidateSetup always succeeds for the in-memory store.
func (m *MemoryStore) ValidateSetup(ctx context.Context) error {
	return nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Compile-time check that MemoryStore implements paperlock.BlobStore
var _ paperlock.BlobStore = (*MemoryStore)(nil)
