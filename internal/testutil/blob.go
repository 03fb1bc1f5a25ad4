package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"paperlock/internal/paperlock"
)

// SHA256Hex returns the SHA-256 of data as a lowercase hex string.
// Matches the locator format used by the blob stores.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ErrStoreUnavailable is returned by the failing test stores.
var ErrStoreUnavailable = errors.New("store unavailable")

// BlockingBlobStore wraps a BlobStore and makes Get wait until its context
// ends, simulating a stalled fetch.
type BlockingBlobStore struct {
	paperlock.BlobStore
}

func (b *BlockingBlobStore) Get(ctx context.Context, locator string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// CorruptingBlobStore wraps a BlobStore and flips one bit of every blob it returns.
type CorruptingBlobStore struct {
	paperlock.BlobStore
}

func (b *CorruptingBlobStore) Get(ctx context.Context, locator string) ([]byte, error) {
	data, err := b.BlobStore.Get(ctx, locator)
	if err != nil || len(data) == 0 {
		return data, err
	}
	data[len(data)/2] ^= 0x01
	return data, nil
}
