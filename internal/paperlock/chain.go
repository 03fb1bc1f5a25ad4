package paperlock

import (
	"context"
	"time"
)

// ChainEntry is one committed write to a chain key.
type ChainEntry struct {
	Key       string
	Seq       int64 // 1-based position in the key's history
	TxID      string
	Timestamp time.Time
	Value     []byte
}

// ChainEvent is emitted in the same transaction as the write that caused it.
// TxID and Timestamp are filled in by the Chain.
type ChainEvent struct {
	Name      string
	Key       string
	TxID      string
	Timestamp time.Time
	Payload   []byte
}

// UpdateFunc computes the next value of a key from its current value.
// Returning a nil next value commits nothing.
type UpdateFunc func(current []byte) (next []byte, event *ChainEvent, err error)

// Chain is the ordered, append-only key-value runtime the ledger is stored in.
// Writes to one key are totally ordered and durable once returned.
type Chain interface {
	// Get returns the latest entry for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (*ChainEntry, error)

	// Insert writes the first value of key. It fails with ErrKeyExists if the
	// key already has a value; the check and the write are one atomic step.
	Insert(ctx context.Context, key string, value []byte, event *ChainEvent) (*ChainEntry, error)

	// Update runs fn against the latest value of key and commits its result
	// atomically. If fn returns a nil value, the current entry is returned
	// unchanged. Returns ErrKeyNotFound if the key has never been written.
	// fn may run more than once when a write is retried.
	Update(ctx context.Context, key string, fn UpdateFunc) (*ChainEntry, error)

	// History returns every entry ever committed for key, oldest first.
	History(ctx context.Context, key string) ([]*ChainEntry, error)

	// Events returns events emitted for key, oldest first.
	Events(ctx context.Context, key string) ([]*ChainEvent, error)

	Close() error
}
