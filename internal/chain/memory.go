// Package chain provides the ordered, append-only key-value runtimes the
// ledger is stored in.
package chain

import (
	"context"
	"sync"

	"paperlock/internal/paperlock"
)

// MemoryChain is an in-memory paperlock.Chain. Every write to every key is
// serialised under one mutex, which gives the same per-key ordering as the
// durable runtime. Safe for concurrent use.
type MemoryChain struct {
	clock paperlock.Clock
	ids   paperlock.IDGenerator

	mu      sync.Mutex
	history map[string][]*paperlock.ChainEntry
	events  map[string][]*paperlock.ChainEvent
	closed  bool
}

var _ paperlock.Chain = (*MemoryChain)(nil)

// NewMemoryChain creates an empty in-memory chain.
func NewMemoryChain(clock paperlock.Clock, ids paperlock.IDGenerator) *MemoryChain {
	return &MemoryChain{
		clock:   clock,
		ids:     ids,
		history: make(map[string][]*paperlock.ChainEntry),
		events:  make(map[string][]*paperlock.ChainEvent),
	}
}

func (c *MemoryChain) Get(ctx context.Context, key string) (*paperlock.ChainEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	h := c.history[key]
	if len(h) == 0 {
		return nil, paperlock.ErrKeyNotFound
	}
	return cloneEntry(h[len(h)-1]), nil
}

func (c *MemoryChain) Insert(ctx context.Context, key string, value []byte, event *paperlock.ChainEvent) (*paperlock.ChainEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if len(c.history[key]) > 0 {
		return nil, paperlock.ErrKeyExists
	}
	return c.commit(key, value, event), nil
}

func (c *MemoryChain) Update(ctx context.Context, key string, fn paperlock.UpdateFunc) (*paperlock.ChainEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	h := c.history[key]
	if len(h) == 0 {
		return nil, paperlock.ErrKeyNotFound
	}
	latest := h[len(h)-1]

	next, event, err := fn(append([]byte(nil), latest.Value...))
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cloneEntry(latest), nil
	}
	return c.commit(key, next, event), nil
}

func (c *MemoryChain) History(ctx context.Context, key string) ([]*paperlock.ChainEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	h := c.history[key]
	if len(h) == 0 {
		return nil, paperlock.ErrKeyNotFound
	}
	out := make([]*paperlock.ChainEntry, len(h))
	for i, e := range h {
		out[i] = cloneEntry(e)
	}
	return out, nil
}

func (c *MemoryChain) Events(ctx context.Context, key string) ([]*paperlock.ChainEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	out := make([]*paperlock.ChainEvent, len(c.events[key]))
	for i, ev := range c.events[key] {
		cp := *ev
		cp.Payload = append([]byte(nil), ev.Payload...)
		out[i] = &cp
	}
	return out, nil
}

// Close marks the chain closed. Later calls fail.
func (c *MemoryChain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// commit appends a new entry. The caller holds c.mu.
func (c *MemoryChain) commit(key string, value []byte, event *paperlock.ChainEvent) *paperlock.ChainEntry {
	entry := &paperlock.ChainEntry{
		Key:       key,
		Seq:       int64(len(c.history[key])) + 1,
		TxID:      c.ids.New(),
		Timestamp: c.clock.Now(),
		Value:     append([]byte(nil), value...),
	}
	c.history[key] = append(c.history[key], entry)

	if event != nil {
		c.events[key] = append(c.events[key], &paperlock.ChainEvent{
			Name:      event.Name,
			Key:       key,
			TxID:      entry.TxID,
			Timestamp: entry.Timestamp,
			Payload:   append([]byte(nil), event.Payload...),
		})
	}
	return cloneEntry(entry)
}

func (c *MemoryChain) checkOpen() error {
	if c.closed {
		return errClosed
	}
	return nil
}

func cloneEntry(e *paperlock.ChainEntry) *paperlock.ChainEntry {
	cp := *e
	cp.Value = append([]byte(nil), e.Value...)
	return &cp
}
