package testutil

import (
	"context"
	"sync"

	"paperlock/internal/paperlock"
)

// FlakyAuditStore wraps an AuditStore and fails appends once FailAfter
// entries have been written. A negative FailAfter never fails.
type FlakyAuditStore struct {
	paperlock.AuditStore

	mu        sync.Mutex
	FailAfter int
	appended  int
}

func NewFlakyAuditStore(inner paperlock.AuditStore, failAfter int) *FlakyAuditStore {
	return &FlakyAuditStore{AuditStore: inner, FailAfter: failAfter}
}

func (s *FlakyAuditStore) AppendAccessLog(ctx context.Context, entry *paperlock.AccessLogEntry) error {
	s.mu.Lock()
	if s.FailAfter >= 0 && s.appended >= s.FailAfter {
		s.mu.Unlock()
		return ErrStoreUnavailable
	}
	s.appended++
	s.mu.Unlock()
	return s.AuditStore.AppendAccessLog(ctx, entry)
}
