// Package audit records every access attempt against a document.
package audit

import (
	"context"
	"fmt"
	"maps"

	"paperlock/internal/paperlock"
)

// Log implements paperlock.AuditLog over an append-only store. Record returns
// the store's error unchanged in meaning so the triggering operation fails
// instead of proceeding un-audited.
type Log struct {
	store   paperlock.AuditStore
	clock   paperlock.Clock
	ids     paperlock.IDGenerator
	metrics paperlock.Metrics
	logger  paperlock.Logger
}

var _ paperlock.AuditLog = (*Log)(nil)

func NewLog(store paperlock.AuditStore, clock paperlock.Clock, ids paperlock.IDGenerator, metrics paperlock.Metrics, logger paperlock.Logger) *Log {
	return &Log{store: store, clock: clock, ids: ids, metrics: metrics, logger: logger}
}

// Record appends one entry. Details are copied, so the caller may reuse the map.
func (l *Log) Record(ctx context.Context, documentID, actorID string, action paperlock.Action, origin string, details map[string]any) error {
	if documentID == "" {
		return &paperlock.ValidationError{Field: "document_id", Reason: "must not be empty"}
	}
	if !action.Valid() {
		return &paperlock.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}

	entry := &paperlock.AccessLogEntry{
		ID:         l.ids.New(),
		DocumentID: documentID,
		ActorID:    actorID,
		Action:     action,
		Timestamp:  l.clock.Now(),
		Origin:     origin,
		Details:    maps.Clone(details),
	}
	if err := l.store.AppendAccessLog(ctx, entry); err != nil {
		return fmt.Errorf("audit store unavailable: %w", err)
	}

	l.metrics.AuditRecorded(action)
	l.logger.Debug("access recorded", "document", documentID, "actor", actorID, "action", string(action), "origin", origin)
	return nil
}

// Query returns the document's entries oldest first.
func (l *Log) Query(ctx context.Context, documentID string) ([]*paperlock.AccessLogEntry, error) {
	entries, err := l.store.ListAccessLog(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying access log for %s: %w", documentID, err)
	}
	return entries, nil
}
