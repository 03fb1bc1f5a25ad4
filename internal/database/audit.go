package database

import (
	"context"
	"encoding/json"
	"fmt"

	"paperlock/internal/paperlock"
)

var _ paperlock.AuditStore = (*SQLiteDatabase)(nil)

func (s *SQLiteDatabase) AppendAccessLog(ctx context.Context, entry *paperlock.AccessLogEntry) error {
	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("encoding access log details: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO access_log (id, document_id, actor_id, action, created_at, origin, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DocumentID, entry.ActorID, string(entry.Action), entry.Timestamp.UTC(), entry.Origin, string(data),
	)
	if err != nil {
		return fmt.Errorf("appending access log entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading access log sequence: %w", err)
	}
	entry.Seq = seq
	return nil
}

func (s *SQLiteDatabase) ListAccessLog(ctx context.Context, documentID string) ([]*paperlock.AccessLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id, document_id, actor_id, action, created_at, origin, details
		 FROM access_log WHERE document_id = ? ORDER BY seq`,
		documentID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying access log: %w", err)
	}
	defer rows.Close()

	var out []*paperlock.AccessLogEntry
	for rows.Next() {
		var (
			e       paperlock.AccessLogEntry
			action  string
			details string
		)
		if err := rows.Scan(&e.Seq, &e.ID, &e.DocumentID, &e.ActorID, &action, &e.Timestamp, &e.Origin, &details); err != nil {
			return nil, fmt.Errorf("scanning access log entry: %w", err)
		}
		e.Action = paperlock.Action(action)
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("decoding access log details: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying access log: %w", err)
	}
	return out, nil
}
