package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"paperlock/internal/paperlock"
)

var _ paperlock.KeyStore = (*SQLiteDatabase)(nil)

const keyPairColumns = "user_id, version, public_key, wrapped_private_key, salt, created_at"

func (s *SQLiteDatabase) InsertKeyPair(ctx context.Context, kp *paperlock.KeyPair) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO key_pairs ("+keyPairColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		kp.UserID, kp.Version, kp.PublicKey, kp.WrappedPrivateKey, kp.Salt, kp.CreatedAt.UTC(),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return &paperlock.DuplicateError{Kind: "key pair", ID: kp.UserID + "@v" + strconv.FormatInt(kp.Version, 10)}
		}
		return fmt.Errorf("inserting key pair: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) LatestKeyPair(ctx context.Context, userID string) (*paperlock.KeyPair, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+keyPairColumns+" FROM key_pairs WHERE user_id = ? ORDER BY version DESC LIMIT 1",
		userID,
	)
	kp, err := scanKeyPair(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding latest key pair: %w", err)
	}
	return kp, nil
}

func (s *SQLiteDatabase) ListKeyPairs(ctx context.Context, userID string) ([]*paperlock.KeyPair, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+keyPairColumns+" FROM key_pairs WHERE user_id = ? ORDER BY version DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing key pairs: %w", err)
	}
	defer rows.Close()

	var out []*paperlock.KeyPair
	for rows.Next() {
		kp, err := scanKeyPair(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning key pair: %w", err)
		}
		out = append(out, kp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing key pairs: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKeyPair(r rowScanner) (*paperlock.KeyPair, error) {
	var kp paperlock.KeyPair
	if err := r.Scan(&kp.UserID, &kp.Version, &kp.PublicKey, &kp.WrappedPrivateKey, &kp.Salt, &kp.CreatedAt); err != nil {
		return nil, err
	}
	return &kp, nil
}
