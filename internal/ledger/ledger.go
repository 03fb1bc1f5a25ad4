// Package ledger implements the document lifecycle state machine on top of a
// paperlock.Chain. It owns document status and enforces the release time lock.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"paperlock/internal/integrity"
	"paperlock/internal/paperlock"
)

// Chain event names.
const (
	EventDocumentRegistered = "DocumentRegistered"
	EventDocumentReleased   = "DocumentReleased"
	EventDocumentArchived   = "DocumentArchived"
)

const keyPrefix = "document/"

// Ledger implements paperlock.Ledger.
type Ledger struct {
	chain  paperlock.Chain
	clock  paperlock.Clock
	logger paperlock.Logger
}

var _ paperlock.Ledger = (*Ledger)(nil)

func New(chain paperlock.Chain, clock paperlock.Clock, logger paperlock.Logger) *Ledger {
	return &Ledger{chain: chain, clock: clock, logger: logger}
}

type eventPayload struct {
	DocumentID string `json:"document_id"`
	ActorID    string `json:"actor_id"`
	Status     string `json:"status"`
}

// Register creates the document in the registered (locked) state. The
// existence check and the write are one chain transaction.
func (l *Ledger) Register(ctx context.Context, reg paperlock.Registration) (*paperlock.LedgerRecord, error) {
	if err := validateRegistration(&reg); err != nil {
		return nil, err
	}
	if !paperlock.StatusEncrypted.CanTransition(paperlock.StatusRegistered) {
		return nil, &paperlock.StateTransitionError{DocumentID: reg.DocumentID, From: paperlock.StatusEncrypted, To: paperlock.StatusRegistered}
	}

	now := l.clock.Now().UTC()
	doc := paperlock.Document{
		ID:                   reg.DocumentID,
		OwnerID:              reg.OwnerID,
		RecipientID:          reg.RecipientID,
		RecipientPublicKey:   reg.RecipientPublicKey,
		Version:              reg.Version,
		PlaintextHash:        reg.PlaintextHash,
		BlobLocator:          reg.BlobLocator,
		WrappedSymmetricKey:  reg.WrappedKey,
		InitializationVector: reg.IV,
		UnlockTime:           utcPtr(reg.UnlockTime),
		Status:               paperlock.StatusRegistered,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	value, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	event, err := newEvent(EventDocumentRegistered, doc.ID, reg.OwnerID, doc.Status)
	if err != nil {
		return nil, err
	}

	entry, err := l.chain.Insert(ctx, documentKey(doc.ID), value, event)
	if err != nil {
		if errors.Is(err, paperlock.ErrKeyExists) {
			return nil, &paperlock.DuplicateError{Kind: "document", ID: doc.ID}
		}
		return nil, fmt.Errorf("registering document %s: %w", doc.ID, err)
	}

	l.logger.Info("document registered on ledger", "document", doc.ID, "tx", entry.TxID)
	return toRecord(entry)
}

// Release moves an unlockable document to released. The time check runs
// inside the chain update, so no write can slip between check and commit.
// Releasing an already released document returns its latest record.
func (l *Ledger) Release(ctx context.Context, documentID, requesterID string) (*paperlock.LedgerRecord, error) {
	var released bool
	entry, err := l.chain.Update(ctx, documentKey(documentID), func(current []byte) ([]byte, *paperlock.ChainEvent, error) {
		released = false

		doc, err := decodeDocument(current)
		if err != nil {
			return nil, nil, err
		}
		now := l.clock.Now().UTC()

		switch observed := paperlock.Observe(doc.Status, doc.UnlockTime, now); observed {
		case paperlock.StatusReleased:
			return nil, nil, nil
		case paperlock.StatusRegistered:
			return nil, nil, &paperlock.TimeLockError{DocumentID: documentID, UnlockTime: *doc.UnlockTime}
		case paperlock.StatusUnlockable:
			doc.Status = paperlock.StatusReleased
			doc.ReleasedBy = requesterID
			doc.UpdatedAt = now
		default:
			return nil, nil, &paperlock.StateTransitionError{DocumentID: documentID, From: observed, To: paperlock.StatusReleased}
		}

		next, err := json.Marshal(doc)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding document: %w", err)
		}
		event, err := newEvent(EventDocumentReleased, documentID, requesterID, doc.Status)
		if err != nil {
			return nil, nil, err
		}
		released = true
		return next, event, nil
	})
	if err != nil {
		return nil, l.mapChainError(documentID, err)
	}

	if released {
		l.logger.Info("document released on ledger", "document", documentID, "requester", requesterID, "tx", entry.TxID)
	} else {
		l.logger.Debug("document already released", "document", documentID, "requester", requesterID)
	}
	return toRecord(entry)
}

// Archive retires a released document. Archived is terminal.
func (l *Ledger) Archive(ctx context.Context, documentID, actorID string) (*paperlock.LedgerRecord, error) {
	entry, err := l.chain.Update(ctx, documentKey(documentID), func(current []byte) ([]byte, *paperlock.ChainEvent, error) {
		doc, err := decodeDocument(current)
		if err != nil {
			return nil, nil, err
		}
		now := l.clock.Now().UTC()

		observed := paperlock.Observe(doc.Status, doc.UnlockTime, now)
		if !observed.CanTransition(paperlock.StatusArchived) {
			return nil, nil, &paperlock.StateTransitionError{DocumentID: documentID, From: observed, To: paperlock.StatusArchived}
		}
		doc.Status = paperlock.StatusArchived
		doc.ArchivedBy = actorID
		doc.UpdatedAt = now

		next, err := json.Marshal(doc)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding document: %w", err)
		}
		event, err := newEvent(EventDocumentArchived, documentID, actorID, doc.Status)
		if err != nil {
			return nil, nil, err
		}
		return next, event, nil
	})
	if err != nil {
		return nil, l.mapChainError(documentID, err)
	}

	l.logger.Info("document archived on ledger", "document", documentID, "tx", entry.TxID)
	return toRecord(entry)
}

// CheckUnlockable is a read-only pre-check of the time lock. Release repeats
// the check atomically with its write.
func (l *Ledger) CheckUnlockable(ctx context.Context, documentID string) (*paperlock.Document, error) {
	doc, err := l.Document(ctx, documentID)
	if err != nil {
		return nil, err
	}
	switch doc.Status {
	case paperlock.StatusUnlockable, paperlock.StatusReleased:
		return doc, nil
	case paperlock.StatusRegistered:
		return nil, &paperlock.TimeLockError{DocumentID: documentID, UnlockTime: *doc.UnlockTime}
	default:
		return nil, &paperlock.StateTransitionError{DocumentID: documentID, From: doc.Status, To: paperlock.StatusReleased}
	}
}

func (l *Ledger) Document(ctx context.Context, documentID string) (*paperlock.Document, error) {
	entry, err := l.chain.Get(ctx, documentKey(documentID))
	if err != nil {
		return nil, l.mapChainError(documentID, err)
	}
	doc, err := decodeDocument(entry.Value)
	if err != nil {
		return nil, err
	}
	doc.Status = paperlock.Observe(doc.Status, doc.UnlockTime, l.clock.Now())
	return doc, nil
}

// History returns every committed snapshot, oldest first. Snapshots carry the
// stored status; the time-derived unlockable state never appears in history.
func (l *Ledger) History(ctx context.Context, documentID string) ([]*paperlock.LedgerRecord, error) {
	entries, err := l.chain.History(ctx, documentKey(documentID))
	if err != nil {
		return nil, l.mapChainError(documentID, err)
	}
	records := make([]*paperlock.LedgerRecord, 0, len(entries))
	for _, e := range entries {
		rec, err := toRecord(e)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func (l *Ledger) VerifyHash(ctx context.Context, documentID string, candidate integrity.Digest) (bool, error) {
	entry, err := l.chain.Get(ctx, documentKey(documentID))
	if err != nil {
		return false, l.mapChainError(documentID, err)
	}
	doc, err := decodeDocument(entry.Value)
	if err != nil {
		return false, err
	}
	return integrity.Equal(doc.PlaintextHash, candidate), nil
}

// Events returns the chain events emitted for the document, oldest first.
func (l *Ledger) Events(ctx context.Context, documentID string) ([]*paperlock.ChainEvent, error) {
	return l.chain.Events(ctx, documentKey(documentID))
}

func (l *Ledger) mapChainError(documentID string, err error) error {
	if errors.Is(err, paperlock.ErrKeyNotFound) {
		return &paperlock.NotFoundError{Kind: "document", ID: documentID}
	}
	var (
		tle *paperlock.TimeLockError
		ste *paperlock.StateTransitionError
	)
	if errors.As(err, &tle) || errors.As(err, &ste) {
		return err
	}
	return fmt.Errorf("ledger operation on %s: %w", documentID, err)
}

func documentKey(id string) string {
	return keyPrefix + id
}

func decodeDocument(value []byte) (*paperlock.Document, error) {
	var doc paperlock.Document
	if err := json.Unmarshal(value, &doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return &doc, nil
}

func toRecord(e *paperlock.ChainEntry) (*paperlock.LedgerRecord, error) {
	doc, err := decodeDocument(e.Value)
	if err != nil {
		return nil, err
	}
	return &paperlock.LedgerRecord{TxID: e.TxID, CommittedAt: e.Timestamp, Document: *doc}, nil
}

func newEvent(name, documentID, actorID string, status paperlock.Status) (*paperlock.ChainEvent, error) {
	payload, err := json.Marshal(eventPayload{DocumentID: documentID, ActorID: actorID, Status: string(status)})
	if err != nil {
		return nil, fmt.Errorf("encoding %s event: %w", name, err)
	}
	return &paperlock.ChainEvent{Name: name, Payload: payload}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
