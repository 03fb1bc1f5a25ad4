package paperlock

import (
	"context"
	"time"

	"paperlock/internal/integrity"
)

// KeyCustodian generates user key pairs and wraps private keys under passwords.
type KeyCustodian interface {
	GenerateKeyPair() (publicKey, privateKey []byte, err error)
	WrapPrivateKey(privateKey, password []byte) (wrapped, salt []byte, err error)
	// UnwrapPrivateKey returns an *AuthenticationError for a wrong password
	// and for corrupted material alike.
	UnwrapPrivateKey(wrapped, salt, password []byte) ([]byte, error)
	// Rotate re-wraps the private key of kp under newPassword and returns the
	// next version. kp is not modified.
	Rotate(kp *KeyPair, oldPassword, newPassword []byte) (*KeyPair, error)
}

// DocumentCipher performs hybrid encryption of document payloads.
type DocumentCipher interface {
	EncryptDocument(plaintext, recipientPublicKey []byte) (*SealedDocument, error)
	// DecryptDocument never returns plaintext that fails expectedHash.
	DecryptDocument(sealed *SealedDocument, recipientPrivateKey []byte, expectedHash integrity.Digest) ([]byte, error)
}

// Ledger owns document status and enforces the time lock.
type Ledger interface {
	Register(ctx context.Context, reg Registration) (*LedgerRecord, error)
	Release(ctx context.Context, documentID, requesterID string) (*LedgerRecord, error)
	Archive(ctx context.Context, documentID, actorID string) (*LedgerRecord, error)
	// CheckUnlockable returns the document if it is unlockable or already
	// released, and a *TimeLockError while it is still locked.
	CheckUnlockable(ctx context.Context, documentID string) (*Document, error)
	// Document returns the latest snapshot with its status observed at now.
	Document(ctx context.Context, documentID string) (*Document, error)
	History(ctx context.Context, documentID string) ([]*LedgerRecord, error)
	VerifyHash(ctx context.Context, documentID string, candidate integrity.Digest) (bool, error)
}

// AuditLog records every access attempt. Record failures must fail the caller.
type AuditLog interface {
	Record(ctx context.Context, documentID, actorID string, action Action, origin string, details map[string]any) error
	Query(ctx context.Context, documentID string) ([]*AccessLogEntry, error)
}

// AuditStore persists access log entries. It only ever appends.
type AuditStore interface {
	AppendAccessLog(ctx context.Context, entry *AccessLogEntry) error
	// ListAccessLog returns entries for documentID in insertion order.
	ListAccessLog(ctx context.Context, documentID string) ([]*AccessLogEntry, error)
}

// KeyStore persists key pair versions. Versions are inserted, never updated.
type KeyStore interface {
	// InsertKeyPair returns a *DuplicateError if the user already has the version.
	InsertKeyPair(ctx context.Context, kp *KeyPair) error
	// LatestKeyPair returns nil, nil if the user has no key pair.
	LatestKeyPair(ctx context.Context, userID string) (*KeyPair, error)
	// ListKeyPairs returns every version for the user, newest first.
	ListKeyPairs(ctx context.Context, userID string) ([]*KeyPair, error)
}

// BlobStore is a content-addressed store for ciphertext.
// The locator is the lowercase hex SHA-256 of the stored bytes.
type BlobStore interface {
	Put(ctx context.Context, data []byte) (locator string, err error)
	// Get returns a *NotFoundError for an unknown locator.
	Get(ctx context.Context, locator string) ([]byte, error)
	ValidateSetup(ctx context.Context) error
}

// Executor runs CPU-bound work with bounded parallelism. Do returns ctx.Err()
// if ctx ends before fn starts. Once fn has started, Do returns only after fn
// does, so buffers fn reads may be wiped as soon as Do is back.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// Metrics receives engine measurements.
type Metrics interface {
	AuditRecorded(action Action)
	ReleaseCompleted(outcome string)
	KeyDerivationObserved(d time.Duration)
	BlobFetchObserved(outcome string, d time.Duration)
}

// NopMetrics discards all measurements.
type NopMetrics struct{}

func (NopMetrics) AuditRecorded(Action)                     {}
func (NopMetrics) ReleaseCompleted(string)                  {}
func (NopMetrics) KeyDerivationObserved(time.Duration)      {}
func (NopMetrics) BlobFetchObserved(string, time.Duration) {}
