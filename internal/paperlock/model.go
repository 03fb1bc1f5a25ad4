package paperlock

import (
	"time"

	"paperlock/internal/integrity"
)

// KeyPair is one version of a user's key custody record.
// PrivateKey material is only ever held here in wrapped form.
type KeyPair struct {
	UserID            string
	PublicKey         []byte
	WrappedPrivateKey []byte
	Salt              []byte
	Version           int64
	CreatedAt         time.Time
}

// Document is the ledger-resident metadata for one sealed payload version.
type Document struct {
	ID                   string           `json:"id"`
	OwnerID              string           `json:"owner_id"`
	RecipientID          string           `json:"recipient_id"`
	RecipientPublicKey   string           `json:"recipient_public_key"`
	Version              int64            `json:"version"`
	PlaintextHash        integrity.Digest `json:"plaintext_hash"`
	BlobLocator          string           `json:"blob_locator"`
	WrappedSymmetricKey  []byte           `json:"wrapped_symmetric_key"`
	InitializationVector []byte           `json:"initialization_vector"`
	UnlockTime           *time.Time       `json:"unlock_time,omitempty"`
	Status               Status           `json:"status"`
	ReleasedBy           string           `json:"released_by,omitempty"`
	ArchivedBy           string           `json:"archived_by,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// LedgerRecord is one committed snapshot of a Document.
type LedgerRecord struct {
	TxID        string
	CommittedAt time.Time
	Document    Document
}

// Registration is the input to Ledger.Register.
type Registration struct {
	DocumentID         string `validate:"required,max=128"`
	OwnerID            string `validate:"required,max=128"`
	RecipientID        string `validate:"required,max=128"`
	RecipientPublicKey string `validate:"required,startswith=age1"`
	Version            int64  `validate:"gte=0"`
	PlaintextHash      integrity.Digest
	BlobLocator        string `validate:"required,locator"`
	WrappedKey         []byte `validate:"required"`
	IV                 []byte `validate:"len=16"`
	UnlockTime         *time.Time
}

// SealedDocument is the output of hybrid encryption. The four fields belong
// together and are only ever persisted as a unit.
type SealedDocument struct {
	Ciphertext []byte
	WrappedKey []byte
	IV         []byte
	Hash       integrity.Digest
}

// Action identifies what an access log entry records.
type Action string

const (
	ActionUpload         Action = "upload"
	ActionEncrypt        Action = "encrypt"
	ActionRegister       Action = "register"
	ActionView           Action = "view"
	ActionDecryptAttempt Action = "decrypt-attempt"
	ActionDecryptSuccess Action = "decrypt-success"
	ActionDecryptFailure Action = "decrypt-failure"
	ActionArchive        Action = "archive"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionUpload, ActionEncrypt, ActionRegister, ActionView,
		ActionDecryptAttempt, ActionDecryptSuccess, ActionDecryptFailure, ActionArchive:
		return true
	}
	return false
}

// AccessLogEntry is one append-only audit record.
type AccessLogEntry struct {
	ID         string
	Seq        int64 // assigned by the store; orders entries of one document
	DocumentID string
	ActorID    string
	Action     Action
	Timestamp  time.Time
	Origin     string
	Details    map[string]any
}
