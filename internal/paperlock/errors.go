package paperlock

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by Chain implementations.
var (
	// ErrKeyExists is returned by Chain.Insert when the key is already present.
	ErrKeyExists = errors.New("key already exists")
	// ErrKeyNotFound is returned by Chain reads and updates for an absent key.
	ErrKeyNotFound = errors.New("key not found")
)

// ValidationError reports malformed caller input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// AuthenticationError reports a password or private-key unwrap failure.
// It never says which of the two went wrong.
type AuthenticationError struct{}

func (e *AuthenticationError) Error() string {
	return "authentication failed"
}

// TimeLockError reports a release attempted before the document's unlock time.
type TimeLockError struct {
	DocumentID string
	UnlockTime time.Time
}

func (e *TimeLockError) Error() string {
	return fmt.Sprintf("document %s is locked until %s", e.DocumentID, e.UnlockTime.UTC().Format(time.RFC3339))
}

// IntegrityError reports tampered or corrupted document content.
type IntegrityError struct {
	DocumentID string
	Reason     string
}

func (e *IntegrityError) Error() string {
	if e.DocumentID == "" {
		return "integrity check failed: " + e.Reason
	}
	return fmt.Sprintf("integrity check failed for document %s: %s", e.DocumentID, e.Reason)
}

// DuplicateError reports a create-only write that collided with an existing record.
type DuplicateError struct {
	Kind string // "document", "key pair"
	ID   string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Kind, e.ID)
}

// NotFoundError reports an unknown document, user or blob.
type NotFoundError struct {
	Kind string // "document", "user", "blob"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// StateTransitionError reports an illegal lifecycle edge.
type StateTransitionError struct {
	DocumentID string
	From       Status
	To         Status
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("document %s cannot move from %s to %s", e.DocumentID, e.From, e.To)
}
