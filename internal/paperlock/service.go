package paperlock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"

	"paperlock/internal/integrity"
)

// DefaultFetchTimeout bounds a single blob store read during release.
const DefaultFetchTimeout = 30 * time.Second

// auditWriteTimeout bounds an audit write. Audit writes outlive the caller's
// context so a cancelled request still leaves its failure entry.
const auditWriteTimeout = 5 * time.Second

// Service orchestrates key custody, hybrid encryption, the ledger and the
// audit log into the submit and release flows.
type Service struct {
	custodian    KeyCustodian
	cipher       DocumentCipher
	ledger       Ledger
	audit        AuditLog
	keys         KeyStore
	blobs        BlobStore
	pool         Executor
	metrics      Metrics
	logger       Logger
	clock        Clock
	ids          IDGenerator
	fetchTimeout time.Duration
}

// NewService creates a Service. A non-positive fetchTimeout selects DefaultFetchTimeout.
func NewService(custodian KeyCustodian, cipher DocumentCipher, ledger Ledger, audit AuditLog, keys KeyStore, blobs BlobStore, pool Executor, metrics Metrics, logger Logger, clock Clock, ids IDGenerator, fetchTimeout time.Duration) *Service {
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Service{
		custodian:    custodian,
		cipher:       cipher,
		ledger:       ledger,
		audit:        audit,
		keys:         keys,
		blobs:        blobs,
		pool:         pool,
		metrics:      metrics,
		logger:       logger,
		clock:        clock,
		ids:          ids,
		fetchTimeout: fetchTimeout,
	}
}

// GenerateKeys creates a fresh key pair for userID, wraps the private key
// under password and stores it as the user's next version.
// The password buffer is wiped before returning.
func (s *Service) GenerateKeys(ctx context.Context, userID string, password []byte) (*KeyPair, error) {
	defer memguard.WipeBytes(password)

	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if len(password) == 0 {
		return nil, &ValidationError{Field: "password", Reason: "must not be empty"}
	}

	latest, err := s.keys.LatestKeyPair(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading key pair for %s: %w", userID, err)
	}
	version := int64(1)
	if latest != nil {
		version = latest.Version + 1
	}

	publicKey, privateKey, err := s.custodian.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("generating key pair: %w", err)
	}
	defer memguard.WipeBytes(privateKey)

	var wrapped, salt []byte
	var wrapErr error
	start := time.Now()
	if err := s.pool.Do(ctx, func() {
		wrapped, salt, wrapErr = s.custodian.WrapPrivateKey(privateKey, password)
	}); err != nil {
		return nil, fmt.Errorf("waiting for key wrap: %w", err)
	}
	s.metrics.KeyDerivationObserved(time.Since(start))
	if wrapErr != nil {
		return nil, fmt.Errorf("wrapping private key: %w", wrapErr)
	}

	kp := &KeyPair{
		UserID:            userID,
		PublicKey:         publicKey,
		WrappedPrivateKey: wrapped,
		Salt:              salt,
		Version:           version,
		CreatedAt:         s.clock.Now(),
	}
	if err := s.keys.InsertKeyPair(ctx, kp); err != nil {
		return nil, fmt.Errorf("storing key pair: %w", err)
	}

	s.logger.Info("key pair generated", "user", userID, "version", version)
	return kp, nil
}

// RotatePassword re-wraps the user's current private key under newPassword.
// The key pair itself is unchanged, so documents sealed to it stay readable.
// Both password buffers are wiped before returning.
func (s *Service) RotatePassword(ctx context.Context, userID string, oldPassword, newPassword []byte) (*KeyPair, error) {
	defer memguard.WipeBytes(oldPassword)
	defer memguard.WipeBytes(newPassword)

	if len(newPassword) == 0 {
		return nil, &ValidationError{Field: "new_password", Reason: "must not be empty"}
	}

	current, err := s.keys.LatestKeyPair(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading key pair for %s: %w", userID, err)
	}
	if current == nil {
		return nil, &NotFoundError{Kind: "user", ID: userID}
	}

	var next *KeyPair
	var rotateErr error
	start := time.Now()
	if err := s.pool.Do(ctx, func() {
		next, rotateErr = s.custodian.Rotate(current, oldPassword, newPassword)
	}); err != nil {
		return nil, fmt.Errorf("waiting for key rotation: %w", err)
	}
	s.metrics.KeyDerivationObserved(time.Since(start))
	if rotateErr != nil {
		s.logger.Warn("key rotation rejected", "user", userID)
		return nil, rotateErr
	}

	next.CreatedAt = s.clock.Now()
	if err := s.keys.InsertKeyPair(ctx, next); err != nil {
		return nil, fmt.Errorf("storing rotated key pair: %w", err)
	}

	s.logger.Info("key pair rotated", "user", userID, "version", next.Version)
	return next, nil
}

// KeyPair returns the user's current key pair.
func (s *Service) KeyPair(ctx context.Context, userID string) (*KeyPair, error) {
	kp, err := s.keys.LatestKeyPair(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading key pair for %s: %w", userID, err)
	}
	if kp == nil {
		return nil, &NotFoundError{Kind: "user", ID: userID}
	}
	return kp, nil
}

// SubmitRequest describes a document to seal and register.
type SubmitRequest struct {
	DocumentID  string // generated when empty
	OwnerID     string
	RecipientID string
	Version     int64
	Plaintext   []byte
	UnlockTime  *time.Time
	Origin      string
}

// Submit hashes and encrypts the plaintext to the recipient's current public
// key, stores the ciphertext and registers the document on the ledger in the
// locked state. Each stage is audited.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*LedgerRecord, error) {
	if req.OwnerID == "" {
		return nil, &ValidationError{Field: "owner_id", Reason: "must not be empty"}
	}
	if req.RecipientID == "" {
		return nil, &ValidationError{Field: "recipient_id", Reason: "must not be empty"}
	}
	if req.DocumentID == "" {
		req.DocumentID = s.ids.New()
	}

	recipient, err := s.keys.LatestKeyPair(ctx, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("loading recipient key pair: %w", err)
	}
	if recipient == nil {
		return nil, &NotFoundError{Kind: "user", ID: req.RecipientID}
	}

	status := StatusDraft
	advance := func(to Status) error {
		if !status.CanTransition(to) {
			return &StateTransitionError{DocumentID: req.DocumentID, From: status, To: to}
		}
		status = to
		return nil
	}

	if err := advance(StatusUploaded); err != nil {
		return nil, err
	}
	if err := s.record(ctx, req.DocumentID, req.OwnerID, ActionUpload, req.Origin, map[string]any{
		"size": len(req.Plaintext),
	}); err != nil {
		return nil, err
	}

	var sealed *SealedDocument
	var encErr error
	if err := s.pool.Do(ctx, func() {
		sealed, encErr = s.cipher.EncryptDocument(req.Plaintext, recipient.PublicKey)
	}); err != nil {
		encErr = fmt.Errorf("waiting for encryption: %w", err)
	}
	if encErr != nil {
		return nil, s.fail(ctx, req.DocumentID, req.OwnerID, ActionEncrypt, req.Origin, encErr)
	}
	if err := advance(StatusEncrypted); err != nil {
		return nil, err
	}
	if err := s.record(ctx, req.DocumentID, req.OwnerID, ActionEncrypt, req.Origin, map[string]any{
		"recipient":   req.RecipientID,
		"key_version": recipient.Version,
		"hash":        sealed.Hash.String(),
	}); err != nil {
		return nil, err
	}

	locator, err := s.blobs.Put(ctx, sealed.Ciphertext)
	if err != nil {
		return nil, s.fail(ctx, req.DocumentID, req.OwnerID, ActionRegister, req.Origin, fmt.Errorf("storing ciphertext: %w", err))
	}

	rec, err := s.ledger.Register(ctx, Registration{
		DocumentID:         req.DocumentID,
		OwnerID:            req.OwnerID,
		RecipientID:        req.RecipientID,
		RecipientPublicKey: string(recipient.PublicKey),
		Version:            req.Version,
		PlaintextHash:      sealed.Hash,
		BlobLocator:        locator,
		WrappedKey:         sealed.WrappedKey,
		IV:                 sealed.IV,
		UnlockTime:         req.UnlockTime,
	})
	if err != nil {
		return nil, s.fail(ctx, req.DocumentID, req.OwnerID, ActionRegister, req.Origin, err)
	}

	details := map[string]any{"tx_id": rec.TxID, "locator": locator}
	if req.UnlockTime != nil {
		details["unlock_time"] = req.UnlockTime.UTC().Format(time.RFC3339)
	}
	if err := s.record(ctx, req.DocumentID, req.OwnerID, ActionRegister, req.Origin, details); err != nil {
		return nil, err
	}

	s.logger.Info("document registered", "document", req.DocumentID, "tx", rec.TxID)
	return rec, nil
}

// ReleaseRequest describes a decryption request.
type ReleaseRequest struct {
	DocumentID  string
	RequesterID string
	Password    []byte // wiped by Release
	Origin      string
}

// ReleaseResult carries the verified plaintext and the ledger record of the release.
type ReleaseResult struct {
	Plaintext []byte
	Record    *LedgerRecord
}

// Release checks the time lock, unwraps the requester's private key, fetches
// and decrypts the document, verifies its hash and commits the release on the
// ledger. The attempt is audited before any work is done, and the outcome is
// audited before returning. If an audit write fails the release fails.
func (s *Service) Release(ctx context.Context, req ReleaseRequest) (*ReleaseResult, error) {
	defer memguard.WipeBytes(req.Password)

	if err := s.record(ctx, req.DocumentID, req.RequesterID, ActionDecryptAttempt, req.Origin, nil); err != nil {
		s.metrics.ReleaseCompleted("audit_unavailable")
		return nil, err
	}

	res, err := s.release(ctx, req)
	if err != nil {
		s.metrics.ReleaseCompleted(failureReason(err))
		s.logger.Warn("release failed", "document", req.DocumentID, "requester", req.RequesterID, "reason", failureReason(err))
		return nil, s.fail(ctx, req.DocumentID, req.RequesterID, ActionDecryptFailure, req.Origin, err)
	}

	if err := s.record(ctx, req.DocumentID, req.RequesterID, ActionDecryptSuccess, req.Origin, map[string]any{
		"tx_id": res.Record.TxID,
	}); err != nil {
		memguard.WipeBytes(res.Plaintext)
		s.metrics.ReleaseCompleted("audit_unavailable")
		return nil, err
	}

	s.metrics.ReleaseCompleted("success")
	s.logger.Info("document released", "document", req.DocumentID, "requester", req.RequesterID, "tx", res.Record.TxID)
	return res, nil
}

func (s *Service) release(ctx context.Context, req ReleaseRequest) (*ReleaseResult, error) {
	doc, err := s.ledger.CheckUnlockable(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}

	kp, err := s.requesterKey(ctx, req.RequesterID, doc.RecipientPublicKey)
	if err != nil {
		return nil, err
	}

	var privateKey []byte
	var unwrapErr error
	start := time.Now()
	if err := s.pool.Do(ctx, func() {
		privateKey, unwrapErr = s.custodian.UnwrapPrivateKey(kp.WrappedPrivateKey, kp.Salt, req.Password)
	}); err != nil {
		return nil, fmt.Errorf("waiting for key unwrap: %w", err)
	}
	s.metrics.KeyDerivationObserved(time.Since(start))
	if unwrapErr != nil {
		return nil, unwrapErr
	}
	defer memguard.WipeBytes(privateKey)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("unwrapping key for %s: %w", req.RequesterID, err)
	}

	ciphertext, err := s.fetch(ctx, doc.BlobLocator)
	if err != nil {
		return nil, err
	}

	var plaintext []byte
	var decErr error
	if err := s.pool.Do(ctx, func() {
		plaintext, decErr = s.cipher.DecryptDocument(&SealedDocument{
			Ciphertext: ciphertext,
			WrappedKey: doc.WrappedSymmetricKey,
			IV:         doc.InitializationVector,
			Hash:       doc.PlaintextHash,
		}, privateKey, doc.PlaintextHash)
	}); err != nil {
		return nil, fmt.Errorf("waiting for decryption: %w", err)
	}
	if err := ctx.Err(); err != nil {
		memguard.WipeBytes(plaintext)
		return nil, fmt.Errorf("decrypting %s: %w", doc.ID, err)
	}
	if decErr != nil {
		var ie *IntegrityError
		if errors.As(decErr, &ie) {
			ie.DocumentID = doc.ID
		}
		return nil, decErr
	}

	rec, err := s.ledger.Release(ctx, req.DocumentID, req.RequesterID)
	if err != nil {
		memguard.WipeBytes(plaintext)
		return nil, err
	}

	return &ReleaseResult{Plaintext: plaintext, Record: rec}, nil
}

// requesterKey finds the newest key pair of the requester whose public key
// matches the one the document was sealed to.
func (s *Service) requesterKey(ctx context.Context, requesterID, recipientPublicKey string) (*KeyPair, error) {
	pairs, err := s.keys.ListKeyPairs(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("loading key pairs for %s: %w", requesterID, err)
	}
	if len(pairs) == 0 {
		return nil, &NotFoundError{Kind: "user", ID: requesterID}
	}
	for _, kp := range pairs {
		if bytes.Equal(kp.PublicKey, []byte(recipientPublicKey)) {
			return kp, nil
		}
	}
	return nil, &AuthenticationError{}
}

// fetch reads ciphertext under its own deadline. No ledger state is held.
func (s *Service) fetch(ctx context.Context, locator string) ([]byte, error) {
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	start := time.Now()
	data, err := s.blobs.Get(fctx, locator)
	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.metrics.BlobFetchObserved(outcome, time.Since(start))
		return nil, fmt.Errorf("fetching ciphertext %s: %w", locator, err)
	}
	s.metrics.BlobFetchObserved("success", time.Since(start))
	return data, nil
}

// Inspect returns the document's ledger metadata and records the view.
func (s *Service) Inspect(ctx context.Context, documentID, actorID, origin string) (*Document, error) {
	doc, err := s.ledger.Document(ctx, documentID)
	if err != nil {
		return nil, s.fail(ctx, documentID, actorID, ActionView, origin, err)
	}
	if err := s.record(ctx, documentID, actorID, ActionView, origin, map[string]any{
		"status": string(doc.Status),
	}); err != nil {
		return nil, err
	}
	return doc, nil
}

// Archive retires a released document.
func (s *Service) Archive(ctx context.Context, documentID, actorID, origin string) (*LedgerRecord, error) {
	rec, err := s.ledger.Archive(ctx, documentID, actorID)
	if err != nil {
		return nil, s.fail(ctx, documentID, actorID, ActionArchive, origin, err)
	}
	if err := s.record(ctx, documentID, actorID, ActionArchive, origin, map[string]any{
		"tx_id": rec.TxID,
	}); err != nil {
		return nil, err
	}
	s.logger.Info("document archived", "document", documentID, "tx", rec.TxID)
	return rec, nil
}

// History returns every ledger snapshot of the document, oldest first.
func (s *Service) History(ctx context.Context, documentID string) ([]*LedgerRecord, error) {
	return s.ledger.History(ctx, documentID)
}

// VerifyHash compares candidate to the ledger-resident hash.
func (s *Service) VerifyHash(ctx context.Context, documentID string, candidate integrity.Digest) (bool, error) {
	return s.ledger.VerifyHash(ctx, documentID, candidate)
}

// AuditTrail returns the document's access log, oldest first.
func (s *Service) AuditTrail(ctx context.Context, documentID string) ([]*AccessLogEntry, error) {
	return s.audit.Query(ctx, documentID)
}

func (s *Service) record(ctx context.Context, documentID, actorID string, action Action, origin string, details map[string]any) error {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := s.audit.Record(actx, documentID, actorID, action, origin, details); err != nil {
		s.logger.Error("audit write failed", "document", documentID, "action", string(action), "error", err)
		return fmt.Errorf("recording %s for %s: %w", action, documentID, err)
	}
	return nil
}

// fail audits a failed step and returns cause, joined with the audit error if
// that write failed too.
func (s *Service) fail(ctx context.Context, documentID, actorID string, action Action, origin string, cause error) error {
	details := map[string]any{
		"outcome": "failed",
		"reason":  failureReason(cause),
	}
	var tle *TimeLockError
	if errors.As(cause, &tle) {
		details["unlock_time"] = tle.UnlockTime.UTC().Format(time.RFC3339)
	}
	if err := s.record(ctx, documentID, actorID, action, origin, details); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

// failureReason classifies err for audit details and metric labels.
func failureReason(err error) string {
	var (
		ve  *ValidationError
		ae  *AuthenticationError
		tle *TimeLockError
		ie  *IntegrityError
		de  *DuplicateError
		nfe *NotFoundError
		ste *StateTransitionError
	)
	switch {
	case errors.As(err, &tle):
		return "time_lock"
	case errors.As(err, &ae):
		return "authentication"
	case errors.As(err, &ie):
		return "integrity"
	case errors.As(err, &nfe):
		return "not_found"
	case errors.As(err, &ste):
		return "state_transition"
	case errors.As(err, &de):
		return "duplicate"
	case errors.As(err, &ve):
		return "validation"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
