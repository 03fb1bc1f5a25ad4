package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"paperlock/internal/audit"
	"paperlock/internal/blobstore"
	"paperlock/internal/chain"
	"paperlock/internal/config"
	"paperlock/internal/database"
	"paperlock/internal/encryption"
	"paperlock/internal/integrity"
	"paperlock/internal/ledger"
	"paperlock/internal/metrics"
	"paperlock/internal/paperlock"
	"paperlock/internal/workers"
)

// PaperlockApp is the application layer between the CLI and the Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw file paths, and releases resources on Close.
type PaperlockApp struct {
	cfg     *config.Config
	db      *database.SQLiteDatabase
	chain   paperlock.Chain
	blobs   paperlock.BlobStore
	ledger  *ledger.Ledger
	metrics *metrics.Registry
	service *paperlock.Service
	op      *Operation
	logFile *os.File
}

// NewPaperlockApp creates a fully wired PaperlockApp from the given config.
// command identifies the CLI command being run (e.g. "doc release"); it is
// recorded as the origin of every audit entry.
// The caller must call Close when done.
func NewPaperlockApp(ctx context.Context, cfg *config.Config, command string) (*PaperlockApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	op := NewOperation(command)
	logger, logFile, err := newLogger(cfg.LogDir, op.ID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	a := &PaperlockApp{cfg: cfg, op: op, logFile: logFile}
	if err := a.wire(ctx, log); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *PaperlockApp) wire(ctx context.Context, log paperlock.Logger) error {
	cfg := a.cfg
	clock := paperlock.RealClock{}
	ids := paperlock.UUIDGenerator{}

	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date: %w", err)
	}

	c, err := chain.NewChainFromConfig(cfg.Chain, clock, ids, log)
	if err != nil {
		return fmt.Errorf("creating chain: %w", err)
	}
	a.chain = c

	blobs, err := blobstore.NewBlobStoreFromConfig(ctx, cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}
	if err := blobs.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("blob store not ready: %w", err)
	}
	a.blobs = blobs

	custodian, err := encryption.NewCustodianFromConfig(cfg.Crypto)
	if err != nil {
		return err
	}

	a.metrics = metrics.NewRegistry()
	a.ledger = ledger.New(c, clock, log)
	auditLog := audit.NewLog(db, clock, ids, a.metrics, log)
	pool := workers.NewPool(cfg.Crypto.Workers)
	fetchTimeout := time.Duration(cfg.Timeouts.BlobFetchSeconds) * time.Second

	a.service = paperlock.NewService(
		custodian,
		encryption.NewHybridCipher(),
		a.ledger,
		auditLog,
		db,
		blobs,
		pool,
		a.metrics,
		log,
		clock,
		ids,
		fetchTimeout,
	)
	return nil
}

// Origin returns the audit origin for this invocation.
func (a *PaperlockApp) Origin() string {
	return a.op.Origin()
}

// Metrics returns the registry that collected this invocation's measurements.
func (a *PaperlockApp) Metrics() *metrics.Registry {
	return a.metrics
}

// GenerateKeys creates a new key pair version for userID.
func (a *PaperlockApp) GenerateKeys(ctx context.Context, userID string, password []byte) (*paperlock.KeyPair, error) {
	return a.service.GenerateKeys(ctx, userID, password)
}

// RotatePassword re-wraps userID's private key under a new password.
func (a *PaperlockApp) RotatePassword(ctx context.Context, userID string, oldPassword, newPassword []byte) (*paperlock.KeyPair, error) {
	return a.service.RotatePassword(ctx, userID, oldPassword, newPassword)
}

// KeyPair returns userID's current key pair.
func (a *PaperlockApp) KeyPair(ctx context.Context, userID string) (*paperlock.KeyPair, error) {
	return a.service.KeyPair(ctx, userID)
}

// SubmitParams are the CLI inputs for SubmitFile.
type SubmitParams struct {
	Path        string
	DocumentID  string
	OwnerID     string
	RecipientID string
	Version     int64
	UnlockTime  *time.Time
}

// SubmitFile reads the file at p.Path and submits it.
func (a *PaperlockApp) SubmitFile(ctx context.Context, p SubmitParams) (*paperlock.LedgerRecord, error) {
	plaintext, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.Path, err)
	}
	return a.service.Submit(ctx, paperlock.SubmitRequest{
		DocumentID:  p.DocumentID,
		OwnerID:     p.OwnerID,
		RecipientID: p.RecipientID,
		Version:     p.Version,
		Plaintext:   plaintext,
		UnlockTime:  p.UnlockTime,
		Origin:      a.Origin(),
	})
}

// ReleaseToFile releases documentID and writes the verified plaintext to
// outPath with owner-only permissions.
func (a *PaperlockApp) ReleaseToFile(ctx context.Context, documentID, requesterID string, password []byte, outPath string) (*paperlock.LedgerRecord, error) {
	res, err := a.service.Release(ctx, paperlock.ReleaseRequest{
		DocumentID:  documentID,
		RequesterID: requesterID,
		Password:    password,
		Origin:      a.Origin(),
	})
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(outPath, res.Plaintext, 0o600); err != nil {
		return nil, fmt.Errorf("writing %s: %w", outPath, err)
	}
	return res.Record, nil
}

// Inspect returns the document's metadata, recording the view.
func (a *PaperlockApp) Inspect(ctx context.Context, documentID, actorID string) (*paperlock.Document, error) {
	return a.service.Inspect(ctx, documentID, actorID, a.Origin())
}

// History returns every ledger snapshot of the document.
func (a *PaperlockApp) History(ctx context.Context, documentID string) ([]*paperlock.LedgerRecord, error) {
	return a.service.History(ctx, documentID)
}

// Events returns the chain events emitted for the document.
func (a *PaperlockApp) Events(ctx context.Context, documentID string) ([]*paperlock.ChainEvent, error) {
	return a.ledger.Events(ctx, documentID)
}

// VerifyFile hashes the file at path and compares it to the ledger hash.
func (a *PaperlockApp) VerifyFile(ctx context.Context, documentID, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	return a.service.VerifyHash(ctx, documentID, integrity.Hash(data))
}

// Archive retires a released document.
func (a *PaperlockApp) Archive(ctx context.Context, documentID, actorID string) (*paperlock.LedgerRecord, error) {
	return a.service.Archive(ctx, documentID, actorID, a.Origin())
}

// AuditTrail returns the document's access log.
func (a *PaperlockApp) AuditTrail(ctx context.Context, documentID string) ([]*paperlock.AccessLogEntry, error) {
	return a.service.AuditTrail(ctx, documentID)
}

// Close closes the chain, the database and the log file.
func (a *PaperlockApp) Close() error {
	var firstErr error

	if a.chain != nil {
		if err := a.chain.Close(); err != nil {
			firstErr = fmt.Errorf("closing chain: %w", err)
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
