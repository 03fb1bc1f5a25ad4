package paperlock_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"paperlock/internal/audit"
	"paperlock/internal/blobstore"
	"paperlock/internal/chain"
	"paperlock/internal/database"
	"paperlock/internal/encryption"
	"paperlock/internal/integrity"
	"paperlock/internal/ledger"
	"paperlock/internal/metrics"
	"paperlock/internal/paperlock"
	"paperlock/internal/testutil"
	"paperlock/internal/workers"
)

const password = "Coe@123456"

type harness struct {
	svc     *paperlock.Service
	clock   *testutil.StubClock
	db      *database.SQLiteDatabase
	ledger  *ledger.Ledger
	metrics *metrics.Registry
}

type harnessOptions struct {
	blobs        func(inner paperlock.BlobStore) paperlock.BlobStore
	auditStore   func(inner paperlock.AuditStore) paperlock.AuditStore
	cipher       func(inner paperlock.DocumentCipher) paperlock.DocumentCipher
	fetchTimeout time.Duration
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	clock := testutil.FixedClock()
	db := testutil.NewTestDatabase(t)
	c := chain.NewMemoryChain(clock, testutil.NewPrefixedIDGenerator("tx"))
	t.Cleanup(func() { c.Close() })

	custodian, err := encryption.NewCustodian(encryption.MinIterations)
	if err != nil {
		t.Fatalf("NewCustodian() error = %v", err)
	}

	var blobs paperlock.BlobStore = blobstore.NewMemoryStore()
	if opts.blobs != nil {
		blobs = opts.blobs(blobs)
	}
	var auditStore paperlock.AuditStore = db
	if opts.auditStore != nil {
		auditStore = opts.auditStore(db)
	}

	var cipher paperlock.DocumentCipher = encryption.NewHybridCipher()
	if opts.cipher != nil {
		cipher = opts.cipher(cipher)
	}

	reg := metrics.NewRegistry()
	logger := paperlock.NewNopLogger()
	l := ledger.New(c, clock, logger)
	auditLog := audit.NewLog(auditStore, clock, testutil.NewPrefixedIDGenerator("log"), reg, logger)

	svc := paperlock.NewService(
		custodian,
		cipher,
		l,
		auditLog,
		db,
		blobs,
		workers.NewPool(2),
		reg,
		logger,
		clock,
		testutil.NewPrefixedIDGenerator("doc"),
		opts.fetchTimeout,
	)
	return &harness{svc: svc, clock: clock, db: db, ledger: l, metrics: reg}
}

func (h *harness) generate(t *testing.T, userID, pw string) *paperlock.KeyPair {
	t.Helper()
	kp, err := h.svc.GenerateKeys(context.Background(), userID, []byte(pw))
	if err != nil {
		t.Fatalf("GenerateKeys(%s) error = %v", userID, err)
	}
	return kp
}

func (h *harness) submit(t *testing.T, id string, plaintext []byte, unlock *time.Time) *paperlock.LedgerRecord {
	t.Helper()
	rec, err := h.svc.Submit(context.Background(), paperlock.SubmitRequest{
		DocumentID:  id,
		OwnerID:     "coe",
		RecipientID: "proctor1",
		Version:     1,
		Plaintext:   plaintext,
		UnlockTime:  unlock,
		Origin:      "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("Submit(%s) error = %v", id, err)
	}
	return rec
}

func (h *harness) release(id, pw string) (*paperlock.ReleaseResult, error) {
	return h.releaseWithContext(context.Background(), id, pw)
}

func (h *harness) releaseWithContext(ctx context.Context, id, pw string) (*paperlock.ReleaseResult, error) {
	return h.svc.Release(ctx, paperlock.ReleaseRequest{
		DocumentID:  id,
		RequesterID: "proctor1",
		Password:    []byte(pw),
		Origin:      "10.0.0.2",
	})
}

func (h *harness) actions(t *testing.T, id string) []paperlock.Action {
	t.Helper()
	entries, err := h.svc.AuditTrail(context.Background(), id)
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	out := make([]paperlock.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func equalActions(got, want []paperlock.Action) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestService_TimeLockedRelease(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	plaintext := []byte("%PDF-1.7 semester exam, paper 2")

	h.generate(t, "proctor1", password)
	start := h.clock.Now()
	unlock := start.Add(3600 * time.Second)
	rec := h.submit(t, "D1", plaintext, &unlock)

	if rec.Document.PlaintextHash != integrity.Hash(plaintext) {
		t.Errorf("registered hash = %s, want %s", rec.Document.PlaintextHash, integrity.Hash(plaintext))
	}

	_, err := h.release("D1", password)
	var tle *paperlock.TimeLockError
	if !errors.As(err, &tle) {
		t.Fatalf("Release() at T error = %v, want *TimeLockError", err)
	}

	entries, err := h.svc.AuditTrail(context.Background(), "D1")
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	last := entries[len(entries)-1]
	if last.Action != paperlock.ActionDecryptFailure || last.Details["reason"] != "time_lock" {
		t.Errorf("last audit entry = %s %v, want decrypt-failure time_lock", last.Action, last.Details)
	}
	if last.Details["unlock_time"] != unlock.UTC().Format(time.RFC3339) {
		t.Errorf("unlock_time detail = %v", last.Details["unlock_time"])
	}

	h.clock.Set(start.Add(3601 * time.Second))
	res, err := h.release("D1", password)
	if err != nil {
		t.Fatalf("Release() at T+3601s error = %v", err)
	}
	if !bytes.Equal(res.Plaintext, plaintext) {
		t.Errorf("Release() plaintext = %q, want %q", res.Plaintext, plaintext)
	}

	history, err := h.svc.History(context.Background(), "D1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Document.Status != paperlock.StatusRegistered || history[1].Document.Status != paperlock.StatusReleased {
		t.Errorf("history = %d records", len(history))
	}

	want := []paperlock.Action{
		paperlock.ActionUpload,
		paperlock.ActionEncrypt,
		paperlock.ActionRegister,
		paperlock.ActionDecryptAttempt,
		paperlock.ActionDecryptFailure,
		paperlock.ActionDecryptAttempt,
		paperlock.ActionDecryptSuccess,
	}
	if got := h.actions(t, "D1"); !equalActions(got, want) {
		t.Errorf("audit actions = %v, want %v", got, want)
	}

	if got := promtest.ToFloat64(h.metrics.ReleasesTotal.WithLabelValues("time_lock")); got != 1 {
		t.Errorf("time_lock releases = %v, want 1", got)
	}
	if got := promtest.ToFloat64(h.metrics.ReleasesTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("successful releases = %v, want 1", got)
	}
}

func TestService_WrongPassword(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	_, err := h.release("D1", "not-the-password")
	var ae *paperlock.AuthenticationError
	if !errors.As(err, &ae) {
		t.Fatalf("Release() error = %v, want *AuthenticationError", err)
	}

	entries, _ := h.svc.AuditTrail(context.Background(), "D1")
	last := entries[len(entries)-1]
	if last.Action != paperlock.ActionDecryptFailure || last.Details["reason"] != "authentication" {
		t.Errorf("last audit entry = %s %v", last.Action, last.Details)
	}

	doc, err := h.svc.Inspect(context.Background(), "D1", "proctor1", "10.0.0.2")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if doc.Status != paperlock.StatusUnlockable {
		t.Errorf("status after failed release = %s, want unlockable", doc.Status)
	}
}

func TestService_UnknownRequester(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)
	h.generate(t, "proctor2", password)
	h.submit(t, "D1", []byte("paper"), nil)

	_, err := h.svc.Release(context.Background(), paperlock.ReleaseRequest{
		DocumentID: "D1", RequesterID: "proctor2", Password: []byte(password),
	})
	var ae *paperlock.AuthenticationError
	if !errors.As(err, &ae) {
		t.Errorf("Release() by another user error = %v, want *AuthenticationError", err)
	}

	_, err = h.svc.Release(context.Background(), paperlock.ReleaseRequest{
		DocumentID: "D1", RequesterID: "nobody", Password: []byte(password),
	})
	var nf *paperlock.NotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("Release() by unknown user error = %v, want *NotFoundError", err)
	}
}

func TestService_AuditUnavailableFailsRelease(t *testing.T) {
	t.Parallel()
	var flaky *testutil.FlakyAuditStore
	h := newHarness(t, harnessOptions{
		auditStore: func(inner paperlock.AuditStore) paperlock.AuditStore {
			flaky = testutil.NewFlakyAuditStore(inner, -1)
			return flaky
		},
	})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	flaky.FailAfter = 0
	_, err := h.release("D1", password)
	if !errors.Is(err, testutil.ErrStoreUnavailable) {
		t.Fatalf("Release() error = %v, want ErrStoreUnavailable", err)
	}

	history, err := h.svc.History(context.Background(), "D1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 1 {
		t.Errorf("len(History()) = %d, want 1 (release must not commit)", len(history))
	}
	if got := promtest.ToFloat64(h.metrics.ReleasesTotal.WithLabelValues("audit_unavailable")); got != 1 {
		t.Errorf("audit_unavailable releases = %v, want 1", got)
	}
}

func TestService_AuditFailureOnSuccessWithholdsPlaintext(t *testing.T) {
	t.Parallel()
	var flaky *testutil.FlakyAuditStore
	h := newHarness(t, harnessOptions{
		auditStore: func(inner paperlock.AuditStore) paperlock.AuditStore {
			flaky = testutil.NewFlakyAuditStore(inner, -1)
			return flaky
		},
	})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	// upload, encrypt, register, decrypt-attempt
	flaky.FailAfter = 4
	res, err := h.release("D1", password)
	if err == nil || res != nil {
		t.Fatalf("Release() = %v, %v; want error and no result", res, err)
	}
}

func TestService_FetchTimeout(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{
		blobs: func(inner paperlock.BlobStore) paperlock.BlobStore {
			return &testutil.BlockingBlobStore{BlobStore: inner}
		},
		fetchTimeout: 50 * time.Millisecond,
	})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	_, err := h.release("D1", password)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Release() error = %v, want DeadlineExceeded", err)
	}

	entries, _ := h.svc.AuditTrail(context.Background(), "D1")
	if last := entries[len(entries)-1]; last.Details["reason"] != "timeout" {
		t.Errorf("failure reason = %v, want timeout", last.Details["reason"])
	}
	if got := promtest.CollectAndCount(h.metrics.BlobFetchDuration); got != 1 {
		t.Errorf("blob fetch series = %d, want 1", got)
	}
}

// slowCipher runs onDecrypt and then holds the private key for a while
// before decrypting, keeping a copy of what it read.
type slowCipher struct {
	paperlock.DocumentCipher
	onDecrypt func()
	delay     time.Duration

	mu   sync.Mutex
	seen []byte
}

func (c *slowCipher) DecryptDocument(sealed *paperlock.SealedDocument, priv []byte, expected integrity.Digest) ([]byte, error) {
	if c.onDecrypt != nil {
		c.onDecrypt()
	}
	time.Sleep(c.delay)
	c.mu.Lock()
	c.seen = append([]byte(nil), priv...)
	c.mu.Unlock()
	return c.DocumentCipher.DecryptDocument(sealed, priv, expected)
}

func TestService_ReleaseCancelledDuringDecrypt(t *testing.T) {
	t.Parallel()
	slow := &slowCipher{delay: 50 * time.Millisecond}
	h := newHarness(t, harnessOptions{
		cipher: func(inner paperlock.DocumentCipher) paperlock.DocumentCipher {
			slow.DocumentCipher = inner
			return slow
		},
	})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	slow.onDecrypt = cancel

	res, err := h.releaseWithContext(ctx, "D1", password)
	if !errors.Is(err, context.Canceled) || res != nil {
		t.Fatalf("Release() = %v, %v; want context.Canceled", res, err)
	}
	if strings.Contains(err.Error(), "recording") {
		t.Errorf("Release() error = %v, want no audit write failure", err)
	}

	slow.mu.Lock()
	seen := string(slow.seen)
	slow.mu.Unlock()
	if !strings.HasPrefix(seen, "AGE-SECRET-KEY-1") {
		t.Errorf("running decrypt saw private key %q, want an intact identity", seen)
	}

	want := []paperlock.Action{
		paperlock.ActionUpload,
		paperlock.ActionEncrypt,
		paperlock.ActionRegister,
		paperlock.ActionDecryptAttempt,
		paperlock.ActionDecryptFailure,
	}
	if got := h.actions(t, "D1"); !equalActions(got, want) {
		t.Fatalf("audit actions = %v, want %v", got, want)
	}
	entries, _ := h.svc.AuditTrail(context.Background(), "D1")
	if reason := entries[len(entries)-1].Details["reason"]; reason != "canceled" {
		t.Errorf("failure reason = %v, want canceled", reason)
	}

	history, _ := h.svc.History(context.Background(), "D1")
	if len(history) != 1 {
		t.Errorf("len(History()) = %d, want 1 (no release committed)", len(history))
	}
}

func TestService_ReleaseExpiredContextStillAudited(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()

	_, err := h.releaseWithContext(ctx, "D1", password)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Release() error = %v, want DeadlineExceeded", err)
	}
	if strings.Contains(err.Error(), "recording") {
		t.Errorf("Release() error = %v, want no audit write failure", err)
	}

	entries, err := h.svc.AuditTrail(context.Background(), "D1")
	if err != nil {
		t.Fatalf("AuditTrail() error = %v", err)
	}
	last := entries[len(entries)-1]
	if last.Action != paperlock.ActionDecryptFailure || last.Details["reason"] != "timeout" {
		t.Errorf("last audit entry = %s %v, want decrypt-failure timeout", last.Action, last.Details)
	}
	if got := promtest.ToFloat64(h.metrics.ReleasesTotal.WithLabelValues("timeout")); got != 1 {
		t.Errorf("timeout releases = %v, want 1", got)
	}
}

func TestService_InspectCancelledStillAudited(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.svc.Inspect(ctx, "D1", "auditor", "10.0.0.3"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Inspect() error = %v, want context.Canceled", err)
	}

	entries, _ := h.svc.AuditTrail(context.Background(), "D1")
	last := entries[len(entries)-1]
	if last.Action != paperlock.ActionView || last.Details["reason"] != "canceled" {
		t.Errorf("last audit entry = %s %v, want failed view with reason canceled", last.Action, last.Details)
	}
}

func TestService_CorruptedCiphertext(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{
		blobs: func(inner paperlock.BlobStore) paperlock.BlobStore {
			return &testutil.CorruptingBlobStore{BlobStore: inner}
		},
	})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", bytes.Repeat([]byte("question "), 100), nil)

	res, err := h.release("D1", password)
	var ie *paperlock.IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("Release() error = %v, want *IntegrityError", err)
	}
	if ie.DocumentID != "D1" {
		t.Errorf("IntegrityError.DocumentID = %q, want D1", ie.DocumentID)
	}
	if res != nil {
		t.Error("Release() returned a result for corrupted ciphertext")
	}
}

func TestService_RotationKeepsDocumentsReadable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	kp := h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	rotated, err := h.svc.RotatePassword(ctx, "proctor1", []byte(password), []byte("N3w-Passw0rd"))
	if err != nil {
		t.Fatalf("RotatePassword() error = %v", err)
	}
	if rotated.Version != kp.Version+1 || !bytes.Equal(rotated.PublicKey, kp.PublicKey) {
		t.Errorf("rotated = v%d %s, want v%d with same public key", rotated.Version, rotated.PublicKey, kp.Version+1)
	}

	var ae *paperlock.AuthenticationError
	if _, err := h.release("D1", password); !errors.As(err, &ae) {
		t.Errorf("Release() with old password error = %v, want *AuthenticationError", err)
	}
	res, err := h.release("D1", "N3w-Passw0rd")
	if err != nil {
		t.Fatalf("Release() with new password error = %v", err)
	}
	if string(res.Plaintext) != "paper" {
		t.Errorf("plaintext = %q", res.Plaintext)
	}

	if _, err := h.svc.RotatePassword(ctx, "proctor1", []byte("wrong"), []byte("x")); !errors.As(err, &ae) {
		t.Errorf("RotatePassword() with wrong password error = %v, want *AuthenticationError", err)
	}
}

func TestService_RegeneratedKeysKeepOldDocumentsReadable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	first := h.generate(t, "proctor1", password)
	h.submit(t, "OLD", []byte("old paper"), nil)

	second := h.generate(t, "proctor1", "second-password")
	if second.Version != first.Version+1 || bytes.Equal(second.PublicKey, first.PublicKey) {
		t.Fatalf("regenerated key = v%d, want v%d with a new public key", second.Version, first.Version+1)
	}
	h.submit(t, "NEW", []byte("new paper"), nil)

	if res, err := h.release("OLD", password); err != nil || string(res.Plaintext) != "old paper" {
		t.Errorf("Release(OLD) = %v", err)
	}
	if res, err := h.release("NEW", "second-password"); err != nil || string(res.Plaintext) != "new paper" {
		t.Errorf("Release(NEW) = %v", err)
	}
}

func TestService_DuplicateSubmit(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	_, err := h.svc.Submit(context.Background(), paperlock.SubmitRequest{
		DocumentID: "D1", OwnerID: "coe", RecipientID: "proctor1", Plaintext: []byte("other"),
	})
	var de *paperlock.DuplicateError
	if !errors.As(err, &de) {
		t.Fatalf("Submit() duplicate error = %v, want *DuplicateError", err)
	}

	history, _ := h.svc.History(context.Background(), "D1")
	if len(history) != 1 {
		t.Errorf("len(History()) = %d, want 1", len(history))
	}
	ok, err := h.svc.VerifyHash(context.Background(), "D1", integrity.Hash([]byte("paper")))
	if err != nil || !ok {
		t.Errorf("VerifyHash(original) = %v, %v", ok, err)
	}
}

func TestService_SubmitValidation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)

	tests := []struct {
		name string
		req  paperlock.SubmitRequest
		want any
	}{
		{name: "missing owner", req: paperlock.SubmitRequest{RecipientID: "proctor1"}, want: &paperlock.ValidationError{}},
		{name: "missing recipient", req: paperlock.SubmitRequest{OwnerID: "coe"}, want: &paperlock.ValidationError{}},
		{name: "unknown recipient", req: paperlock.SubmitRequest{OwnerID: "coe", RecipientID: "ghost"}, want: &paperlock.NotFoundError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Submit(context.Background(), tt.req)
			switch tt.want.(type) {
			case *paperlock.ValidationError:
				var ve *paperlock.ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("Submit() error = %v, want *ValidationError", err)
				}
			case *paperlock.NotFoundError:
				var nf *paperlock.NotFoundError
				if !errors.As(err, &nf) {
					t.Errorf("Submit() error = %v, want *NotFoundError", err)
				}
			}
		})
	}
}

func TestService_GeneratedDocumentID(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)

	rec := h.submit(t, "", []byte("paper"), nil)
	if rec.Document.ID != "doc-1" {
		t.Errorf("generated ID = %q, want doc-1", rec.Document.ID)
	}
}

func TestService_PasswordsAreWiped(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()

	pw := []byte(password)
	if _, err := h.svc.GenerateKeys(ctx, "proctor1", pw); err != nil {
		t.Fatalf("GenerateKeys() error = %v", err)
	}
	if !bytes.Equal(pw, make([]byte, len(pw))) {
		t.Error("GenerateKeys() left the password in the caller's buffer")
	}

	h.submit(t, "D1", []byte("paper"), nil)
	pw = []byte(password)
	if _, err := h.svc.Release(ctx, paperlock.ReleaseRequest{DocumentID: "D1", RequesterID: "proctor1", Password: pw}); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if !bytes.Equal(pw, make([]byte, len(pw))) {
		t.Error("Release() left the password in the caller's buffer")
	}
}

func TestService_ConcurrentRelease(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	const n = 4
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.release("D1", password)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("concurrent Release() error = %v", err)
		}
	}

	history, _ := h.svc.History(context.Background(), "D1")
	if len(history) != 2 {
		t.Errorf("len(History()) = %d, want 2", len(history))
	}
}

func TestService_ArchiveAndInspect(t *testing.T) {
	t.Parallel()
	h := newHarness(t, harnessOptions{})
	ctx := context.Background()
	h.generate(t, "proctor1", password)
	h.submit(t, "D1", []byte("paper"), nil)

	var ste *paperlock.StateTransitionError
	if _, err := h.svc.Archive(ctx, "D1", "admin", "console"); !errors.As(err, &ste) {
		t.Fatalf("Archive() before release error = %v, want *StateTransitionError", err)
	}
	if _, err := h.release("D1", password); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := h.svc.Archive(ctx, "D1", "admin", "console"); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}

	doc, err := h.svc.Inspect(ctx, "D1", "admin", "console")
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if doc.Status != paperlock.StatusArchived {
		t.Errorf("status = %s, want archived", doc.Status)
	}
	if _, err := h.release("D1", password); !errors.As(err, &ste) {
		t.Errorf("Release() after archive error = %v, want *StateTransitionError", err)
	}

	var nf *paperlock.NotFoundError
	if _, err := h.svc.Inspect(ctx, "missing", "admin", "console"); !errors.As(err, &nf) {
		t.Errorf("Inspect(missing) error = %v, want *NotFoundError", err)
	}
}
