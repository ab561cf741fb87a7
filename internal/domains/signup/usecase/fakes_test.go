package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/identity"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/securestore"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/storage"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

type conflictErr struct {
	existing string
}

func (e conflictErr) Error() string               { return "conflict" }
func (e conflictErr) ExistingIdentityKey() string { return e.existing }

type statusErr struct {
	status int
	msg    string
}

func (e statusErr) Error() string   { return e.msg }
func (e statusErr) HTTPStatus() int { return e.status }

type fakeBackend struct {
	mu sync.Mutex

	calls          []string
	createErr      error
	signInErr      error
	storeErrs      []error
	oauthBackup    models.OAuthBackup
	transferErr    error
	transferSigner models.SigningMaterial
	transferReq    models.TransferRequest
	createReq      models.CreateUserRequest
	block          chan struct{}
}

func (b *fakeBackend) record(name string) {
	b.mu.Lock()
	b.calls = append(b.calls, name)
	b.mu.Unlock()
}

func (b *fakeBackend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) CreateUserFromBackup(ctx context.Context, _ models.SigningMaterial, req models.CreateUserRequest) error {
	b.record("create-from-backup")
	if b.block != nil {
		select {
		case <-b.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.mu.Lock()
	b.createReq = req
	b.mu.Unlock()
	return b.createErr
}

func (b *fakeBackend) SignIn(_ context.Context, signer models.SigningMaterial) (models.Session, error) {
	b.record("signin")
	if b.signInErr != nil {
		return models.Session{}, b.signInErr
	}
	return models.Session{Token: "session-token", IdentityKey: signer.IdentityKey}, nil
}

func (b *fakeBackend) StoreBackup(_ context.Context, _ models.SigningMaterial, _ models.StoreBackupRequest) error {
	b.record("backup")
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.storeErrs) == 0 {
		return nil
	}
	err := b.storeErrs[0]
	b.storeErrs = b.storeErrs[1:]
	return err
}

func (b *fakeBackend) FetchOAuthBackup(_ context.Context, _ models.SigningMaterial, _, _ string) (models.OAuthBackup, error) {
	b.record("oauth-backup")
	return b.oauthBackup, nil
}

func (b *fakeBackend) TransferOAuthLink(_ context.Context, signer models.SigningMaterial, req models.TransferRequest) error {
	b.record("transfer")
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transferSigner = signer
	b.transferReq = req
	return b.transferErr
}

type countingCrypto struct {
	securestore.BackupCipher
	mu    sync.Mutex
	calls int
}

func (c *countingCrypto) Encrypt(backup models.MasterBackup, password string) (models.EncryptedBackup, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.BackupCipher.Encrypt(backup, password)
}

func (c *countingCrypto) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type harness struct {
	durable   *storage.MemoryTier
	ephemeral *storage.MemoryTier
	slots     *storage.Slots
	backend   *fakeBackend
	crypto    *countingCrypto
	deps      Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	durable := storage.NewMemoryTier(0)
	ephemeral := storage.NewMemoryTier(time.Hour)
	slots := storage.NewSlots(storage.Tiers{Durable: durable, Ephemeral: ephemeral})
	backend := &fakeBackend{}
	crypto := &countingCrypto{}
	return &harness{
		durable:   durable,
		ephemeral: ephemeral,
		slots:     slots,
		backend:   backend,
		crypto:    crypto,
		deps: Deps{
			Identity: identity.NewLibrary(),
			Crypto:   crypto,
			Store:    slots,
			Backend:  backend,
			Now:      func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		},
	}
}

func (h *harness) newFlow(t *testing.T, opts ...FlowOption) *Flow {
	t.Helper()
	f, err := NewFlow(h.deps, opts...)
	if err != nil {
		t.Fatalf("new flow: %v", err)
	}
	return f
}

func (h *harness) durableValue(t *testing.T) (string, bool) {
	t.Helper()
	v, ok, err := h.durable.Get(context.Background(), storage.KeyEncryptedBackup)
	if err != nil {
		t.Fatalf("durable get: %v", err)
	}
	return v, ok
}

// readyFlow drives a generated identity to the submittable confirm step.
func (h *harness) readyFlow(t *testing.T, opts ...FlowOption) *Flow {
	t.Helper()
	f := h.newFlow(t, opts...)
	if err := f.Generate(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := f.SubmitPassword("abcdefgh"); err != nil {
		t.Fatalf("password: %v", err)
	}
	if _, err := f.DownloadBackup(); err != nil {
		t.Fatalf("download: %v", err)
	}
	return f
}

func equalCalls(got []string, want ...string) bool {
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
