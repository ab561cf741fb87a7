package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/identity"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/ratelimiter"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/securestore"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

const existingPassword = "existing-password"

// conflictFlow submits a fresh identity while the OAuth account is bound to a
// second, real identity whose cloud backup is encrypted with existingPassword.
func conflictFlow(t *testing.T, h *harness, opts ...FlowOption) (*Flow, *ConflictDialog, models.MasterBackup) {
	t.Helper()
	ctx := context.Background()
	existing, err := identity.NewLibrary().Generate(time.Now())
	if err != nil {
		t.Fatalf("generate existing identity: %v", err)
	}
	enc, err := securestore.EncryptBackup(existing, existingPassword)
	if err != nil {
		t.Fatalf("encrypt existing backup: %v", err)
	}
	h.backend.oauthBackup = models.OAuthBackup{BapID: existing.FirstIdentityKey(), EncryptedBackup: enc}
	h.backend.storeErrs = []error{conflictErr{existing: existing.FirstIdentityKey()}}
	_ = h.slots.SavePendingOAuth(ctx, models.PendingOAuthSignupInfo{Provider: "github", ProviderAccountID: "42"})

	f := h.readyFlow(t, opts...)
	if _, err := f.Submit(ctx, "abcdefgh"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	dialog := f.Conflict()
	if dialog == nil {
		t.Fatalf("expected conflict dialog, state %T", f.State())
	}
	return f, dialog, existing
}

func TestTransferWithWrongPasswordKeepsDialogOpen(t *testing.T) {
	h := newHarness(t)
	f, dialog, _ := conflictFlow(t, h)

	err := dialog.Transfer(context.Background(), "not-the-password")
	if !errors.Is(err, domain.ErrTransferPassword) {
		t.Fatalf("expected ErrTransferPassword, got %v", err)
	}
	if dialog.LastError() == "" {
		t.Fatal("expected an inline dialog error")
	}
	if dialog.Resolved() {
		t.Fatal("dialog must stay open")
	}
	if _, ok := f.State().(domain.Conflict); !ok {
		t.Fatalf("wrong password must not leave the conflict state, got %T", f.State())
	}
	for _, c := range h.backend.Calls() {
		if c == "transfer" {
			t.Fatal("no transfer may be sent without unlocking the existing backup")
		}
	}
	if h.durable.Len() == 0 {
		t.Fatal("a failed transfer must never fall back to switch")
	}
}

func TestTransferSignsAsExistingIdentity(t *testing.T) {
	h := newHarness(t)
	transferred := false
	f, dialog, existing := conflictFlow(t, h, WithConflictCallbacks(DialogCallbacks{
		OnTransferComplete: func() { transferred = true },
	}))
	ctx := context.Background()

	if err := dialog.Transfer(ctx, existingPassword); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if !transferred {
		t.Fatal("transfer callback not invoked")
	}
	if _, ok := f.State().(domain.Success); !ok {
		t.Fatalf("expected success after transfer, got %T", f.State())
	}

	wantSigner, err := identity.NewLibrary().SigningMaterial(existing, existing.FirstIdentityKey())
	if err != nil {
		t.Fatalf("existing signer: %v", err)
	}
	if h.backend.transferSigner.Address != wantSigner.Address {
		t.Fatal("transfer must be signed by the existing identity")
	}
	req := h.backend.transferReq
	if req.FromBapID != existing.FirstIdentityKey() || req.ToBapID != dialog.State().CurrentIdentityKey {
		t.Fatalf("unexpected transfer request %+v", req)
	}
	if req.EncryptedBackup == "" {
		t.Fatal("transfer must carry the current encrypted backup")
	}
	if calls := h.backend.Calls(); calls[len(calls)-1] != "backup" {
		t.Fatalf("backup store must be retried after the transfer, calls %v", calls)
	}
	if _, ok, _ := h.slots.LoadPendingOAuth(ctx); ok {
		t.Fatal("pending info must be cleared after transfer")
	}
	if err := dialog.Switch(ctx); !errors.Is(err, domain.ErrDialogClosed) {
		t.Fatalf("resolved dialog must reject further actions, got %v", err)
	}
}

func TestTransferRejectedByBackendKeepsConflict(t *testing.T) {
	h := newHarness(t)
	h.backend.transferErr = statusErr{status: 403, msg: "Signature does not match existing identity"}
	f, dialog, _ := conflictFlow(t, h)

	if err := dialog.Transfer(context.Background(), existingPassword); err == nil {
		t.Fatal("expected transfer failure")
	}
	if dialog.LastError() != "Signature does not match existing identity" {
		t.Fatalf("unexpected dialog error %q", dialog.LastError())
	}
	if _, ok := f.State().(domain.Conflict); !ok {
		t.Fatalf("expected conflict state, got %T", f.State())
	}
}

func TestTransferAttemptsAreRateLimited(t *testing.T) {
	h := newHarness(t)
	h.deps.TransferLimiter = ratelimiter.New(time.Hour, 1, time.Hour)
	_, dialog, _ := conflictFlow(t, h)
	ctx := context.Background()

	if err := dialog.Transfer(ctx, "wrong-one"); !errors.Is(err, domain.ErrTransferPassword) {
		t.Fatalf("expected ErrTransferPassword, got %v", err)
	}
	if err := dialog.Transfer(ctx, existingPassword); !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestConflictDialogRejectsSameIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := NewConflictDialog(h.deps, models.ConflictState{
		Provider:            "github",
		ExistingIdentityKey: "abc",
		CurrentIdentityKey:  "abc",
	}, models.MasterBackup{}, DialogCallbacks{})
	if !errors.Is(err, domain.ErrInvalidConflict) {
		t.Fatalf("expected ErrInvalidConflict, got %v", err)
	}
}

func TestConflictWithEmptyExistingKeyIsDataError(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.slots.SavePendingOAuth(ctx, models.PendingOAuthSignupInfo{Provider: "github", ProviderAccountID: "42"})
	h.backend.storeErrs = []error{conflictErr{existing: ""}}
	f := h.readyFlow(t)

	if _, err := f.Submit(ctx, "abcdefgh"); !errors.Is(err, domain.ErrInvalidConflict) {
		t.Fatalf("expected ErrInvalidConflict, got %v", err)
	}
	if _, ok := f.State().(domain.Success); ok {
		t.Fatal("a conflict must never resolve to success")
	}
}
