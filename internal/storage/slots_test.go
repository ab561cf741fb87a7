package storage

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

func newTestSlots(t *testing.T) (*Slots, *FileTier, *MemoryTier) {
	t.Helper()
	durable := NewFileTier(filepath.Join(t.TempDir(), "durable.json"))
	ephemeral := NewMemoryTier(0)
	return NewSlots(Tiers{Durable: durable, Ephemeral: ephemeral}), durable, ephemeral
}

func TestSaveEncryptedBackupRejectsPlaintext(t *testing.T) {
	slots, _, _ := newTestSlots(t)
	ctx := context.Background()
	plain := `{"xprv":"xprv9s21","mnemonic":"one two","ids":[]}`
	if err := slots.SaveEncryptedBackup(ctx, models.EncryptedBackup(plain)); !errors.Is(err, ErrPlaintextRejected) {
		t.Fatalf("expected ErrPlaintextRejected, got %v", err)
	}
	if err := slots.SaveEncryptedBackup(ctx, ""); !errors.Is(err, ErrPlaintextRejected) {
		t.Fatalf("expected ErrPlaintextRejected for empty value, got %v", err)
	}
	if err := slots.SaveEncryptedBackup(ctx, "QkFQRU5DMQp7fQ=="); err != nil {
		t.Fatalf("save ciphertext failed: %v", err)
	}
	got, ok, err := slots.LoadEncryptedBackup(ctx)
	if err != nil || !ok || got != "QkFQRU5DMQp7fQ==" {
		t.Fatalf("unexpected load: %q ok=%v err=%v", got, ok, err)
	}
}

func TestSessionBackupLivesInEphemeralTierOnly(t *testing.T) {
	slots, durable, ephemeral := newTestSlots(t)
	ctx := context.Background()
	backup := models.MasterBackup{XPrv: "xprv-secret", Mnemonic: "word1 word2", CreatedAt: time.Now().UTC()}
	if err := slots.SaveSessionBackup(ctx, backup); err != nil {
		t.Fatalf("save session backup failed: %v", err)
	}
	if _, ok, _ := durable.Get(ctx, KeySessionBackup); ok {
		t.Fatal("session backup must never reach the durable tier")
	}
	raw, ok, _ := ephemeral.Get(ctx, KeySessionBackup)
	if !ok || !strings.Contains(raw, "xprv-secret") {
		t.Fatal("session backup must be in the ephemeral tier")
	}
	got, ok, err := slots.LoadSessionBackup(ctx)
	if err != nil || !ok || got.XPrv != backup.XPrv || got.Mnemonic != backup.Mnemonic {
		t.Fatalf("unexpected session backup: %#v ok=%v err=%v", got, ok, err)
	}
}

func TestPendingOAuthLifecycle(t *testing.T) {
	slots, _, _ := newTestSlots(t)
	ctx := context.Background()
	if _, ok, err := slots.LoadPendingOAuth(ctx); ok || err != nil {
		t.Fatalf("expected empty pending info, ok=%v err=%v", ok, err)
	}
	info := models.PendingOAuthSignupInfo{Provider: "google", ProviderAccountID: "123", Email: "a@b.c"}
	if err := slots.SavePendingOAuth(ctx, info); err != nil {
		t.Fatalf("save pending failed: %v", err)
	}
	got, ok, err := slots.LoadPendingOAuth(ctx)
	if err != nil || !ok || got != info {
		t.Fatalf("unexpected pending info: %#v", got)
	}
	if err := slots.ClearPendingOAuth(ctx); err != nil {
		t.Fatalf("clear pending failed: %v", err)
	}
	if _, ok, _ := slots.LoadPendingOAuth(ctx); ok {
		t.Fatal("pending info must be cleared")
	}
}

func TestClearAllEmptiesBothTiers(t *testing.T) {
	slots, durable, ephemeral := newTestSlots(t)
	ctx := context.Background()
	_ = slots.SaveEncryptedBackup(ctx, "QkFQRU5DMQp7fQ==")
	_ = slots.SaveSessionBackup(ctx, models.MasterBackup{XPrv: "x", Mnemonic: "m"})
	_ = slots.SavePendingOAuth(ctx, models.PendingOAuthSignupInfo{Provider: "github", ProviderAccountID: "1"})
	_ = slots.SaveSession(ctx, models.Session{Token: "t"})

	if err := slots.ClearAll(ctx); err != nil {
		t.Fatalf("clear all failed: %v", err)
	}
	if _, ok, _ := durable.Get(ctx, KeyEncryptedBackup); ok {
		t.Fatal("durable tier must be empty")
	}
	if ephemeral.Len() != 0 {
		t.Fatalf("ephemeral tier must be empty, has %d items", ephemeral.Len())
	}
}

func TestCorruptedSlotReported(t *testing.T) {
	slots, _, ephemeral := newTestSlots(t)
	ctx := context.Background()
	_ = ephemeral.Set(ctx, KeyPendingOAuth, "{not json")
	if _, _, err := slots.LoadPendingOAuth(ctx); !errors.Is(err, ErrSlotCorrupted) {
		t.Fatalf("expected ErrSlotCorrupted, got %v", err)
	}
}
