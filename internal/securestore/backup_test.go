package securestore

import (
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

func sampleBackup() models.MasterBackup {
	return models.MasterBackup{
		XPrv:      "xprv9s21ZrQH143K3GJpoapnV8SFfukcVBSfeCficPSGfubmSFDxo1kuHnLisriDvSnRRuL2Qrg5ggqHKNVpxR86QEC8w35uxmGoggxtQTPvfUu",
		IDs:       []models.IdentityRecord{{ID: "3SyWUZXvhidNcEHbAC3HkBnKoD2Q", RootPath: "m/424150'/0'/0'"}},
		Mnemonic:  "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about",
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Label:     "laptop",
	}
}

func TestBackupRoundTrip(t *testing.T) {
	in := sampleBackup()
	enc, err := EncryptBackup(in, "abcdefgh")
	if err != nil {
		t.Fatalf("encrypt backup failed: %v", err)
	}
	out, err := DecryptBackup(enc, "abcdefgh")
	if err != nil {
		t.Fatalf("decrypt backup failed: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n in=%#v\nout=%#v", in, out)
	}
}

func TestBackupCiphertextHidesSecrets(t *testing.T) {
	in := sampleBackup()
	enc, err := NewBackupCipher().Encrypt(in, "abcdefgh")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	s := string(enc)
	if strings.Contains(s, in.XPrv) || strings.Contains(s, "abandon") {
		t.Fatal("ciphertext must not contain plaintext secrets")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || !strings.HasPrefix(string(raw), filePrefix) {
		t.Fatal("ciphertext must be a sealed envelope")
	}
}

func TestWrongPasswordIndistinguishableFromCorruption(t *testing.T) {
	enc, err := EncryptBackup(sampleBackup(), "abcdefgh")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	_, wrongErr := DecryptBackup(enc, "abcdefgX")
	if !errors.Is(wrongErr, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for wrong password, got %v", wrongErr)
	}

	raw, _ := base64.StdEncoding.DecodeString(string(enc))
	raw[len(raw)-3] ^= 0x01
	_, corruptErr := DecryptBackup(models.EncryptedBackup(base64.StdEncoding.EncodeToString(raw)), "abcdefgh")
	if !errors.Is(corruptErr, ErrDecryptFailed) {
		t.Fatalf("expected ErrDecryptFailed for corruption, got %v", corruptErr)
	}
	_, garbageErr := DecryptBackup("not base64 !!", "abcdefgh")
	if wrongErr.Error() != corruptErr.Error() || wrongErr.Error() != garbageErr.Error() {
		t.Fatal("failure messages must be identical")
	}
}

func TestDecryptRejectsMemberBackup(t *testing.T) {
	member := models.MasterBackup{IDs: []models.IdentityRecord{{ID: "abc"}}}
	enc, err := EncryptBackup(member, "abcdefgh")
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := DecryptBackup(enc, "abcdefgh"); !errors.Is(err, ErrNotMasterBackup) {
		t.Fatalf("expected ErrNotMasterBackup, got %v", err)
	}
}

func TestMnemonicRoundTrip(t *testing.T) {
	enc, err := EncryptMnemonic("one two three", "abcdefgh")
	if err != nil {
		t.Fatalf("encrypt mnemonic failed: %v", err)
	}
	got, err := DecryptMnemonic(enc, "abcdefgh")
	if err != nil {
		t.Fatalf("decrypt mnemonic failed: %v", err)
	}
	if got != "one two three" {
		t.Fatalf("unexpected mnemonic: %q", got)
	}
}

func TestFingerprintStable(t *testing.T) {
	if Fingerprint("abc") != Fingerprint("abc") || Fingerprint("abc") == Fingerprint("abd") {
		t.Fatal("fingerprint must be stable and content-sensitive")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "slot.json")
	if err := WriteFileAtomic(path, []byte("one")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("two")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err := ReadFileIfExists(path)
	if err != nil || string(got) != "two" {
		t.Fatalf("unexpected content %q err=%v", got, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}
	missing, err := ReadFileIfExists(filepath.Join(t.TempDir(), "nope"))
	if err != nil || missing != nil {
		t.Fatalf("expected nil,nil for missing file, got %v %v", missing, err)
	}
}
