package identity

import (
	"errors"
	"strings"
	"testing"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestGenerateMnemonicIsValidTwelveWords(t *testing.T) {
	m, err := GenerateMnemonic()
	if err != nil {
		t.Fatalf("generate mnemonic failed: %v", err)
	}
	if got := len(strings.Fields(m)); got != 12 {
		t.Fatalf("expected 12 words, got %d", got)
	}
	if !ValidateMnemonic(m) {
		t.Fatal("generated mnemonic must validate")
	}
}

func TestMnemonicToSeedRejectsInvalid(t *testing.T) {
	if _, err := MnemonicToSeed(""); !errors.Is(err, ErrMnemonicRequired) {
		t.Fatalf("expected ErrMnemonicRequired, got %v", err)
	}
	if _, err := MnemonicToSeed("abandon abandon abandon"); !errors.Is(err, ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}
}

func TestDeriveRootKeyDeterministic(t *testing.T) {
	seed, err := MnemonicToSeed(testMnemonic)
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	a, err := DeriveRootKey(seed)
	if err != nil {
		t.Fatalf("derive root 1 failed: %v", err)
	}
	b, err := DeriveRootKey(seed)
	if err != nil {
		t.Fatalf("derive root 2 failed: %v", err)
	}
	if a != b {
		t.Fatal("root key must be deterministic")
	}
	if !strings.HasPrefix(a, "xprv") {
		t.Fatalf("expected mainnet xprv, got %q", a[:8])
	}
}

func TestParseRootKeyRejectsPublicAndGarbage(t *testing.T) {
	if _, err := parseRootKey("..."); !errors.Is(err, ErrInvalidRootKey) {
		t.Fatalf("expected ErrInvalidRootKey, got %v", err)
	}
	seed, _ := MnemonicToSeed(testMnemonic)
	xprv, _ := DeriveRootKey(seed)
	root, err := parseRootKey(xprv)
	if err != nil {
		t.Fatalf("parse root failed: %v", err)
	}
	pub, err := root.Neuter()
	if err != nil {
		t.Fatalf("neuter failed: %v", err)
	}
	if _, err := parseRootKey(pub.String()); !errors.Is(err, ErrInvalidRootKey) {
		t.Fatalf("expected xpub to be rejected, got %v", err)
	}
}
