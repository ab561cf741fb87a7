package crypto

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

func newTestWIF(t *testing.T) *btcutil.WIF {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("new private key failed: %v", err)
	}
	wif, err := btcutil.NewWIF(priv, &chaincfg.MainNetParams, true)
	if err != nil {
		t.Fatalf("new wif failed: %v", err)
	}
	return wif
}

func TestSignVerifyRoundTrip(t *testing.T) {
	wif := newTestWIF(t)
	now := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	body := []byte(`{"bapId":"abc"}`)
	token, err := SignRequest(wif.String(), "/api/backup", body, now)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if strings.Count(token, "|") != 4 {
		t.Fatalf("unexpected token shape: %q", token)
	}
	got, err := VerifyRequest(token, "/api/backup", body, now.Add(time.Minute), 0)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	want, err := AddressFromPublicKey(wif.SerializePubKey())
	if err != nil {
		t.Fatalf("address failed: %v", err)
	}
	if got.Address != want {
		t.Fatalf("address mismatch: %q vs %q", got.Address, want)
	}
	if !got.Timestamp.Equal(now) {
		t.Fatalf("unexpected timestamp: %v", got.Timestamp)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	wif := newTestWIF(t)
	now := time.Now()
	body := []byte(`{"a":1}`)
	token, err := SignRequest(wif.String(), "/api/backup", body, now)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if _, err := VerifyRequest(token, "/api/backup", []byte(`{"a":2}`), now, time.Minute); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for body change, got %v", err)
	}
	if _, err := VerifyRequest(token, "/api/other", body, now, time.Minute); !errors.Is(err, ErrPathMismatch) {
		t.Fatalf("expected ErrPathMismatch, got %v", err)
	}
	if _, err := VerifyRequest(token, "/api/backup", body, now.Add(time.Hour), time.Minute); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	other := newTestWIF(t)
	otherToken, _ := SignRequest(other.String(), "/api/backup", body, now)
	parts := strings.Split(token, "|")
	forged := strings.Join(append(parts[:4], strings.Split(otherToken, "|")[4]), "|")
	if _, err := VerifyRequest(forged, "/api/backup", body, now, time.Minute); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature for swapped signature, got %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"a|b|c",
		"02ab|brc77|2026-01-01T00:00:00Z|/p|sig",
		"zz|bsm|2026-01-01T00:00:00Z|/p|sig",
		"02ab|bsm|yesterday|/p|sig",
	}
	now, _ := time.Parse(time.RFC3339, "2026-01-01T00:00:00Z")
	for _, tc := range cases {
		if _, err := VerifyRequest(tc, "/p", nil, now, time.Minute); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("token %q: expected ErrMalformedToken, got %v", tc, err)
		}
	}
}

func TestSignRequestRejectsBadWIF(t *testing.T) {
	if _, err := SignRequest("not-a-wif", "/p", nil, time.Now()); !errors.Is(err, ErrInvalidWIF) {
		t.Fatalf("expected ErrInvalidWIF, got %v", err)
	}
}
