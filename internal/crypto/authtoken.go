package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// AuthHeader carries the signed request token.
const AuthHeader = "X-Auth-Token"

const (
	schemeBSM          = "bsm"
	signedMessageMagic = "Bitcoin Signed Message:\n"
	DefaultMaxSkew     = 10 * time.Minute
)

var (
	ErrMalformedToken = errors.New("malformed auth token")
	ErrTokenExpired   = errors.New("auth token timestamp outside allowed window")
	ErrPathMismatch   = errors.New("auth token request path mismatch")
	ErrBadSignature   = errors.New("auth token signature invalid")
	ErrInvalidWIF     = errors.New("invalid signing key")
)

type VerifiedToken struct {
	PublicKey string
	Address   string
	Timestamp time.Time
}

// SignRequest builds "<pubkey>|bsm|<timestamp>|<path>|<signature>" where the
// signature covers path, timestamp and (when present) the body hash.
func SignRequest(wif, requestPath string, body []byte, now time.Time) (string, error) {
	key, err := btcutil.DecodeWIF(strings.TrimSpace(wif))
	if err != nil {
		return "", ErrInvalidWIF
	}
	timestamp := now.UTC().Format(time.RFC3339Nano)
	hash := signedMessageHash(requestMessage(requestPath, timestamp, body))
	sig := ecdsa.SignCompact(key.PrivKey, hash, key.CompressPubKey)
	pub := hex.EncodeToString(key.SerializePubKey())
	return strings.Join([]string{
		pub,
		schemeBSM,
		timestamp,
		requestPath,
		base64.StdEncoding.EncodeToString(sig),
	}, "|"), nil
}

func VerifyRequest(token, requestPath string, body []byte, now time.Time, maxSkew time.Duration) (VerifiedToken, error) {
	parts := strings.Split(strings.TrimSpace(token), "|")
	if len(parts) != 5 || parts[1] != schemeBSM {
		return VerifiedToken{}, ErrMalformedToken
	}
	pubHex, timestamp, tokenPath, sigB64 := parts[0], parts[2], parts[3], parts[4]

	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return VerifiedToken{}, ErrMalformedToken
	}
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	if d := now.Sub(ts); d > maxSkew || d < -maxSkew {
		return VerifiedToken{}, ErrTokenExpired
	}
	if tokenPath != requestPath {
		return VerifiedToken{}, ErrPathMismatch
	}

	pubBytes, err := hex.DecodeString(pubHex)
	if err != nil {
		return VerifiedToken{}, ErrMalformedToken
	}
	claimed, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return VerifiedToken{}, ErrMalformedToken
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return VerifiedToken{}, ErrMalformedToken
	}
	recovered, _, err := ecdsa.RecoverCompact(sig, signedMessageHash(requestMessage(tokenPath, timestamp, body)))
	if err != nil || !recovered.IsEqual(claimed) {
		return VerifiedToken{}, ErrBadSignature
	}
	address, err := AddressFromPublicKey(pubBytes)
	if err != nil {
		return VerifiedToken{}, err
	}
	return VerifiedToken{PublicKey: pubHex, Address: address, Timestamp: ts}, nil
}

// AddressFromPublicKey returns the mainnet P2PKH address for a serialized public key.
func AddressFromPublicKey(pub []byte) (string, error) {
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub), &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("derive address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

func requestMessage(requestPath, timestamp string, body []byte) string {
	msg := requestPath + "|" + timestamp
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		msg += "|" + hex.EncodeToString(sum[:])
	}
	return msg
}

func signedMessageHash(message string) []byte {
	var buf bytes.Buffer
	_ = wire.WriteVarString(&buf, 0, signedMessageMagic)
	_ = wire.WriteVarString(&buf, 0, message)
	return chainhash.DoubleHashB(buf.Bytes())
}
