package identity

import (
	"errors"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrMnemonicRequired = errors.New("mnemonic is required")
	ErrInvalidRootKey   = errors.New("invalid root extended private key")
	ErrInvalidPath      = errors.New("invalid derivation path")
	ErrIdentityNotFound = errors.New("identity not found in set")
	ErrIdentityInit     = errors.New("identity initialization failed")
)

const (
	// bapPurpose is the hardened purpose index used by the Bitcoin Attestation Protocol.
	bapPurpose     = 424150
	rootPathFormat = "m/%d'/0'/%d'"
	signingSuffix  = "/0'/1'"
)

var netParams = &chaincfg.MainNetParams

// IdentitySet is a root key plus the identities derived from it.
type IdentitySet struct {
	root    *hdkeychain.ExtendedKey
	records []record
}

type record struct {
	key         string
	rootPath    string
	currentPath string
	name        string
}

// Identity is a handle to one identity within a set.
type Identity struct {
	set *IdentitySet
	rec record
}
