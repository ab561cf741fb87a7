package identity

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/tyler-smith/go-bip39"
)

// GenerateMnemonic returns a fresh 12-word BIP39 mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(strings.TrimSpace(mnemonic))
}

// MnemonicToSeed keeps word order exactly as given; only surrounding space is trimmed.
func MnemonicToSeed(mnemonic string) ([]byte, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" {
		return nil, ErrMnemonicRequired
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, ErrInvalidMnemonic
	}
	return seed, nil
}

// DeriveRootKey returns the serialized BIP32 master private key (xprv...).
func DeriveRootKey(seed []byte) (string, error) {
	master, err := hdkeychain.NewMaster(seed, netParams)
	if err != nil {
		return "", err
	}
	return master.String(), nil
}

func parseRootKey(xprv string) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(xprv))
	if err != nil {
		return nil, ErrInvalidRootKey
	}
	if !key.IsPrivate() {
		return nil, ErrInvalidRootKey
	}
	return key, nil
}
