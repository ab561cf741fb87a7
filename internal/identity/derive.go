package identity

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/mr-tron/base58/base58"
)

func defaultRootPath(index int) string {
	return fmt.Sprintf(rootPathFormat, bapPurpose, index)
}

func defaultSigningPath(rootPath string) string {
	return rootPath + signingSuffix
}

func parsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] != "m" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'") || strings.HasSuffix(part, "h")
		part = strings.TrimRight(part, "'h")
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil || n >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		idx := uint32(n)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		out = append(out, idx)
	}
	return out, nil
}

func deriveChild(root *hdkeychain.ExtendedKey, path string) (*hdkeychain.ExtendedKey, error) {
	indices, err := parsePath(path)
	if err != nil {
		return nil, err
	}
	key := root
	for _, idx := range indices {
		key, err = key.Derive(idx)
		if err != nil {
			return nil, err
		}
	}
	return key, nil
}

func addressOf(key *hdkeychain.ExtendedKey) (string, error) {
	addr, err := key.Address(netParams)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// identityKeyFromAddress follows BAP: base58(ripemd160(sha256(rootAddress))).
func identityKeyFromAddress(rootAddress string) string {
	return base58.Encode(btcutil.Hash160([]byte(rootAddress)))
}
