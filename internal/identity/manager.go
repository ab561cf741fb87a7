package identity

import (
	"encoding/hex"
	"strings"

	"github.com/btcsuite/btcd/btcutil"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

// NewIdentitySet constructs an empty set over a root extended private key.
func NewIdentitySet(xprv string) (*IdentitySet, error) {
	root, err := parseRootKey(xprv)
	if err != nil {
		return nil, err
	}
	return &IdentitySet{root: root}, nil
}

// ImportIdentitySet restores a set from exported records. Record ids are taken
// as authoritative; missing paths fall back to the default for the position.
func ImportIdentitySet(xprv string, records []models.IdentityRecord) (*IdentitySet, error) {
	set, err := NewIdentitySet(xprv)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		rootPath := strings.TrimSpace(rec.RootPath)
		if rootPath == "" {
			rootPath = defaultRootPath(i)
		}
		currentPath := strings.TrimSpace(rec.CurrentPath)
		if currentPath == "" {
			currentPath = defaultSigningPath(rootPath)
		}
		set.records = append(set.records, record{
			key:         strings.TrimSpace(rec.ID),
			rootPath:    rootPath,
			currentPath: currentPath,
			name:        rec.Name,
		})
	}
	return set, nil
}

// NewIdentity derives the next identity in the set.
func (s *IdentitySet) NewIdentity() (*Identity, error) {
	rootPath := defaultRootPath(len(s.records))
	node, err := deriveChild(s.root, rootPath)
	if err != nil {
		return nil, err
	}
	rootAddress, err := addressOf(node)
	if err != nil {
		return nil, err
	}
	rec := record{
		key:         identityKeyFromAddress(rootAddress),
		rootPath:    rootPath,
		currentPath: defaultSigningPath(rootPath),
	}
	s.records = append(s.records, rec)
	return &Identity{set: s, rec: rec}, nil
}

func (s *IdentitySet) ListIdentityKeys() []string {
	out := make([]string, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.key)
	}
	return out
}

func (s *IdentitySet) Identity(identityKey string) (*Identity, error) {
	identityKey = strings.TrimSpace(identityKey)
	for _, rec := range s.records {
		if rec.key == identityKey {
			return &Identity{set: s, rec: rec}, nil
		}
	}
	return nil, ErrIdentityNotFound
}

func (s *IdentitySet) Export() []models.IdentityRecord {
	out := make([]models.IdentityRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, models.IdentityRecord{
			ID:          rec.key,
			RootPath:    rec.rootPath,
			CurrentPath: rec.currentPath,
			Name:        rec.name,
		})
	}
	return out
}

func (id *Identity) Key() string {
	return id.rec.key
}

// RootAddress is the address whose hash forms the identity key.
func (id *Identity) RootAddress() (string, error) {
	node, err := deriveChild(id.set.root, id.rec.rootPath)
	if err != nil {
		return "", err
	}
	return addressOf(node)
}

// SigningMaterial exports the current signing key as WIF with its public key and address.
func (id *Identity) SigningMaterial() (models.SigningMaterial, error) {
	node, err := deriveChild(id.set.root, id.rec.currentPath)
	if err != nil {
		return models.SigningMaterial{}, err
	}
	priv, err := node.ECPrivKey()
	if err != nil {
		return models.SigningMaterial{}, err
	}
	wif, err := btcutil.NewWIF(priv, netParams, true)
	if err != nil {
		return models.SigningMaterial{}, err
	}
	address, err := addressOf(node)
	if err != nil {
		return models.SigningMaterial{}, err
	}
	return models.SigningMaterial{
		IdentityKey: id.rec.key,
		WIF:         wif.String(),
		PublicKey:   hex.EncodeToString(priv.PubKey().SerializeCompressed()),
		Address:     address,
	}, nil
}
