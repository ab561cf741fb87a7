package identity

import (
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

// Library is the identity facade used by the signup and account flows.
type Library struct{}

func NewLibrary() Library {
	return Library{}
}

// Generate runs mnemonic -> seed -> root key -> one identity and returns the
// in-memory master backup. Nothing is persisted.
func (Library) Generate(now time.Time) (models.MasterBackup, error) {
	mnemonic, err := GenerateMnemonic()
	if err != nil {
		return models.MasterBackup{}, err
	}
	return FromMnemonic(mnemonic, now)
}

func (Library) Restore(mnemonic string, now time.Time) (models.MasterBackup, error) {
	return FromMnemonic(mnemonic, now)
}

// FromMnemonic rebuilds a master backup with a single identity from an existing mnemonic.
func FromMnemonic(mnemonic string, now time.Time) (models.MasterBackup, error) {
	seed, err := MnemonicToSeed(mnemonic)
	if err != nil {
		return models.MasterBackup{}, err
	}
	xprv, err := DeriveRootKey(seed)
	if err != nil {
		return models.MasterBackup{}, err
	}
	set, err := NewIdentitySet(xprv)
	if err != nil {
		return models.MasterBackup{}, err
	}
	if _, err := set.NewIdentity(); err != nil {
		return models.MasterBackup{}, err
	}
	return models.MasterBackup{
		XPrv:      xprv,
		IDs:       set.Export(),
		Mnemonic:  mnemonic,
		CreatedAt: now.UTC(),
	}, nil
}

// SigningMaterial derives the signing key of identityKey from a master backup.
func (Library) SigningMaterial(backup models.MasterBackup, identityKey string) (models.SigningMaterial, error) {
	set, err := ImportIdentitySet(backup.XPrv, backup.IDs)
	if err != nil {
		return models.SigningMaterial{}, err
	}
	id, err := set.Identity(identityKey)
	if err != nil {
		return models.SigningMaterial{}, err
	}
	return id.SigningMaterial()
}
