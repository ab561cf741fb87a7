package models

import (
	"strings"
	"time"
)

// MasterBackup is the complete recoverable form of an identity set: the root
// extended private key, the mnemonic that produced it and the exported ids.
type MasterBackup struct {
	XPrv      string           `json:"xprv"`
	IDs       []IdentityRecord `json:"ids"`
	Mnemonic  string           `json:"mnemonic"`
	CreatedAt time.Time        `json:"createdAt"`
	Label     string           `json:"label,omitempty"`
}

// IdentityRecord is one exported entry of an identity set. Empty paths mean the
// default derivation path for the record's position in the set.
type IdentityRecord struct {
	ID          string `json:"id"`
	RootPath    string `json:"rootPath,omitempty"`
	CurrentPath string `json:"currentPath,omitempty"`
	Name        string `json:"name,omitempty"`
}

// EncryptedBackup is the password-encrypted serialization of a MasterBackup.
type EncryptedBackup string

// IsMaster distinguishes a master backup from a member backup.
func (b MasterBackup) IsMaster() bool {
	return strings.TrimSpace(b.XPrv) != "" && strings.TrimSpace(b.Mnemonic) != ""
}

func (b MasterBackup) IdentityKeys() []string {
	out := make([]string, 0, len(b.IDs))
	for _, rec := range b.IDs {
		if id := strings.TrimSpace(rec.ID); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// FirstIdentityKey returns "" when the identity set is empty.
func (b MasterBackup) FirstIdentityKey() string {
	keys := b.IdentityKeys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func (b MasterBackup) Clone() MasterBackup {
	out := b
	out.IDs = append([]IdentityRecord(nil), b.IDs...)
	return out
}

// BackupFile is the downloadable encrypted artifact produced before signup
// can be submitted.
type BackupFile struct {
	Encrypted         bool            `json:"encrypted"`
	EncryptedBackup   EncryptedBackup `json:"encryptedBackup,omitempty"`
	EncryptedMnemonic string          `json:"encryptedMnemonic"`
	BapID             string          `json:"bapId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// SigningMaterial is derived per identity and never persisted.
type SigningMaterial struct {
	IdentityKey string `json:"-"`
	WIF         string `json:"-"`
	PublicKey   string `json:"publicKey"`
	Address     string `json:"address"`
}

type CloudBackupStatus struct {
	HasBackup  bool      `json:"hasBackup"`
	UpdatedAt  time.Time `json:"updatedAt,omitempty"`
	BackupHash string    `json:"backupHash,omitempty"`
}

type LocalBackupStatus struct {
	LocalPresent  bool
	Unlocked      bool
	IdentityKey   string
	Cloud         CloudBackupStatus
	CloudOutdated bool
}

type MnemonicWord struct {
	Index int
	Word  string
}
