package securestore

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

var (
	// ErrDecryptFailed is returned for every open failure so callers cannot tell a
	// wrong password from damaged ciphertext.
	ErrDecryptFailed   = errors.New("unable to decrypt backup: wrong password or corrupted data")
	ErrNotMasterBackup = errors.New("decrypted backup is not a master backup")
)

// BackupCipher is the password-based backup crypto used by the signup flow.
type BackupCipher struct{}

func NewBackupCipher() BackupCipher {
	return BackupCipher{}
}

func (BackupCipher) Encrypt(backup models.MasterBackup, password string) (models.EncryptedBackup, error) {
	return EncryptBackup(backup, password)
}

func (BackupCipher) Decrypt(encrypted models.EncryptedBackup, password string) (models.MasterBackup, error) {
	return DecryptBackup(encrypted, password)
}

func (BackupCipher) EncryptMnemonic(mnemonic, password string) (string, error) {
	return EncryptMnemonic(mnemonic, password)
}

func (BackupCipher) DecryptMnemonic(encrypted, password string) (string, error) {
	return DecryptMnemonic(encrypted, password)
}

func (BackupCipher) Fingerprint(encrypted models.EncryptedBackup) string {
	return Fingerprint(encrypted)
}

func EncryptBackup(backup models.MasterBackup, password string) (models.EncryptedBackup, error) {
	raw, err := json.Marshal(backup)
	if err != nil {
		return "", err
	}
	defer zeroBytes(raw)
	sealed, err := Encrypt(password, raw)
	if err != nil {
		return "", err
	}
	return models.EncryptedBackup(base64.StdEncoding.EncodeToString(sealed)), nil
}

func DecryptBackup(encrypted models.EncryptedBackup, password string) (models.MasterBackup, error) {
	plain, err := openString(string(encrypted), password)
	if err != nil {
		return models.MasterBackup{}, err
	}
	defer zeroBytes(plain)
	var backup models.MasterBackup
	if err := json.Unmarshal(plain, &backup); err != nil {
		return models.MasterBackup{}, ErrDecryptFailed
	}
	if !backup.IsMaster() {
		return models.MasterBackup{}, ErrNotMasterBackup
	}
	return backup, nil
}

// EncryptMnemonic seals the mnemonic alone for the downloadable backup file.
func EncryptMnemonic(mnemonic, password string) (string, error) {
	sealed, err := Encrypt(password, []byte(mnemonic))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func DecryptMnemonic(encrypted, password string) (string, error) {
	plain, err := openString(encrypted, password)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Fingerprint is the hex SHA-256 of the ciphertext string, used to compare
// local and cloud copies without decrypting either.
func Fingerprint(encrypted models.EncryptedBackup) string {
	sum := sha256.Sum256([]byte(encrypted))
	return hex.EncodeToString(sum[:])
}

func openString(encoded, password string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, ErrDecryptFailed
	}
	plain, err := Decrypt(password, raw)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plain, nil
}
