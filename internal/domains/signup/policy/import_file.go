package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

var ErrInvalidBackupFormat = errors.New("invalid backup file format")

// ImportFile is the classification of a user-supplied backup file.
type ImportFile interface {
	isImportFile()
}

// EncryptedBackupFile is already protected and goes straight to the durable tier.
type EncryptedBackupFile struct {
	// Stored is the value written to the durable slot: the encryptedBackup
	// field when the file carries one, otherwise the file itself.
	Stored models.EncryptedBackup
	BapID  string
}

type ClearMasterBackupFile struct {
	Backup models.MasterBackup
}

type InvalidBackupFile struct {
	Err error
}

func (EncryptedBackupFile) isImportFile()   {}
func (ClearMasterBackupFile) isImportFile() {}
func (InvalidBackupFile) isImportFile()     {}

// ClassifyImportFile decides by shape alone. The encrypted predicate is
// checked first; neither key material nor ciphertext is validated here.
func ClassifyImportFile(raw []byte) ImportFile {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(raw), &fields); err != nil || fields == nil {
		return InvalidBackupFile{Err: ErrInvalidBackupFormat}
	}

	if truthy(fields["encrypted"]) && truthy(fields["encryptedMnemonic"]) {
		stored := models.EncryptedBackup(bytes.TrimSpace(raw))
		if s, ok := stringField(fields["encryptedBackup"]); ok && s != "" {
			stored = models.EncryptedBackup(s)
		}
		bapID, _ := stringField(fields["bapId"])
		return EncryptedBackupFile{Stored: stored, BapID: bapID}
	}

	xprv, _ := stringField(fields["xprv"])
	mnemonic, _ := stringField(fields["mnemonic"])
	if strings.TrimSpace(xprv) != "" && strings.TrimSpace(mnemonic) != "" {
		backup, err := decodeClearBackup(fields, xprv, mnemonic)
		if err != nil {
			return InvalidBackupFile{Err: ErrInvalidBackupFormat}
		}
		return ClearMasterBackupFile{Backup: backup}
	}
	return InvalidBackupFile{Err: ErrInvalidBackupFormat}
}

// MnemonicOnlyFile reports whether stored is an encrypted backup file kept
// verbatim because it had no encryptedBackup field, and returns its sealed
// mnemonic.
func MnemonicOnlyFile(stored []byte) (string, bool) {
	trimmed := bytes.TrimSpace(stored)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", false
	}
	if !truthy(fields["encrypted"]) {
		return "", false
	}
	if s, ok := stringField(fields["encryptedBackup"]); ok && s != "" {
		return "", false
	}
	sealed, ok := stringField(fields["encryptedMnemonic"])
	if !ok || strings.TrimSpace(sealed) == "" {
		return "", false
	}
	return sealed, true
}

// decodeClearBackup tolerates the shapes older exports use: createdAt as a
// millisecond number and ids as an opaque string.
func decodeClearBackup(fields map[string]json.RawMessage, xprv, mnemonic string) (models.MasterBackup, error) {
	backup := models.MasterBackup{XPrv: xprv, Mnemonic: mnemonic}
	backup.Label, _ = stringField(fields["label"])

	if ids := bytes.TrimSpace(fields["ids"]); len(ids) > 0 && ids[0] == '[' {
		if err := json.Unmarshal(ids, &backup.IDs); err != nil {
			return models.MasterBackup{}, err
		}
	}

	if created := bytes.TrimSpace(fields["createdAt"]); len(created) > 0 {
		if s, ok := stringField(created); ok {
			if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
				backup.CreatedAt = t.UTC()
			}
		} else {
			var ms float64
			if err := json.Unmarshal(created, &ms); err == nil && ms > 0 {
				backup.CreatedAt = time.UnixMilli(int64(ms)).UTC()
			}
		}
	}
	return backup, nil
}

func stringField(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// truthy follows JSON-document truthiness: null, false, 0 and "" are false.
func truthy(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
