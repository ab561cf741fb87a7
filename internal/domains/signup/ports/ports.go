package ports

import (
	"context"
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

type IdentityLibrary interface {
	Generate(now time.Time) (models.MasterBackup, error)
	Restore(mnemonic string, now time.Time) (models.MasterBackup, error)
	SigningMaterial(backup models.MasterBackup, identityKey string) (models.SigningMaterial, error)
}

// BackupCrypto must fail Decrypt with one indistinguishable error for a wrong
// password and for damaged ciphertext.
type BackupCrypto interface {
	Encrypt(backup models.MasterBackup, password string) (models.EncryptedBackup, error)
	Decrypt(encrypted models.EncryptedBackup, password string) (models.MasterBackup, error)
	EncryptMnemonic(mnemonic, password string) (string, error)
	DecryptMnemonic(encrypted, password string) (string, error)
	Fingerprint(encrypted models.EncryptedBackup) string
}

// SignupStore has no method that writes a plaintext backup to the durable tier.
type SignupStore interface {
	SaveEncryptedBackup(ctx context.Context, encrypted models.EncryptedBackup) error
	LoadEncryptedBackup(ctx context.Context) (models.EncryptedBackup, bool, error)
	SaveSessionBackup(ctx context.Context, backup models.MasterBackup) error
	LoadSessionBackup(ctx context.Context) (models.MasterBackup, bool, error)
	LoadPendingOAuth(ctx context.Context) (models.PendingOAuthSignupInfo, bool, error)
	ClearPendingOAuth(ctx context.Context) error
	SaveSession(ctx context.Context, session models.Session) error
	ClearAll(ctx context.Context) error
}

type Backend interface {
	CreateUserFromBackup(ctx context.Context, signer models.SigningMaterial, req models.CreateUserRequest) error
	SignIn(ctx context.Context, signer models.SigningMaterial) (models.Session, error)
	StoreBackup(ctx context.Context, signer models.SigningMaterial, req models.StoreBackupRequest) error
	FetchOAuthBackup(ctx context.Context, signer models.SigningMaterial, provider, accountID string) (models.OAuthBackup, error)
	TransferOAuthLink(ctx context.Context, signer models.SigningMaterial, req models.TransferRequest) error
}

type Metrics interface {
	Transition(from, to string)
	Error(category string)
	LinkWarning()
}

// LinkConflict is implemented by backend errors that report an OAuth account
// already bound to another identity.
type LinkConflict interface {
	error
	ExistingIdentityKey() string
}

// StatusError is implemented by backend errors that carry an HTTP status and
// a message fit for display.
type StatusError interface {
	error
	HTTPStatus() int
}
