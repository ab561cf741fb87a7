package ports

import (
	"context"

	signupports "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/ports"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

type Store interface {
	signupports.SignupStore
	ClearEphemeral(ctx context.Context) error
}

type Backend interface {
	signupports.Backend
	BackupStatus(ctx context.Context, signer models.SigningMaterial) (models.CloudBackupStatus, error)
	ConnectedAccounts(ctx context.Context, signer models.SigningMaterial) ([]models.ConnectedAccount, error)
	DisconnectAccount(ctx context.Context, signer models.SigningMaterial, provider string) error
}

// OAuthProviders builds authorize URLs. The second return value is the PKCE
// verifier that belongs to the URL.
type OAuthProviders interface {
	AuthCodeURL(provider, state string) (string, string, error)
	Names() []string
}
