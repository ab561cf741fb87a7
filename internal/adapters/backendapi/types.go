package backendapi

import "github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"

const (
	PathCreateUser        = "/api/users/create-from-backup"
	PathSignIn            = "/api/auth/signin"
	PathBackup            = "/api/backup"
	PathBackupStatus      = "/api/backup/status"
	PathOAuthBackup       = "/api/backup/oauth"
	PathTransfer          = "/api/backup/transfer"
	PathConnectedAccounts = "/api/users/connected-accounts"
	PathDisconnectAccount = "/api/users/disconnect-account"
)

type SignInRequest struct {
	Token string `json:"token"`
}

type DisconnectRequest struct {
	Provider string `json:"provider"`
}

type ConnectedAccountsResponse struct {
	Accounts []models.ConnectedAccount `json:"accounts"`
}

// ErrorResponse is the failure body of every endpoint. ExistingBapID is only
// set on 409.
type ErrorResponse struct {
	Error         string `json:"error"`
	ExistingBapID string `json:"existingBapId,omitempty"`
}
