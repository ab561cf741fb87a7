package models

// Backend request payloads shared by the API client, the signup flow and the
// reference backend.

type CreateUserRequest struct {
	BapID           string          `json:"bapId"`
	Address         string          `json:"address"`
	EncryptedBackup EncryptedBackup `json:"encryptedBackup"`
}

type StoreBackupRequest struct {
	EncryptedBackup EncryptedBackup `json:"encryptedBackup"`
	BapID           string          `json:"bapId"`
	OAuthProvider   string          `json:"oauthProvider,omitempty"`
	OAuthID         string          `json:"oauthId,omitempty"`
}

// TransferRequest moves an OAuth link from FromBapID to ToBapID. It must be
// signed by FromBapID.
type TransferRequest struct {
	Provider        string          `json:"provider"`
	OAuthID         string          `json:"oauthId"`
	FromBapID       string          `json:"fromBapId"`
	ToBapID         string          `json:"toBapId"`
	EncryptedBackup EncryptedBackup `json:"encryptedBackup"`
}

// OAuthBackup is the cloud copy held for an OAuth account.
type OAuthBackup struct {
	BapID           string          `json:"bapId"`
	EncryptedBackup EncryptedBackup `json:"encryptedBackup"`
}
