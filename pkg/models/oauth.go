package models

import "time"

// OAuthLink binds one (provider, providerAccountId) pair to exactly one identity.
type OAuthLink struct {
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"providerAccountId"`
	IdentityKey       string    `json:"bapId"`
	LinkedAt          time.Time `json:"linkedAt"`
}

// PendingOAuthSignupInfo is captured when signup starts from an OAuth session.
type PendingOAuthSignupInfo struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
	Email             string `json:"email,omitempty"`
	Name              string `json:"name,omitempty"`
}

// ConflictState exists only while a conflict is being resolved.
type ConflictState struct {
	Provider            string `json:"provider"`
	ProviderAccountID   string `json:"providerAccountId"`
	ExistingIdentityKey string `json:"existingBapId"`
	CurrentIdentityKey  string `json:"currentBapId"`
}

type ConnectedAccount struct {
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"providerAccountId"`
	Email             string    `json:"email,omitempty"`
	Name              string    `json:"name,omitempty"`
	LinkedAt          time.Time `json:"linkedAt"`
}

type Session struct {
	Token       string    `json:"token"`
	IdentityKey string    `json:"bapId"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
