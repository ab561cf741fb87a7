package storage

import (
	"context"
	"errors"
)

var (
	ErrPlaintextRejected = errors.New("durable tier accepts encrypted backups only")
	ErrSlotCorrupted     = errors.New("storage slot holds an unreadable value")
)

// Tier is one key-value storage lifetime.
type Tier interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Tiers pairs the durable tier (survives restart) with the ephemeral tier
// (survives only the current session).
type Tiers struct {
	Durable   Tier
	Ephemeral Tier
}

const (
	KeyEncryptedBackup = "encryptedBackup"
	KeySessionBackup   = "decryptedBackup"
	KeyPendingOAuth    = "pendingOAuthSignup"
	KeySession         = "session"
)

var ephemeralKeys = []string{KeySessionBackup, KeyPendingOAuth, KeySession}
