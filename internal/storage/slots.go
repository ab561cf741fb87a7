package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

// Slots is typed access to the persisted signup artifacts. It has no way to
// write a MasterBackup to the durable tier.
type Slots struct {
	tiers Tiers
}

func NewSlots(tiers Tiers) *Slots {
	return &Slots{tiers: tiers}
}

func (s *Slots) SaveEncryptedBackup(ctx context.Context, encrypted models.EncryptedBackup) error {
	value := strings.TrimSpace(string(encrypted))
	if value == "" || containsCleartextSecrets(value) {
		return ErrPlaintextRejected
	}
	return s.tiers.Durable.Set(ctx, KeyEncryptedBackup, value)
}

func (s *Slots) LoadEncryptedBackup(ctx context.Context) (models.EncryptedBackup, bool, error) {
	v, ok, err := s.tiers.Durable.Get(ctx, KeyEncryptedBackup)
	if err != nil || !ok {
		return "", ok, err
	}
	return models.EncryptedBackup(v), true, nil
}

func (s *Slots) ClearEncryptedBackup(ctx context.Context) error {
	return s.tiers.Durable.Remove(ctx, KeyEncryptedBackup)
}

func (s *Slots) SaveSessionBackup(ctx context.Context, backup models.MasterBackup) error {
	return saveJSON(ctx, s.tiers.Ephemeral, KeySessionBackup, backup)
}

func (s *Slots) LoadSessionBackup(ctx context.Context) (models.MasterBackup, bool, error) {
	var backup models.MasterBackup
	ok, err := loadJSON(ctx, s.tiers.Ephemeral, KeySessionBackup, &backup)
	return backup, ok, err
}

func (s *Slots) SavePendingOAuth(ctx context.Context, info models.PendingOAuthSignupInfo) error {
	return saveJSON(ctx, s.tiers.Ephemeral, KeyPendingOAuth, info)
}

func (s *Slots) LoadPendingOAuth(ctx context.Context) (models.PendingOAuthSignupInfo, bool, error) {
	var info models.PendingOAuthSignupInfo
	ok, err := loadJSON(ctx, s.tiers.Ephemeral, KeyPendingOAuth, &info)
	return info, ok, err
}

func (s *Slots) ClearPendingOAuth(ctx context.Context) error {
	return s.tiers.Ephemeral.Remove(ctx, KeyPendingOAuth)
}

func (s *Slots) SaveSession(ctx context.Context, session models.Session) error {
	return saveJSON(ctx, s.tiers.Ephemeral, KeySession, session)
}

func (s *Slots) LoadSession(ctx context.Context) (models.Session, bool, error) {
	var session models.Session
	ok, err := loadJSON(ctx, s.tiers.Ephemeral, KeySession, &session)
	return session, ok, err
}

// ClearEphemeral drops everything tied to the current session.
func (s *Slots) ClearEphemeral(ctx context.Context) error {
	var errs []error
	for _, key := range ephemeralKeys {
		if err := s.tiers.Ephemeral.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearAll removes every signup artifact from both tiers.
func (s *Slots) ClearAll(ctx context.Context) error {
	return errors.Join(s.ClearEncryptedBackup(ctx), s.ClearEphemeral(ctx))
}

func saveJSON(ctx context.Context, tier Tier, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tier.Set(ctx, key, string(raw))
}

func loadJSON(ctx context.Context, tier Tier, key string, out any) (bool, error) {
	raw, ok, err := tier.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, ErrSlotCorrupted
	}
	return true, nil
}

func containsCleartextSecrets(value string) bool {
	var shape struct {
		XPrv     string `json:"xprv"`
		Mnemonic string `json:"mnemonic"`
	}
	if err := json.Unmarshal([]byte(value), &shape); err != nil {
		return false
	}
	return shape.XPrv != "" || shape.Mnemonic != ""
}
