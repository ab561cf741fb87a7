package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	accountports "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/account/ports"
	signuppolicy "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/policy"
	signupports "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/ports"
	signupusecase "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/usecase"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/ratelimiter"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

var (
	ErrNoLocalBackup = errors.New("no backup stored on this device")
	ErrLocked        = errors.New("backup is locked; unlock it with your password first")
	ErrWrongPassword = errors.New("wrong password or corrupted backup")
	ErrNoOAuth       = errors.New("no oauth providers configured")
)

type Deps struct {
	Identity        signupports.IdentityLibrary
	Crypto          signupports.BackupCrypto
	Store           accountports.Store
	Backend         accountports.Backend
	OAuth           accountports.OAuthProviders
	Metrics         signupports.Metrics
	Logger          *slog.Logger
	Now             func() time.Time
	TransferLimiter *ratelimiter.MapLimiter
}

// Service backs the settings and security screens. It reuses the signup
// primitives over the same persisted backup.
type Service struct {
	deps   Deps
	logger *slog.Logger
}

func NewService(deps Deps) (*Service, error) {
	if deps.Identity == nil || deps.Crypto == nil || deps.Store == nil || deps.Backend == nil {
		return nil, errors.New("account: identity, crypto, store and backend are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps, logger: deps.Logger.With("component", "account")}, nil
}

// Unlock decrypts the durable backup into the session tier.
func (s *Service) Unlock(ctx context.Context, password string) (models.MasterBackup, error) {
	backup, err := s.openLocal(ctx, password)
	if err != nil {
		return models.MasterBackup{}, err
	}
	if err := s.deps.Store.SaveSessionBackup(ctx, backup); err != nil {
		return models.MasterBackup{}, err
	}
	s.logger.Info("backup unlocked", "operation", "unlock", "bap_id", backup.FirstIdentityKey())
	return backup, nil
}

// SignIn establishes a backend session for the unlocked identity.
func (s *Service) SignIn(ctx context.Context) (models.Session, error) {
	signer, err := s.signer(ctx)
	if err != nil {
		return models.Session{}, err
	}
	session, err := s.deps.Backend.SignIn(ctx, signer)
	if err != nil {
		return models.Session{}, err
	}
	if err := s.deps.Store.SaveSession(ctx, session); err != nil {
		s.logger.Warn("session not cached", "operation", "signin", "error", err.Error())
	}
	return session, nil
}

// BackupStatus reports the local copy and, when unlocked, the cloud copy.
// The cloud copy is outdated when it is missing or its hash differs from the
// local ciphertext.
func (s *Service) BackupStatus(ctx context.Context) (models.LocalBackupStatus, error) {
	var out models.LocalBackupStatus
	local, ok, err := s.deps.Store.LoadEncryptedBackup(ctx)
	if err != nil {
		return out, err
	}
	out.LocalPresent = ok

	backup, unlocked, err := s.deps.Store.LoadSessionBackup(ctx)
	if err != nil {
		return out, err
	}
	out.Unlocked = unlocked
	if !unlocked {
		return out, nil
	}
	out.IdentityKey = backup.FirstIdentityKey()

	signer, err := s.signerFor(backup)
	if err != nil {
		return out, err
	}
	cloud, err := s.deps.Backend.BackupStatus(ctx, signer)
	if err != nil {
		return out, err
	}
	out.Cloud = cloud
	out.CloudOutdated = ok && (!cloud.HasBackup || cloud.BackupHash != s.deps.Crypto.Fingerprint(local))
	return out, nil
}

// SyncCloudBackup uploads the local ciphertext as the cloud copy.
func (s *Service) SyncCloudBackup(ctx context.Context) error {
	local, ok, err := s.deps.Store.LoadEncryptedBackup(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoLocalBackup
	}
	signer, err := s.signer(ctx)
	if err != nil {
		return err
	}
	return s.deps.Backend.StoreBackup(ctx, signer, models.StoreBackupRequest{
		EncryptedBackup: local,
		BapID:           signer.IdentityKey,
	})
}

// RevealMnemonic always asks for the password again, even when unlocked.
func (s *Service) RevealMnemonic(ctx context.Context, password string) ([]models.MnemonicWord, error) {
	backup, err := s.openLocal(ctx, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("mnemonic revealed", "operation", "reveal", "bap_id", backup.FirstIdentityKey())
	return signuppolicy.MnemonicWords(backup.Mnemonic), nil
}

// ChangePassword re-encrypts the local backup. The cloud copy becomes
// outdated until the next sync.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) error {
	if err := signuppolicy.ValidatePassword(newPassword); err != nil {
		return err
	}
	if err := signuppolicy.ConfirmPassword(newPassword, confirm); err != nil {
		return err
	}
	backup, err := s.openLocal(ctx, oldPassword)
	if err != nil {
		return err
	}
	encrypted, err := s.deps.Crypto.Encrypt(backup, newPassword)
	if err != nil {
		return err
	}
	if err := s.deps.Store.SaveEncryptedBackup(ctx, encrypted); err != nil {
		return err
	}
	s.logger.Info("backup password changed", "operation", "change_password", "bap_id", backup.FirstIdentityKey())
	return s.deps.Store.SaveSessionBackup(ctx, backup)
}

func (s *Service) ConnectedAccounts(ctx context.Context) ([]models.ConnectedAccount, error) {
	signer, err := s.signer(ctx)
	if err != nil {
		return nil, err
	}
	return s.deps.Backend.ConnectedAccounts(ctx, signer)
}

func (s *Service) DisconnectAccount(ctx context.Context, provider string) error {
	signer, err := s.signer(ctx)
	if err != nil {
		return err
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if err := s.deps.Backend.DisconnectAccount(ctx, signer, provider); err != nil {
		return err
	}
	s.logger.Info("provider disconnected", "operation", "disconnect", "provider", provider)
	return nil
}

// ConnectURL returns the authorize URL and its PKCE verifier.
func (s *Service) ConnectURL(provider, state string) (string, string, error) {
	if s.deps.OAuth == nil {
		return "", "", ErrNoOAuth
	}
	return s.deps.OAuth.AuthCodeURL(provider, state)
}

// LinkResult is either a completed link or an open conflict dialog.
type LinkResult struct {
	Linked   bool
	Conflict *signupusecase.ConflictDialog
}

// LinkProvider stores the local backup against an OAuth account. A 409 opens
// the same conflict dialog the signup flow uses; switching from it signs out
// but keeps the encrypted backup on this device.
func (s *Service) LinkProvider(ctx context.Context, provider, accountID string, callbacks signupusecase.DialogCallbacks) (LinkResult, error) {
	local, ok, err := s.deps.Store.LoadEncryptedBackup(ctx)
	if err != nil {
		return LinkResult{}, err
	}
	if !ok {
		return LinkResult{}, ErrNoLocalBackup
	}
	backup, unlocked, err := s.deps.Store.LoadSessionBackup(ctx)
	if err != nil {
		return LinkResult{}, err
	}
	if !unlocked {
		return LinkResult{}, ErrLocked
	}
	signer, err := s.signerFor(backup)
	if err != nil {
		return LinkResult{}, err
	}

	err = s.deps.Backend.StoreBackup(ctx, signer, models.StoreBackupRequest{
		EncryptedBackup: local,
		BapID:           signer.IdentityKey,
		OAuthProvider:   provider,
		OAuthID:         accountID,
	})
	if err == nil {
		s.logger.Info("provider linked", "operation", "link", "provider", provider, "bap_id", signer.IdentityKey)
		return LinkResult{Linked: true}, nil
	}

	var conflict signupports.LinkConflict
	if !errors.As(err, &conflict) {
		return LinkResult{}, err
	}
	dialog, dErr := signupusecase.NewConflictDialog(s.signupDeps(), models.ConflictState{
		Provider:            provider,
		ProviderAccountID:   accountID,
		ExistingIdentityKey: conflict.ExistingIdentityKey(),
		CurrentIdentityKey:  signer.IdentityKey,
	}, backup, callbacks, signupusecase.WithSwitchClear(s.deps.Store.ClearEphemeral))
	if dErr != nil {
		return LinkResult{}, dErr
	}
	return LinkResult{Conflict: dialog}, nil
}

// SignOut forgets the unlocked backup and session. The encrypted backup stays.
func (s *Service) SignOut(ctx context.Context) error {
	return s.deps.Store.ClearEphemeral(ctx)
}

func (s *Service) openLocal(ctx context.Context, password string) (models.MasterBackup, error) {
	local, ok, err := s.deps.Store.LoadEncryptedBackup(ctx)
	if err != nil {
		return models.MasterBackup{}, err
	}
	if !ok {
		return models.MasterBackup{}, ErrNoLocalBackup
	}
	if sealedMnemonic, ok := signuppolicy.MnemonicOnlyFile([]byte(local)); ok {
		return s.restoreFromMnemonic(ctx, sealedMnemonic, password)
	}
	backup, err := s.deps.Crypto.Decrypt(local, password)
	if err != nil {
		return models.MasterBackup{}, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	return backup, nil
}

// restoreFromMnemonic rebuilds the identity from a backup file that only
// carries the encrypted mnemonic, then replaces the durable value with a
// sealed master backup under the same password.
func (s *Service) restoreFromMnemonic(ctx context.Context, sealedMnemonic, password string) (models.MasterBackup, error) {
	mnemonic, err := s.deps.Crypto.DecryptMnemonic(sealedMnemonic, password)
	if err != nil {
		return models.MasterBackup{}, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	backup, err := s.deps.Identity.Restore(mnemonic, s.deps.Now())
	if err != nil {
		return models.MasterBackup{}, fmt.Errorf("%w: %v", ErrWrongPassword, err)
	}
	encrypted, err := s.deps.Crypto.Encrypt(backup, password)
	if err != nil {
		return models.MasterBackup{}, err
	}
	if err := s.deps.Store.SaveEncryptedBackup(ctx, encrypted); err != nil {
		return models.MasterBackup{}, err
	}
	s.logger.Info("backup file upgraded", "operation", "unlock", "bap_id", backup.FirstIdentityKey())
	return backup, nil
}

func (s *Service) signer(ctx context.Context) (models.SigningMaterial, error) {
	backup, ok, err := s.deps.Store.LoadSessionBackup(ctx)
	if err != nil {
		return models.SigningMaterial{}, err
	}
	if !ok {
		return models.SigningMaterial{}, ErrLocked
	}
	return s.signerFor(backup)
}

func (s *Service) signerFor(backup models.MasterBackup) (models.SigningMaterial, error) {
	key := backup.FirstIdentityKey()
	if key == "" {
		return models.SigningMaterial{}, ErrLocked
	}
	signer, err := s.deps.Identity.SigningMaterial(backup, key)
	if err != nil {
		return models.SigningMaterial{}, err
	}
	signer.IdentityKey = key
	return signer, nil
}

func (s *Service) signupDeps() signupusecase.Deps {
	return signupusecase.Deps{
		Identity:        s.deps.Identity,
		Crypto:          s.deps.Crypto,
		Store:           s.deps.Store,
		Backend:         s.deps.Backend,
		Metrics:         s.deps.Metrics,
		Logger:          s.deps.Logger,
		Now:             s.deps.Now,
		TransferLimiter: s.deps.TransferLimiter,
	}
}
