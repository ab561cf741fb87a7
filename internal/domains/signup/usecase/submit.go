package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/ports"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

const linkWarningMessage = "Your sign-in provider could not be linked. You can link it again from settings."

// SubmitSignup runs encrypt, persist, derive, create user, sign in and the
// pending OAuth check strictly in that order. The first failure stops the
// sequence; nothing after it is attempted.
func SubmitSignup(ctx context.Context, deps Deps, backup models.MasterBackup, password string) (domain.Outcome, error) {
	if err := deps.validate(); err != nil {
		return domain.Outcome{}, err
	}
	deps = deps.withDefaults()
	logger := deps.Logger.With("component", "signup", "operation", "submit")

	encrypted, err := deps.Crypto.Encrypt(backup, password)
	if err != nil {
		deps.Metrics.Error(categoryCrypto)
		return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrEncryptFailed, err)
	}

	if err := deps.Store.SaveEncryptedBackup(ctx, encrypted); err != nil {
		deps.Metrics.Error(categoryStorage)
		return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}
	if err := deps.Store.SaveSessionBackup(ctx, backup); err != nil {
		deps.Metrics.Error(categoryStorage)
		return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}

	identityKey, signer, err := firstSigner(deps, backup)
	if err != nil {
		deps.Metrics.Error(categoryCrypto)
		return domain.Outcome{}, err
	}

	err = deps.Backend.CreateUserFromBackup(ctx, signer, models.CreateUserRequest{
		BapID:           identityKey,
		Address:         signer.Address,
		EncryptedBackup: encrypted,
	})
	if err != nil {
		logger.Warn("create user failed", "bap_id", identityKey, "error", err.Error())
		return domain.Outcome{}, backendError(deps.Metrics, err)
	}

	session, err := deps.Backend.SignIn(ctx, signer)
	if err != nil {
		deps.Metrics.Error(categoryAPI)
		logger.Warn("sign in failed", "bap_id", identityKey, "error", err.Error())
		return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrSignInFailed, err)
	}
	if err := deps.Store.SaveSession(ctx, session); err != nil {
		logger.Warn("session not cached", "error", err.Error())
	}

	out := domain.Outcome{Kind: domain.OutcomeOAuthLink, IdentityKey: identityKey, Session: session}

	pending, ok, err := deps.Store.LoadPendingOAuth(ctx)
	if err != nil {
		deps.Metrics.Error(categoryStorage)
		logger.Warn("pending oauth info unreadable", "error", err.Error())
		return out, nil
	}
	if !ok {
		return out, nil
	}

	err = deps.Backend.StoreBackup(ctx, signer, models.StoreBackupRequest{
		EncryptedBackup: encrypted,
		BapID:           identityKey,
		OAuthProvider:   pending.Provider,
		OAuthID:         pending.ProviderAccountID,
	})
	var conflict ports.LinkConflict
	switch {
	case err == nil:
		if clearErr := deps.Store.ClearPendingOAuth(ctx); clearErr != nil {
			logger.Warn("pending oauth info not cleared", "error", clearErr.Error())
		}
		out.Kind = domain.OutcomeSuccess
		return out, nil

	case errors.As(err, &conflict):
		deps.Metrics.Error(categoryConflict)
		existing := strings.TrimSpace(conflict.ExistingIdentityKey())
		if existing == "" || existing == identityKey {
			logger.Error("conflict without a distinct existing identity",
				"current_bap_id", identityKey, "existing_bap_id", existing)
			return domain.Outcome{}, domain.ErrInvalidConflict
		}
		out.Kind = domain.OutcomeConflict
		out.Conflict = models.ConflictState{
			Provider:            pending.Provider,
			ProviderAccountID:   pending.ProviderAccountID,
			ExistingIdentityKey: existing,
			CurrentIdentityKey:  identityKey,
		}
		logger.Info("oauth link conflict", "provider", pending.Provider,
			"current_bap_id", identityKey, "existing_bap_id", existing)
		return out, nil

	default:
		_ = backendError(deps.Metrics, err)
		deps.Metrics.LinkWarning()
		logger.Warn("oauth backup store failed; continuing to manual link",
			"provider", pending.Provider, "error", err.Error())
		out.LinkWarning = linkWarningMessage
		return out, nil
	}
}

func firstSigner(deps Deps, backup models.MasterBackup) (string, models.SigningMaterial, error) {
	identityKey := backup.FirstIdentityKey()
	if identityKey == "" {
		return "", models.SigningMaterial{}, domain.ErrNoIdentityInBackup
	}
	signer, err := deps.Identity.SigningMaterial(backup, identityKey)
	if err != nil || strings.TrimSpace(signer.WIF) == "" {
		return "", models.SigningMaterial{}, domain.ErrNoPrivateKeyFound
	}
	signer.IdentityKey = identityKey
	return identityKey, signer, nil
}
