package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/policy"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/ports"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

type DialogCallbacks struct {
	OnTransferComplete func()
	OnSwitchAccount    func()
}

// ConflictDialog resolves an OAuth account already bound to another identity.
// It keeps only the last error between calls; every durable consequence goes
// through the backend, the store and the two callbacks.
type ConflictDialog struct {
	deps      Deps
	conflict  models.ConflictState
	current   models.MasterBackup
	callbacks DialogCallbacks

	// switchClear runs on Switch. Signup clears every local artifact; the
	// settings surface keeps the durable backup of an established identity.
	switchClear func(ctx context.Context) error

	mu       sync.Mutex
	busy     bool
	resolved bool
	lastErr  string
}

type DialogOption func(*ConflictDialog)

// WithSwitchClear replaces the local cleanup performed by Switch.
func WithSwitchClear(fn func(ctx context.Context) error) DialogOption {
	return func(d *ConflictDialog) { d.switchClear = fn }
}

func NewConflictDialog(deps Deps, conflict models.ConflictState, current models.MasterBackup, callbacks DialogCallbacks, opts ...DialogOption) (*ConflictDialog, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	existing := strings.TrimSpace(conflict.ExistingIdentityKey)
	if existing == "" || existing == strings.TrimSpace(conflict.CurrentIdentityKey) {
		return nil, domain.ErrInvalidConflict
	}
	d := &ConflictDialog{
		deps:      deps.withDefaults(),
		conflict:  conflict,
		current:   current.Clone(),
		callbacks: callbacks,
	}
	d.switchClear = d.deps.Store.ClearAll
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *ConflictDialog) State() models.ConflictState {
	return d.conflict
}

// LastError is the inline message of the most recent failed action.
func (d *ConflictDialog) LastError() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

func (d *ConflictDialog) Resolved() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolved
}

// Transfer reassigns the OAuth link to the current identity. The password is
// the existing identity's: it must decrypt that identity's cloud backup, whose
// key then signs the transfer. On failure the dialog stays open.
func (d *ConflictDialog) Transfer(ctx context.Context, existingPassword string) error {
	if err := d.begin(); err != nil {
		return err
	}
	err := d.transfer(ctx, existingPassword)
	d.finish(err)
	if err != nil {
		return err
	}
	if d.callbacks.OnTransferComplete != nil {
		d.callbacks.OnTransferComplete()
	}
	return nil
}

// Switch abandons the current attempt and clears its local artifacts.
func (d *ConflictDialog) Switch(ctx context.Context) error {
	if err := d.begin(); err != nil {
		return err
	}
	err := d.switchClear(ctx)
	if err != nil {
		d.deps.Metrics.Error(categoryStorage)
		err = fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}
	d.finish(err)
	if err != nil {
		return err
	}
	d.deps.Logger.Info("switched to existing identity",
		"component", "signup", "operation", "conflict.switch",
		"existing_bap_id", d.conflict.ExistingIdentityKey)
	if d.callbacks.OnSwitchAccount != nil {
		d.callbacks.OnSwitchAccount()
	}
	return nil
}

func (d *ConflictDialog) begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.resolved {
		return domain.ErrDialogClosed
	}
	if d.busy {
		return domain.ErrBusy
	}
	d.busy = true
	return nil
}

func (d *ConflictDialog) finish(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.busy = false
	if err != nil {
		d.lastErr = policy.UserMessage(err)
		return
	}
	d.lastErr = ""
	d.resolved = true
}

func (d *ConflictDialog) transfer(ctx context.Context, existingPassword string) error {
	c := d.conflict
	logger := d.deps.Logger.With("component", "signup", "operation", "conflict.transfer")

	if existingPassword == "" {
		d.deps.Metrics.Error(categoryValidation)
		return policy.ErrPasswordRequired
	}
	if ok, _ := d.deps.TransferLimiter.Reserve(c.ExistingIdentityKey, d.deps.Now()); !ok {
		d.deps.Metrics.Error(categoryValidation)
		return domain.ErrRateLimited
	}

	encrypted, ok, err := d.deps.Store.LoadEncryptedBackup(ctx)
	if err != nil {
		d.deps.Metrics.Error(categoryStorage)
		return fmt.Errorf("%w: %v", domain.ErrStorageFailed, err)
	}
	if !ok {
		return domain.ErrNoBackupMaterial
	}
	_, currentSigner, err := firstSigner(d.deps, d.current)
	if err != nil {
		return err
	}

	remote, err := d.deps.Backend.FetchOAuthBackup(ctx, currentSigner, c.Provider, c.ProviderAccountID)
	if err != nil {
		return backendError(d.deps.Metrics, err)
	}
	existingBackup, err := d.deps.Crypto.Decrypt(remote.EncryptedBackup, existingPassword)
	if err != nil || !slices.Contains(existingBackup.IdentityKeys(), c.ExistingIdentityKey) {
		d.deps.Metrics.Error(categoryCrypto)
		logger.Info("transfer password rejected", "existing_bap_id", c.ExistingIdentityKey)
		return domain.ErrTransferPassword
	}
	existingSigner, err := d.deps.Identity.SigningMaterial(existingBackup, c.ExistingIdentityKey)
	if err != nil || existingSigner.WIF == "" {
		d.deps.Metrics.Error(categoryCrypto)
		return domain.ErrNoPrivateKeyFound
	}
	existingSigner.IdentityKey = c.ExistingIdentityKey

	err = d.deps.Backend.TransferOAuthLink(ctx, existingSigner, models.TransferRequest{
		Provider:        c.Provider,
		OAuthID:         c.ProviderAccountID,
		FromBapID:       c.ExistingIdentityKey,
		ToBapID:         c.CurrentIdentityKey,
		EncryptedBackup: encrypted,
	})
	if err != nil {
		logger.Warn("transfer rejected", "existing_bap_id", c.ExistingIdentityKey, "error", err.Error())
		return backendError(d.deps.Metrics, err)
	}

	// The link now belongs to the current identity, so the store must succeed.
	err = d.deps.Backend.StoreBackup(ctx, currentSigner, models.StoreBackupRequest{
		EncryptedBackup: encrypted,
		BapID:           c.CurrentIdentityKey,
		OAuthProvider:   c.Provider,
		OAuthID:         c.ProviderAccountID,
	})
	if err != nil {
		var conflict ports.LinkConflict
		if errors.As(err, &conflict) {
			return fmt.Errorf("%w: link still held by another identity", domain.ErrTransferRejected)
		}
		return backendError(d.deps.Metrics, err)
	}
	if err := d.deps.Store.ClearPendingOAuth(ctx); err != nil {
		logger.Warn("pending oauth info not cleared", "error", err.Error())
	}
	logger.Info("oauth link transferred", "provider", c.Provider,
		"existing_bap_id", c.ExistingIdentityKey, "current_bap_id", c.CurrentIdentityKey)
	return nil
}
