package usecase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/domain"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/ports"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/ratelimiter"
)

// Error categories reported to Metrics.
const (
	categoryAPI        = "api"
	categoryNetwork    = "network"
	categoryCrypto     = "crypto"
	categoryStorage    = "storage"
	categoryValidation = "validation"
	categoryConflict   = "conflict"
)

type Deps struct {
	Identity ports.IdentityLibrary
	Crypto   ports.BackupCrypto
	Store    ports.SignupStore
	Backend  ports.Backend
	Metrics  ports.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
	// TransferLimiter bounds conflict transfer attempts per existing identity.
	TransferLimiter *ratelimiter.MapLimiter
}

func (d Deps) validate() error {
	if d.Identity == nil || d.Crypto == nil || d.Store == nil || d.Backend == nil {
		return errors.New("signup: identity, crypto, store and backend are required")
	}
	return nil
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = noopMetrics{}
	}
	return d
}

type noopMetrics struct{}

func (noopMetrics) Transition(string, string) {}
func (noopMetrics) Error(string)              {}
func (noopMetrics) LinkWarning()              {}

// backendError keeps server answers as they are and folds transport failures
// into ErrBackendUnavailable.
func backendError(m ports.Metrics, err error) error {
	var status ports.StatusError
	if errors.As(err, &status) {
		m.Error(categoryAPI)
		return err
	}
	var conflict ports.LinkConflict
	if errors.As(err, &conflict) {
		m.Error(categoryConflict)
		return err
	}
	m.Error(categoryNetwork)
	return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
}
