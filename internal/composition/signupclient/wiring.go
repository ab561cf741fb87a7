package signupclient

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/adapters/backendapi"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/adapters/oauthlink"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/bootstrap/appconfig"
	accountusecase "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/account/usecase"
	signupusecase "github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/domains/signup/usecase"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/identity"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/metrics"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/ratelimiter"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/securestore"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/storage"
)

// App bundles everything the terminal client needs.
type App struct {
	Slots   *storage.Slots
	Backend *backendapi.Client
	Signup  signupusecase.Deps
	Account *accountusecase.Service
	OAuth   *oauthlink.Providers
	Metrics *metrics.Recorder
	closers []func() error
}

func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}

// Build wires storage tiers, backend client, OAuth providers and both
// use-case layers from cfg.
func Build(ctx context.Context, cfg appconfig.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	app := &App{}

	durable, err := buildDurableTier(ctx, cfg.Storage, app)
	if err != nil {
		return nil, err
	}
	app.Slots = storage.NewSlots(storage.Tiers{
		Durable:   durable,
		Ephemeral: storage.NewMemoryTier(cfg.Storage.SessionTTL),
	})

	recorder, err := metrics.New(reg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Metrics = recorder

	app.Backend, err = backendapi.New(backendapi.Options{
		BaseURL:        cfg.Backend.BaseURL,
		RequestTimeout: cfg.Backend.RequestTimeout,
		StatusCacheTTL: cfg.Backend.StatusCacheTTL,
		Metrics:        recorder,
		Logger:         logger,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	providers := make(map[string]oauthlink.ProviderConfig, len(cfg.OAuth.Providers))
	for name, p := range cfg.OAuth.Providers {
		providers[name] = oauthlink.ProviderConfig{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
			AuthURL:      p.AuthURL,
			TokenURL:     p.TokenURL,
			Scopes:       p.Scopes,
		}
	}
	app.OAuth, err = oauthlink.New(cfg.OAuth.RedirectURL, providers)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	library := identity.NewLibrary()
	cipher := securestore.NewBackupCipher()
	limiter := ratelimiter.New(cfg.Transfer.AttemptEvery, cfg.Transfer.AttemptBurst, 0)

	app.Signup = signupusecase.Deps{
		Identity:        library,
		Crypto:          cipher,
		Store:           app.Slots,
		Backend:         app.Backend,
		Metrics:         recorder,
		Logger:          logger,
		TransferLimiter: limiter,
	}
	app.Account, err = accountusecase.NewService(accountusecase.Deps{
		Identity:        library,
		Crypto:          cipher,
		Store:           app.Slots,
		Backend:         app.Backend,
		OAuth:           app.OAuth,
		Metrics:         recorder,
		Logger:          logger,
		TransferLimiter: limiter,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func buildDurableTier(ctx context.Context, cfg appconfig.StorageConfig, app *App) (storage.Tier, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Durable)) {
	case appconfig.DurableRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis durable tier: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		return storage.NewRedisTier(client, cfg.RedisPrefix, 0), nil
	default:
		return storage.NewFileTier(cfg.Path), nil
	}
}
