package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/crypto"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/metrics"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

const maxResponseBytes = 4 << 20

type Options struct {
	BaseURL        string
	RequestTimeout time.Duration
	StatusCacheTTL time.Duration
	HTTPClient     *http.Client
	Metrics        *metrics.Recorder
	Logger         *slog.Logger
	Now            func() time.Time
}

// Client talks to the identity backend. Every authenticated call carries a
// signed X-Auth-Token derived from the caller's signing material.
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	timeout     time.Duration
	statusCache *cache.Cache
	metrics     *metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ttl := opts.StatusCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		baseURL:     base,
		http:        httpClient,
		timeout:     timeout,
		statusCache: cache.New(ttl, 2*ttl),
		metrics:     opts.Metrics,
		logger:      logger.With("component", "backendapi"),
		now:         now,
	}, nil
}

func (c *Client) CreateUserFromBackup(ctx context.Context, signer models.SigningMaterial, req models.CreateUserRequest) error {
	return c.do(ctx, http.MethodPost, PathCreateUser, nil, &signer, req, nil)
}

// SignIn establishes a session for signer. The token travels in the body,
// credentials style, instead of the auth header.
func (c *Client) SignIn(ctx context.Context, signer models.SigningMaterial) (models.Session, error) {
	token, err := crypto.SignRequest(signer.WIF, c.requestPath(PathSignIn), nil, c.now())
	if err != nil {
		return models.Session{}, err
	}
	var session models.Session
	if err := c.do(ctx, http.MethodPost, PathSignIn, nil, nil, SignInRequest{Token: token}, &session); err != nil {
		return models.Session{}, err
	}
	if strings.TrimSpace(session.Token) == "" {
		return models.Session{}, ErrInvalidResponse
	}
	return session, nil
}

// StoreBackup uploads the encrypted backup, optionally against an OAuth
// account. A 409 is returned as *ConflictError.
func (c *Client) StoreBackup(ctx context.Context, signer models.SigningMaterial, req models.StoreBackupRequest) error {
	err := c.do(ctx, http.MethodPost, PathBackup, nil, &signer, req, nil)
	if err == nil {
		c.statusCache.Delete(signer.IdentityKey)
	}
	return err
}

// FetchOAuthBackup returns the cloud backup currently bound to an OAuth account.
func (c *Client) FetchOAuthBackup(ctx context.Context, signer models.SigningMaterial, provider, accountID string) (models.OAuthBackup, error) {
	query := url.Values{}
	query.Set("provider", provider)
	query.Set("oauthId", accountID)
	var out models.OAuthBackup
	if err := c.do(ctx, http.MethodGet, PathOAuthBackup, query, &signer, nil, &out); err != nil {
		return models.OAuthBackup{}, err
	}
	if out.EncryptedBackup == "" {
		return models.OAuthBackup{}, ErrInvalidResponse
	}
	return out, nil
}

// TransferOAuthLink must be signed by the identity currently holding the link.
func (c *Client) TransferOAuthLink(ctx context.Context, signer models.SigningMaterial, req models.TransferRequest) error {
	err := c.do(ctx, http.MethodPost, PathTransfer, nil, &signer, req, nil)
	if err == nil {
		c.statusCache.Delete(req.FromBapID)
		c.statusCache.Delete(req.ToBapID)
	}
	return err
}

func (c *Client) BackupStatus(ctx context.Context, signer models.SigningMaterial) (models.CloudBackupStatus, error) {
	if cached, ok := c.statusCache.Get(signer.IdentityKey); ok && signer.IdentityKey != "" {
		return cached.(models.CloudBackupStatus), nil
	}
	var status models.CloudBackupStatus
	if err := c.do(ctx, http.MethodGet, PathBackupStatus, nil, &signer, nil, &status); err != nil {
		return models.CloudBackupStatus{}, err
	}
	if signer.IdentityKey != "" {
		c.statusCache.SetDefault(signer.IdentityKey, status)
	}
	return status, nil
}

func (c *Client) ConnectedAccounts(ctx context.Context, signer models.SigningMaterial) ([]models.ConnectedAccount, error) {
	var out ConnectedAccountsResponse
	if err := c.do(ctx, http.MethodGet, PathConnectedAccounts, nil, &signer, nil, &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

func (c *Client) DisconnectAccount(ctx context.Context, signer models.SigningMaterial, provider string) error {
	return c.do(ctx, http.MethodPost, PathDisconnectAccount, nil, &signer, DisconnectRequest{Provider: provider}, nil)
}

func (c *Client) do(
	ctx context.Context,
	method, path string,
	query url.Values,
	signer *models.SigningMaterial,
	in any,
	out any,
) error {
	var body []byte
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = encoded
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if signer != nil {
		if strings.TrimSpace(signer.WIF) == "" {
			return ErrMissingSigner
		}
		// The signature covers the path the server receives, never the query.
		token, err := crypto.SignRequest(signer.WIF, c.requestPath(path), body, c.now())
		if err != nil {
			return err
		}
		req.Header.Set(crypto.AuthHeader, token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveBackend(path, "error", time.Since(started))
		c.logger.Warn("backend request failed", "operation", path, "error", err.Error())
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveBackend(path, statusClass(resp.StatusCode), time.Since(started))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeFailure(path, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// requestPath is the absolute URL path for route, including any path prefix
// of the base URL. JoinPath drops the leading slash on a host-only base.
func (c *Client) requestPath(route string) string {
	return "/" + strings.TrimPrefix(c.baseURL.JoinPath(route).Path, "/")
}

// decodeFailure maps a non-2xx answer. Only the link-bearing routes, or an
// answer naming the holding identity, produce a *ConflictError; any other 409
// keeps the server's message.
func decodeFailure(route string, status int, raw []byte) error {
	var payload ErrorResponse
	_ = json.Unmarshal(raw, &payload)
	existing := strings.TrimSpace(payload.ExistingBapID)
	if status == http.StatusConflict && (existing != "" || route == PathBackup || route == PathTransfer) {
		return &ConflictError{ExistingBapID: existing}
	}
	msg := strings.TrimSpace(payload.Error)
	if msg == "" {
		msg = genericMessage(status)
	}
	return &APIError{Status: status, Message: msg}
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// IsConflict reports whether err is the backup-store link conflict.
func IsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}
