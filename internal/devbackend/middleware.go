package devbackend

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/crypto"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/ratelimiter"
)

const (
	ctxAddress = "signerAddress"
	maxBody    = 1 << 20
)

// AuthMiddleware verifies X-Auth-Token on every protected route. A token is
// accepted once; the signer address is rate limited.
type AuthMiddleware struct {
	maxSkew time.Duration
	seen    *cache.Cache
	limiter *ratelimiter.MapLimiter
	now     func() time.Time
	logger  *slog.Logger
}

func NewAuthMiddleware(maxSkew time.Duration, limiter *ratelimiter.MapLimiter, now func() time.Time, logger *slog.Logger) *AuthMiddleware {
	if maxSkew <= 0 {
		maxSkew = crypto.DefaultMaxSkew
	}
	return &AuthMiddleware{
		maxSkew: maxSkew,
		seen:    cache.New(2*maxSkew, maxSkew),
		limiter: limiter,
		now:     now,
		logger:  logger,
	}
}

func (m *AuthMiddleware) RequireSignature(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(crypto.AuthHeader)
		if token == "" {
			return unauthorized(c, "Missing auth token")
		}
		body, err := readBody(c)
		if err != nil {
			return badRequest(c, "Invalid request body")
		}
		verified, err := m.verify(token, c.Request().URL.Path, body)
		if err != nil {
			return m.reject(c, err)
		}
		c.Set(ctxAddress, verified.Address)
		return next(c)
	}
}

// verify is shared with sign-in, where the token travels in the body.
func (m *AuthMiddleware) verify(token, path string, body []byte) (crypto.VerifiedToken, error) {
	now := m.now()
	verified, err := crypto.VerifyRequest(token, path, body, now, m.maxSkew)
	if err != nil {
		return crypto.VerifiedToken{}, err
	}
	if err := m.seen.Add(token, struct{}{}, cache.DefaultExpiration); err != nil {
		return crypto.VerifiedToken{}, errReplayed
	}
	if !m.limiter.Allow(verified.Address, now) {
		return crypto.VerifiedToken{}, errRateLimited
	}
	return verified, nil
}

var (
	errReplayed    = errors.New("auth token already used")
	errRateLimited = errors.New("too many requests")
)

func (m *AuthMiddleware) reject(c echo.Context, err error) error {
	m.logger.Warn("signed request rejected", "operation", c.Request().URL.Path, "error", err.Error())
	switch {
	case errors.Is(err, errRateLimited):
		return fail(c, http.StatusTooManyRequests, "Too many requests")
	case errors.Is(err, crypto.ErrTokenExpired):
		return unauthorized(c, "Auth token expired")
	default:
		return unauthorized(c, "Invalid auth token")
	}
}

func readBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, maxBody))
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

func signerAddress(c echo.Context) string {
	address, _ := c.Get(ctxAddress).(string)
	return address
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				"method", v.Method,
				"path", v.URIPath,
				"status", strconv.Itoa(v.Status),
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	})
}
