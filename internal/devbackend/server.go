package devbackend

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/platform/ratelimiter"
)

type Options struct {
	JWTSecret  []byte
	SessionTTL time.Duration
	MaxSkew    time.Duration
	RateEvery  time.Duration
	RateBurst  int
	// Registry backs /metrics. Nil disables the endpoint.
	Registry *prometheus.Registry
	Logger   *slog.Logger
	Now      func() time.Time
}

// Server is the development identity backend.
type Server struct {
	echo     *echo.Echo
	store    *Store
	sessions *SessionIssuer
	auth     *AuthMiddleware
	requests *prometheus.CounterVec
	logger   *slog.Logger
}

func New(opts Options) (*Server, error) {
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("devbackend: jwt secret required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "devbackend")

	s := &Server{
		store:    NewStore(now),
		sessions: NewSessionIssuer(opts.JWTSecret, opts.SessionTTL, now),
		auth:     NewAuthMiddleware(opts.MaxSkew, ratelimiter.New(opts.RateEvery, opts.RateBurst, 0), now, logger),
		logger:   logger,
	}
	if opts.Registry != nil {
		s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bapauth",
			Subsystem: "devbackend",
			Name:      "requests_total",
			Help:      "Handled requests by route and status code.",
		}, []string{"route", "code"})
		if err := opts.Registry.Register(s.requests); err != nil {
			return nil, err
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(s.countRequests)
	if opts.Registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	}
	s.RegisterRoutes(e)
	s.echo = e
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

// Store exposes the backing store for inspection in tests and tooling.
func (s *Server) Store() *Store {
	return s.store
}

// Serve runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("devbackend listening", "addr", ln.Addr().String())
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) countRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if s.requests != nil {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			s.requests.WithLabelValues(route, strconv.Itoa(c.Response().Status)).Inc()
		}
		return err
	}
}
