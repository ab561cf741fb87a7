package devserver

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
	manet "github.com/multiformats/go-multiaddr/net"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/bootstrap/appconfig"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/devbackend"
)

// NewServer wires the development backend from cfg. Without a configured
// secret the sessions are signed with a random per-process key.
func NewServer(cfg appconfig.ServerConfig, logger *slog.Logger) (*devbackend.Server, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		logger.Warn("no jwt secret configured, sessions will not survive restart")
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return devbackend.New(devbackend.Options{
		JWTSecret:  secret,
		SessionTTL: cfg.SessionTTL,
		MaxSkew:    cfg.MaxSkew,
		RateEvery:  cfg.RateEvery,
		RateBurst:  cfg.RateBurst,
		Registry:   reg,
		Logger:     logger,
	})
}

// ResolveListenAddr accepts a multiaddr such as /ip4/127.0.0.1/tcp/8787 or a
// plain host:port.
func ResolveListenAddr(listen string) (string, error) {
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return "", fmt.Errorf("%w: empty listen address", appconfig.ErrInvalidConfig)
	}
	if !strings.HasPrefix(listen, "/") {
		if _, _, err := net.SplitHostPort(listen); err != nil {
			return "", fmt.Errorf("%w: listen %q: %v", appconfig.ErrInvalidConfig, listen, err)
		}
		return listen, nil
	}
	addr, err := ma.NewMultiaddr(listen)
	if err != nil {
		return "", fmt.Errorf("%w: listen %q: %v", appconfig.ErrInvalidConfig, listen, err)
	}
	netAddr, err := manet.ToNetAddr(addr)
	if err != nil {
		return "", fmt.Errorf("%w: listen %q: %v", appconfig.ErrInvalidConfig, listen, err)
	}
	if _, ok := netAddr.(*net.TCPAddr); !ok {
		return "", fmt.Errorf("%w: listen %q is not a tcp address", appconfig.ErrInvalidConfig, listen)
	}
	return netAddr.String(), nil
}

func Listen(listen string) (net.Listener, error) {
	addr, err := ResolveListenAddr(listen)
	if err != nil {
		return nil, err
	}
	return net.Listen("tcp", addr)
}
