package devserver

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/bootstrap/appconfig"
)

func TestResolveListenAddr(t *testing.T) {
	cases := map[string]string{
		"/ip4/127.0.0.1/tcp/8787": "127.0.0.1:8787",
		"/ip6/::1/tcp/9000":       "[::1]:9000",
		"localhost:8080":          "localhost:8080",
	}
	for in, want := range cases {
		got, err := ResolveListenAddr(in)
		if err != nil {
			t.Fatalf("resolve %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("resolve %q: got %q want %q", in, got, want)
		}
	}
}

func TestResolveListenAddrRejectsNonTCP(t *testing.T) {
	for _, in := range []string{"", "/ip4/127.0.0.1/udp/8787", "/not/a/multiaddr", "no-port"} {
		if _, err := ResolveListenAddr(in); !errors.Is(err, appconfig.ErrInvalidConfig) {
			t.Fatalf("resolve %q: expected ErrInvalidConfig, got %v", in, err)
		}
	}
}

func TestNewServerWithoutSecret(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := NewServer(appconfig.DefaultConfig().Server, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if srv.Handler() == nil {
		t.Fatal("expected handler")
	}
}
