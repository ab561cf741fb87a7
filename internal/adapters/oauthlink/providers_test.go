package oauthlink

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestAuthCodeURLUsesTemplateAndPKCE(t *testing.T) {
	p, err := New("http://localhost:8787/api/auth/callback", map[string]ProviderConfig{
		"GitHub": {ClientID: "client-1"},
	})
	if err != nil {
		t.Fatalf("new providers: %v", err)
	}
	raw, verifier, err := p.AuthCodeURL("github", "state-1")
	if err != nil {
		t.Fatalf("auth url: %v", err)
	}
	if verifier == "" {
		t.Fatal("expected a pkce verifier")
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	q := u.Query()
	if u.Host != "github.com" || q.Get("client_id") != "client-1" || q.Get("state") != "state-1" {
		t.Fatalf("unexpected authorize url %s", raw)
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		t.Fatalf("missing pkce challenge in %s", raw)
	}
	if q.Get("redirect_uri") != "http://localhost:8787/api/auth/callback/github" {
		t.Fatalf("unexpected redirect uri %q", q.Get("redirect_uri"))
	}
}

func TestUnknownProviderWithoutURLsIsRejected(t *testing.T) {
	if _, err := New("http://x", map[string]ProviderConfig{"myspace": {ClientID: "c"}}); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	p, _ := New("http://x", nil)
	if _, _, err := p.AuthCodeURL("github", "s"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestExchangeResolvesProfile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.Form.Get("code") != "code-1" || r.Form.Get("code_verifier") != "verifier-1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"id":12345,"login":"satoshi","email":"s@example.test"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p, err := New("http://localhost/callback", map[string]ProviderConfig{
		"github": {
			ClientID:    "c",
			AuthURL:     srv.URL + "/authorize",
			TokenURL:    srv.URL + "/token",
			UserInfoURL: srv.URL + "/user",
		},
	})
	if err != nil {
		t.Fatalf("new providers: %v", err)
	}
	info, err := p.Exchange(context.Background(), "github", "code-1", "verifier-1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if info.Provider != "github" || info.ProviderAccountID != "12345" || info.Name != "satoshi" {
		t.Fatalf("unexpected pending info %+v", info)
	}
}

func TestParseProfileShapes(t *testing.T) {
	cases := map[string]string{
		`{"sub":"g-1","email":"a@b"}`:           "g-1",
		`{"id":"str-id"}`:                       "str-id",
		`{"data":{"id":"tw-9","name":"T"}}`:     "tw-9",
		`{"id":9007199254740993,"login":"big"}`: "9007199254740993",
	}
	for raw, want := range cases {
		info, err := parseProfile([]byte(raw))
		if err != nil {
			t.Fatalf("parse %s: %v", raw, err)
		}
		if info.ProviderAccountID != want {
			t.Fatalf("parse %s: got %q want %q", raw, info.ProviderAccountID, want)
		}
	}
	if _, err := parseProfile([]byte(`{"email":"x"}`)); !errors.Is(err, ErrProfileUnavailable) {
		t.Fatalf("expected ErrProfileUnavailable, got %v", err)
	}
}
