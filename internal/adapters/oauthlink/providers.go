package oauthlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/pkg/models"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported oauth provider")
	ErrProfileUnavailable  = errors.New("oauth profile could not be loaded")
)

type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

type providerTemplate struct {
	endpoint    oauth2.Endpoint
	userInfoURL string
	scopes      []string
}

var templates = map[string]providerTemplate{
	"github": {
		endpoint: oauth2.Endpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		},
		userInfoURL: "https://api.github.com/user",
		scopes:      []string{"read:user", "user:email"},
	},
	"google": {
		endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL: "https://oauth2.googleapis.com/token",
		},
		userInfoURL: "https://openidconnect.googleapis.com/v1/userinfo",
		scopes:      []string{"openid", "email", "profile"},
	},
	"twitter": {
		endpoint: oauth2.Endpoint{
			AuthURL:  "https://twitter.com/i/oauth2/authorize",
			TokenURL: "https://api.twitter.com/2/oauth2/token",
		},
		userInfoURL: "https://api.twitter.com/2/users/me",
		scopes:      []string{"users.read", "tweet.read"},
	},
}

type provider struct {
	config      *oauth2.Config
	userInfoURL string
}

// Providers builds authorize URLs for linking an OAuth account to an
// identity and resolves a callback code into the account's profile.
type Providers struct {
	byName map[string]provider
}

// New fills endpoints and scopes from the built-in templates. Explicit URLs in
// cfg win, which also allows providers without a template.
func New(redirectURL string, cfg map[string]ProviderConfig) (*Providers, error) {
	out := &Providers{byName: make(map[string]provider, len(cfg))}
	for rawName, pc := range cfg {
		name := strings.ToLower(strings.TrimSpace(rawName))
		tpl := templates[name]
		endpoint := tpl.endpoint
		if pc.AuthURL != "" {
			endpoint.AuthURL = pc.AuthURL
		}
		if pc.TokenURL != "" {
			endpoint.TokenURL = pc.TokenURL
		}
		if endpoint.AuthURL == "" || endpoint.TokenURL == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
		}
		scopes := tpl.scopes
		if len(pc.Scopes) > 0 {
			scopes = pc.Scopes
		}
		userInfo := tpl.userInfoURL
		if pc.UserInfoURL != "" {
			userInfo = pc.UserInfoURL
		}
		out.byName[name] = provider{
			config: &oauth2.Config{
				ClientID:     pc.ClientID,
				ClientSecret: pc.ClientSecret,
				Endpoint:     endpoint,
				RedirectURL:  strings.TrimRight(redirectURL, "/") + "/" + name,
				Scopes:       scopes,
			},
			userInfoURL: userInfo,
		}
	}
	return out, nil
}

func (p *Providers) Names() []string {
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthCodeURL returns the authorize URL and the PKCE verifier the caller must
// keep for Exchange.
func (p *Providers) AuthCodeURL(name, state string) (string, string, error) {
	prov, ok := p.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	verifier := oauth2.GenerateVerifier()
	url := prov.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	return url, verifier, nil
}

// Exchange trades a callback code for the provider account the user signed
// in with.
func (p *Providers) Exchange(ctx context.Context, name, code, verifier string) (models.PendingOAuthSignupInfo, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	prov, ok := p.byName[name]
	if !ok {
		return models.PendingOAuthSignupInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := prov.config.Exchange(ctx, code, opts...)
	if err != nil {
		return models.PendingOAuthSignupInfo{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, prov.userInfoURL, nil)
	if err != nil {
		return models.PendingOAuthSignupInfo{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := prov.config.Client(ctx, tok).Do(req)
	if err != nil {
		return models.PendingOAuthSignupInfo{}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return models.PendingOAuthSignupInfo{}, fmt.Errorf("%w: status %d", ErrProfileUnavailable, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.PendingOAuthSignupInfo{}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	info, err := parseProfile(raw)
	if err != nil {
		return models.PendingOAuthSignupInfo{}, err
	}
	info.Provider = name
	return info, nil
}

// parseProfile understands the github (numeric id), google (sub) and twitter
// (data.id) profile shapes.
func parseProfile(raw []byte) (models.PendingOAuthSignupInfo, error) {
	var profile struct {
		ID    json.RawMessage `json:"id"`
		Sub   string          `json:"sub"`
		Email string          `json:"email"`
		Name  string          `json:"name"`
		Login string          `json:"login"`
		Data  *struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return models.PendingOAuthSignupInfo{}, fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	info := models.PendingOAuthSignupInfo{Email: profile.Email, Name: profile.Name}
	switch {
	case profile.Sub != "":
		info.ProviderAccountID = profile.Sub
	case len(profile.ID) > 0:
		info.ProviderAccountID = rawID(profile.ID)
	case profile.Data != nil:
		info.ProviderAccountID = profile.Data.ID
		info.Name = profile.Data.Name
	}
	if info.Name == "" {
		info.Name = profile.Login
	}
	if info.ProviderAccountID == "" {
		return models.PendingOAuthSignupInfo{}, fmt.Errorf("%w: profile has no account id", ErrProfileUnavailable)
	}
	return info, nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
