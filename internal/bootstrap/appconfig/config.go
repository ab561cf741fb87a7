package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DurableFile  = "file"
	DurableRedis = "redis"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Backend  BackendConfig
	Storage  StorageConfig
	OAuth    OAuthConfig
	Server   ServerConfig
	Logging  LoggingConfig
	Transfer TransferConfig
}

type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	StatusCacheTTL time.Duration
}

type StorageConfig struct {
	Durable     string
	Path        string
	RedisAddr   string
	RedisPrefix string
	SessionTTL  time.Duration
}

type OAuthConfig struct {
	RedirectURL string
	Providers   map[string]OAuthProvider
}

type OAuthProvider struct {
	ClientID     string   `yaml:"clientId"`
	ClientSecret string   `yaml:"clientSecret"`
	AuthURL      string   `yaml:"authUrl"`
	TokenURL     string   `yaml:"tokenUrl"`
	Scopes       []string `yaml:"scopes"`
}

type ServerConfig struct {
	Listen     string
	JWTSecret  string
	SessionTTL time.Duration
	MaxSkew    time.Duration
	RateEvery  time.Duration
	RateBurst  int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// TransferConfig bounds how often a conflict transfer may be attempted per
// existing identity.
type TransferConfig struct {
	AttemptEvery time.Duration
	AttemptBurst int
}

func DefaultConfig() Config {
	return Config{
		Backend: BackendConfig{
			BaseURL:        "http://127.0.0.1:8787",
			RequestTimeout: 15 * time.Second,
			StatusCacheTTL: 30 * time.Second,
		},
		Storage: StorageConfig{
			Durable:     DurableFile,
			Path:        "bapauth-state.json",
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "bapauth:",
			SessionTTL:  12 * time.Hour,
		},
		OAuth: OAuthConfig{
			RedirectURL: "http://127.0.0.1:8787/api/auth/callback",
			Providers:   map[string]OAuthProvider{},
		},
		Server: ServerConfig{
			Listen:     "/ip4/127.0.0.1/tcp/8787",
			SessionTTL: 24 * time.Hour,
			MaxSkew:    10 * time.Minute,
			RateEvery:  200 * time.Millisecond,
			RateBurst:  20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Transfer: TransferConfig{
			AttemptEvery: 30 * time.Second,
			AttemptBurst: 3,
		},
	}
}

type FileConfig struct {
	Backend  FileBackendConfig  `yaml:"backend"`
	Storage  FileStorageConfig  `yaml:"storage"`
	OAuth    FileOAuthConfig    `yaml:"oauth"`
	Server   FileServerConfig   `yaml:"server"`
	Logging  FileLoggingConfig  `yaml:"logging"`
	Transfer FileTransferConfig `yaml:"transfer"`
}

type FileBackendConfig struct {
	BaseURL        string        `yaml:"baseURL"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	StatusCacheTTL time.Duration `yaml:"statusCacheTTL"`
}

type FileStorageConfig struct {
	Durable     string        `yaml:"durable"`
	Path        string        `yaml:"path"`
	RedisAddr   string        `yaml:"redisAddr"`
	RedisPrefix string        `yaml:"redisPrefix"`
	SessionTTL  time.Duration `yaml:"sessionTTL"`
}

type FileOAuthConfig struct {
	RedirectURL string                   `yaml:"redirectURL"`
	Providers   map[string]OAuthProvider `yaml:"providers"`
}

type FileServerConfig struct {
	Listen     string        `yaml:"listen"`
	JWTSecret  string        `yaml:"jwtSecret"`
	SessionTTL time.Duration `yaml:"sessionTTL"`
	MaxSkew    time.Duration `yaml:"maxSkew"`
	RateEvery  time.Duration `yaml:"rateEvery"`
	RateBurst  int           `yaml:"rateBurst"`
}

type FileLoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type FileTransferConfig struct {
	AttemptEvery time.Duration `yaml:"attemptEvery"`
	AttemptBurst int           `yaml:"attemptBurst"`
}

// LoadFromPath reads configPath (or the first default candidate that exists),
// merges it over the defaults and applies BAPAUTH_* env overrides. A missing
// default candidate is not an error; an explicit path that cannot be read or
// parsed is.
func LoadFromPath(configPath string) (Config, error) {
	cfg := DefaultConfig()

	explicit := strings.TrimSpace(configPath) != ""
	candidates := []string{"configs/bapauth.yaml", "bapauth.yaml"}
	if explicit {
		candidates = []string{configPath}
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			if explicit {
				return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
			}
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func Merge(dst *Config, src FileConfig) {
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.RequestTimeout != 0 {
		dst.Backend.RequestTimeout = src.Backend.RequestTimeout
	}
	if src.Backend.StatusCacheTTL != 0 {
		dst.Backend.StatusCacheTTL = src.Backend.StatusCacheTTL
	}

	if src.Storage.Durable != "" {
		dst.Storage.Durable = src.Storage.Durable
	}
	if src.Storage.Path != "" {
		dst.Storage.Path = src.Storage.Path
	}
	if src.Storage.RedisAddr != "" {
		dst.Storage.RedisAddr = src.Storage.RedisAddr
	}
	if src.Storage.RedisPrefix != "" {
		dst.Storage.RedisPrefix = src.Storage.RedisPrefix
	}
	if src.Storage.SessionTTL != 0 {
		dst.Storage.SessionTTL = src.Storage.SessionTTL
	}

	if src.OAuth.RedirectURL != "" {
		dst.OAuth.RedirectURL = src.OAuth.RedirectURL
	}
	if len(src.OAuth.Providers) > 0 {
		if dst.OAuth.Providers == nil {
			dst.OAuth.Providers = make(map[string]OAuthProvider, len(src.OAuth.Providers))
		}
		for name, p := range src.OAuth.Providers {
			dst.OAuth.Providers[strings.ToLower(strings.TrimSpace(name))] = p
		}
	}

	if src.Server.Listen != "" {
		dst.Server.Listen = src.Server.Listen
	}
	if src.Server.JWTSecret != "" {
		dst.Server.JWTSecret = src.Server.JWTSecret
	}
	if src.Server.SessionTTL != 0 {
		dst.Server.SessionTTL = src.Server.SessionTTL
	}
	if src.Server.MaxSkew != 0 {
		dst.Server.MaxSkew = src.Server.MaxSkew
	}
	if src.Server.RateEvery != 0 {
		dst.Server.RateEvery = src.Server.RateEvery
	}
	if src.Server.RateBurst != 0 {
		dst.Server.RateBurst = src.Server.RateBurst
	}

	if src.Logging.Level != "" {
		dst.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		dst.Logging.Format = src.Logging.Format
	}

	if src.Transfer.AttemptEvery != 0 {
		dst.Transfer.AttemptEvery = src.Transfer.AttemptEvery
	}
	if src.Transfer.AttemptBurst != 0 {
		dst.Transfer.AttemptBurst = src.Transfer.AttemptBurst
	}
}

func (c Config) Validate() error {
	switch c.Storage.Durable {
	case DurableFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("%w: storage.path is required for the file tier", ErrInvalidConfig)
		}
	case DurableRedis:
		if strings.TrimSpace(c.Storage.RedisAddr) == "" {
			return fmt.Errorf("%w: storage.redisAddr is required for the redis tier", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown durable tier %q", ErrInvalidConfig, c.Storage.Durable)
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("%w: backend.requestTimeout must be positive", ErrInvalidConfig)
	}
	if c.Storage.SessionTTL <= 0 {
		return fmt.Errorf("%w: storage.sessionTTL must be positive", ErrInvalidConfig)
	}
	return nil
}
