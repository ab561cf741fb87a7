package appconfig

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "BAPAUTH_"

func ApplyEnvOverrides(cfg *Config) {
	if v := envString("BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	cfg.Backend.RequestTimeout = envDurationWithFallback("BACKEND_TIMEOUT", cfg.Backend.RequestTimeout)

	if v := strings.ToLower(envString("STORAGE_DURABLE")); v != "" {
		cfg.Storage.Durable = v
	}
	if v := envString("STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := envString("REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	cfg.Storage.SessionTTL = envDurationWithFallback("SESSION_TTL", cfg.Storage.SessionTTL)

	if v := envString("LISTEN"); v != "" {
		cfg.Server.Listen = v
	}
	if v := envString("JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	cfg.Server.RateBurst = envIntWithFallback("RATE_BURST", cfg.Server.RateBurst)

	if v := envString("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := envString("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func envString(key string) string {
	return strings.TrimSpace(os.Getenv(envPrefix + key))
}

func envIntWithFallback(key string, fallback int) int {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDurationWithFallback(key string, fallback time.Duration) time.Duration {
	raw := envString(key)
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
