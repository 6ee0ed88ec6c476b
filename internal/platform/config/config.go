// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"

	AuthModeJWT = "jwt"
	AuthModeDev = "dev"
)

type Config struct {
	Port string

	StorageBackend string
	DatabaseURL    string

	// Auth:
	// - Production: require JWT_* env vars and enforce bearer auth
	// - Local dev: AUTH_MODE=dev bypasses JWT verification and uses X-Debug-Subject
	AuthMode   string
	DevSubject string
	DevIssuer  string
	JWT        JWTConfig

	// MediaDir enables the filesystem object store; empty keeps images in memory.
	MediaDir     string
	MediaBaseURL string

	OrderSaveConcurrency int
	LogLevel             string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from v, applying defaults for unset keys.
func FromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORAGE_BACKEND", BackendMemory)
	v.SetDefault("AUTH_MODE", AuthModeJWT)
	v.SetDefault("DEV_SUBJECT", "dev|local")
	v.SetDefault("DEV_ISSUER", "dev")
	v.SetDefault("MEDIA_BASE_URL", "/media")
	v.SetDefault("ORDER_SAVE_CONCURRENCY", 0)
	v.SetDefault("LOG_LEVEL", "info")
	setJWTDefaults(v)

	cfg := Config{
		Port:                 v.GetString("PORT"),
		StorageBackend:       strings.ToLower(v.GetString("STORAGE_BACKEND")),
		DatabaseURL:          v.GetString("DATABASE_URL"),
		AuthMode:             strings.ToLower(v.GetString("AUTH_MODE")),
		DevSubject:           v.GetString("DEV_SUBJECT"),
		DevIssuer:            v.GetString("DEV_ISSUER"),
		MediaDir:             v.GetString("MEDIA_DIR"),
		MediaBaseURL:         strings.TrimRight(v.GetString("MEDIA_BASE_URL"), "/"),
		OrderSaveConcurrency: v.GetInt("ORDER_SAVE_CONCURRENCY"),
		LogLevel:             v.GetString("LOG_LEVEL"),
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendPostgres, BackendSQLite:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required when STORAGE_BACKEND=%s", cfg.StorageBackend)
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be one of memory, postgres, sqlite (got %q)", cfg.StorageBackend)
	}

	switch cfg.AuthMode {
	case AuthModeDev:
	case AuthModeJWT:
		jwtCfg, err := LoadJWTConfig(v)
		if err != nil {
			return Config{}, err
		}
		cfg.JWT = jwtCfg
	default:
		return Config{}, fmt.Errorf("AUTH_MODE must be jwt or dev (got %q)", cfg.AuthMode)
	}

	if cfg.OrderSaveConcurrency < 0 {
		return Config{}, fmt.Errorf("ORDER_SAVE_CONCURRENCY must be >= 0 (got %d)", cfg.OrderSaveConcurrency)
	}
	return cfg, nil
}

// Issuer is the token issuer that scopes stored subjects.
func (c Config) Issuer() string {
	if c.AuthMode == AuthModeDev {
		return c.DevIssuer
	}
	return c.JWT.Issuer
}
