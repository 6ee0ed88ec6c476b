package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// JWTConfig configures JWT verification against a JWKS endpoint.
type JWTConfig struct {
	Issuer   string
	Audience string
	JWKSURL  string

	ClockSkew              time.Duration
	JWKSRefreshInterval    time.Duration
	JWKSMinRefreshInterval time.Duration

	HTTPTimeout time.Duration
}

func setJWTDefaults(v *viper.Viper) {
	v.SetDefault("JWT_CLOCK_SKEW", "30s")
	// Refresh periodically to pick up key rotation even if an old key is still cached.
	v.SetDefault("JWT_JWKS_REFRESH_INTERVAL", "5m")
	// Bound refresh frequency when a token presents an unknown kid.
	v.SetDefault("JWT_JWKS_MIN_REFRESH_INTERVAL", "10s")
	v.SetDefault("JWT_HTTP_TIMEOUT", "5s")
}

// LoadJWTConfig reads the JWT_* settings. Issuer, audience and JWKS URL are required.
func LoadJWTConfig(v *viper.Viper) (JWTConfig, error) {
	cfg := JWTConfig{
		Issuer:   v.GetString("JWT_ISSUER"),
		Audience: v.GetString("JWT_AUDIENCE"),
		JWKSURL:  v.GetString("JWT_JWKS_URL"),
	}
	if cfg.Issuer == "" || cfg.Audience == "" || cfg.JWKSURL == "" {
		return JWTConfig{}, fmt.Errorf("missing required env vars: JWT_ISSUER, JWT_AUDIENCE, JWT_JWKS_URL")
	}

	durations := []struct {
		key     string
		example string
		dst     *time.Duration
	}{
		{"JWT_CLOCK_SKEW", "30s", &cfg.ClockSkew},
		{"JWT_JWKS_REFRESH_INTERVAL", "5m", &cfg.JWKSRefreshInterval},
		{"JWT_JWKS_MIN_REFRESH_INTERVAL", "10s", &cfg.JWKSMinRefreshInterval},
		{"JWT_HTTP_TIMEOUT", "5s", &cfg.HTTPTimeout},
	}
	for _, d := range durations {
		parsed, err := parseDuration(v, d.key, d.example)
		if err != nil {
			return JWTConfig{}, err
		}
		*d.dst = parsed
	}
	return cfg, nil
}

func parseDuration(v *viper.Viper, key, example string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. %s): %w", key, example, err)
	}
	return d, nil
}
