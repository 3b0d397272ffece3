package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DECENTRA_ENVIRONMENT", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "jwt-token", cfg.Auth.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "decentra-api", cfg.Auth.Issuer)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.False(t, cfg.Auth.RevokeOnLogout)
	assert.Equal(t, 2*time.Minute, cfg.Analyzer.Timeout)
	assert.Equal(t, "photos:analyze", cfg.Worker.Stream)
	assert.Equal(t, 5, cfg.Worker.MaxAttempts)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DECENTRA_ENVIRONMENT", "production")
	t.Setenv("DECENTRA_AUTH_JWTSECRET", "s3cret")
	t.Setenv("DECENTRA_AUTH_TOKENTTL", "90m")
	t.Setenv("DECENTRA_POSTGRES_DSN", "postgres://localhost/decentra")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Auth.CookieSecure, "production cookies default to Secure")
	require.NoError(t, cfg.Validate())
}

func TestCookieSecureExplicitlyDisabled(t *testing.T) {
	t.Setenv("DECENTRA_ENVIRONMENT", "production")
	t.Setenv("DECENTRA_AUTH_COOKIESECURE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Auth.CookieSecure)
}

func TestValidate(t *testing.T) {
	cfg := &AppConfig{}
	cfg.Auth.TokenTTL = time.Hour
	cfg.Postgres.DSN = "postgres://x"
	assert.ErrorIs(t, cfg.Validate(), ErrMissingJWTSecret)

	cfg.Auth.JWTSecret = "k"
	cfg.Auth.TokenTTL = 0
	assert.Error(t, cfg.Validate())

	cfg.Auth.TokenTTL = time.Hour
	assert.NoError(t, cfg.Validate())
}
