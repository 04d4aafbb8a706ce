package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"SLASHID_LOG_ENV", "SLASHID_ENVIRONMENT", "SLASHID_ORG_ID", "SLASHID_API_KEY",
		"SLASHID_API_BASE_URL", "SLASHID_HTTP_TIMEOUT_SEC", "SLASHID_JWKS_TTL_SEC",
		"SLASHID_JWKS_RATE_LIMITED", "WEBHOOK_RECEIVER_ADDR", "WEBHOOK_RECEIVER_PATH",
		"REDIS_URL", "DATABASE_URL",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "sandbox", cfg.Environment)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Hour, cfg.JWKSTTL)
	assert.True(t, cfg.JWKSRateLimited)
	assert.Equal(t, ":8080", cfg.ReceiverAddr)
	assert.Equal(t, "/slashid/webhook", cfg.ReceiverPath)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SLASHID_ENVIRONMENT", "production")
	t.Setenv("SLASHID_ORG_ID", "org")
	t.Setenv("SLASHID_API_KEY", "key")
	t.Setenv("SLASHID_HTTP_TIMEOUT_SEC", "5")
	t.Setenv("SLASHID_JWKS_TTL_SEC", "60")
	t.Setenv("SLASHID_JWKS_RATE_LIMITED", "false")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg := Load()

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "org", cfg.OrganizationID)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, time.Minute, cfg.JWKSTTL)
	assert.False(t, cfg.JWKSRateLimited)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("SLASHID_HTTP_TIMEOUT_SEC", "soon")
	t.Setenv("SLASHID_JWKS_RATE_LIMITED", "maybe")

	assert.Equal(t, 30*time.Second, envDur("SLASHID_HTTP_TIMEOUT_SEC", 30)*time.Second)
	assert.True(t, envBool("SLASHID_JWKS_RATE_LIMITED", true))
}
