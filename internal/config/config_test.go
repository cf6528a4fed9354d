package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8005", cfg.Port)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.ResetTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, 30*time.Second, cfg.DBConnectRetry)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Cache.Methods["GET"])
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("JWT_ALGORITHM", "hs512")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("RATE_LIMIT_BURST", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, "HS512", cfg.JWTAlgorithm)
	assert.Equal(t, "cache:6380", cfg.Redis.Addr)
	assert.Equal(t, 50, cfg.RateLimit.Capacity)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestValidateProductionRules(t *testing.T) {
	cfg := Config{
		Env:            "production",
		JWTSecret:      "short",
		JWTAlgorithm:   "HS256",
		AccessTTL:      time.Minute,
		RefreshTTL:     time.Hour,
		ResetTTL:       time.Hour,
		BcryptCost:     12,
		RequestTimeout: time.Second,
	}
	assert.ErrorContains(t, cfg.Validate(), "at least 32")

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.ExposeResetToken = true
	assert.ErrorContains(t, cfg.Validate(), "EXPOSE_RESET_TOKEN")

	cfg.ExposeResetToken = false
	assert.NoError(t, cfg.Validate())
}

func TestRateLimitNormalize(t *testing.T) {
	c := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: 0}.normalize()

	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, time.Second, c.RefillInterval)
	assert.Equal(t, 5*time.Second, c.TTL)
}

func TestLoadNotifier(t *testing.T) {
	t.Setenv("NOTIFIER_FILE", "/tmp/events.log")
	t.Setenv("NOTIFIER_MAX_BACKUPS", "2")

	cfg, err := LoadNotifier()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/events.log", cfg.File)
	assert.Equal(t, 2, cfg.MaxBackups)
	assert.Equal(t, 10, cfg.MaxSizeMB)
	assert.NotEmpty(t, cfg.RabbitMQURL)
}
