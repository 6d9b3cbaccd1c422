package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_TOKEN", "access-secret")
	t.Setenv("JWT_REFRESH_TOKEN", "refresh-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/accounts")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.ServerPort)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "http://localhost:3000", cfg.CORSOrigin)
	assert.False(t, cfg.Production)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.True(t, cfg.Production)
}

func TestValidate(t *testing.T) {
	t.Run("missing access secret", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("JWT_ACCESS_TOKEN", "")

		_, err := Load()
		require.ErrorContains(t, err, "JWT_ACCESS_TOKEN")
	})

	t.Run("missing database URL", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("DATABASE_URL", "")

		_, err := Load()
		require.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("shared secret between token kinds", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("JWT_REFRESH_TOKEN", "access-secret")

		_, err := Load()
		require.ErrorContains(t, err, "must differ")
	})

	t.Run("garbled durations fall back to defaults", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("JWT_ACCESS_TTL", "soon")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	})
}
