package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Server.Environment)
	assert.Equal(t, "memory", cfg.Session.Driver)
	assert.Equal(t, 12*time.Second, cfg.API.ScheduleTimeout)
	assert.Equal(t, 1, cfg.API.ScheduleRetries)
	assert.Equal(t, 120*time.Second, cfg.Auth.OTPTTL)
	assert.True(t, cfg.Auth.DemoEnabled)
	assert.False(t, cfg.Auth.AccessDeniedRecovery)
	assert.False(t, cfg.Session.Secure)
	assert.Equal(t, 100, cfg.Server.RateLimit.Limit)
	assert.Equal(t, 5, cfg.Server.RateLimit.IdentifierLimit)
	assert.Equal(t, time.Minute, cfg.Server.RateLimit.Window)
}

func TestLoadIntegerFallbacks(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RATE_LIMIT", "")
	t.Setenv("RATE_LIMIT_IDENTIFIER", "five")
	t.Setenv("RATE_LIMIT_WINDOW", " 30 ")
	t.Setenv("SCHEDULE_RETRIES", "2x")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.Server.RateLimit.Limit)
	assert.Equal(t, 5, cfg.Server.RateLimit.IdentifierLimit)
	assert.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)
	assert.Equal(t, 1, cfg.API.ScheduleRetries)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("API_BASE", "https://api.medsync.example/")
	t.Setenv("SESSION_DRIVER", "Redis")
	t.Setenv("ACCESS_DENIED_RECOVERY", "true")
	t.Setenv("DEMO_AUTH_ENABLED", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.medsync.example", cfg.API.BaseURL)
	assert.Equal(t, "redis", cfg.Session.Driver)
	assert.True(t, cfg.Auth.AccessDeniedRecovery)
	assert.False(t, cfg.Auth.DemoEnabled, "invalid bool falls back to the production default")
	assert.True(t, cfg.Session.Secure)
}
