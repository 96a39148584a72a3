package config_test

import (
	"testing"
	"time"

	"github.com/hauswerk/go-admin-auth/internal/config"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, "http://localhost:8080", cfg.PlatformURL)
	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, 120*time.Second, cfg.PollTimeout)
	require.Equal(t, 60*time.Second, cfg.ResendCooldown)
	require.Equal(t, ":8080", cfg.Addr())
	require.True(t, cfg.IsDev())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_TIMEOUT", "30s")
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "PROD")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	require.Equal(t, 30*time.Second, cfg.PollTimeout)
	require.Equal(t, ":9090", cfg.Addr())
	require.False(t, cfg.IsDev())
}

func TestLoad_RejectsIntervalAboveTimeout(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "3m")
	t.Setenv("POLL_TIMEOUT", "2m")

	_, err := config.Load()
	require.Error(t, err)
}
