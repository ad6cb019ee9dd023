package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata"))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, 20, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, 12*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, 30*time.Minute, cfg.Auth.Reset.TokenTTL)
	require.Equal(t, "root-admin", cfg.Auth.Bootstrap.Username)

	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, "smtp.example.com", cfg.Email.SMTP.Host)
	require.Equal(t, 2525, cfg.Email.SMTP.Port)
	require.False(t, cfg.Email.SMTP.UseTLS)

	require.Equal(t, 25, cfg.Newsletter.BatchSize)
	require.Equal(t, 250*time.Millisecond, cfg.Newsletter.BatchDelay)

	require.Equal(t, "https://driftline.example", cfg.Site.BaseURL)
	require.Equal(t, "sales@driftline.example", cfg.Site.LeadNotify)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, 100, cfg.Server.RateLimit.Requests)
	require.True(t, cfg.Server.CSRF.Enabled)

	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "./data/driftline.sqlite", cfg.Database.Path)

	require.Equal(t, 24*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, 48, cfg.Auth.Session.TokenLength)
	require.Equal(t, time.Hour, cfg.Auth.Reset.TokenTTL)
	require.Equal(t, 32, cfg.Auth.Reset.TokenLength)

	require.False(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 587, cfg.Email.SMTP.Port)
	require.Equal(t, 10*time.Second, cfg.Email.SMTP.Timeout)

	require.Equal(t, 10, cfg.Newsletter.BatchSize)
	require.Equal(t, time.Second, cfg.Newsletter.BatchDelay)

	require.True(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
}
