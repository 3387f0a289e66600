package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, DriverSQLite, cfg.DB.Driver)
	require.Equal(t, ModeHTTP, cfg.Transport.Mode)
	require.Equal(t, time.Hour, cfg.Reconcile.Interval)
	require.True(t, cfg.Auth.Enabled)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
db:
  driver: postgres
  url: postgres://localhost/fieldlog
log:
  level: debug
reconcile:
  interval: 15m
  repair: true
rate_limit:
  per_ip: 100-M
`), 0o644))

	t.Setenv(configPathEnv, path)
	t.Setenv("FIELDLOG_SERVER_PORT", "7070")
	t.Setenv("FIELDLOG_AUTH_ADMIN_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, DriverPostgres, cfg.DB.Driver)
	require.Equal(t, "postgres://localhost/fieldlog", cfg.DB.URL)
	require.Equal(t, 15*time.Minute, cfg.Reconcile.Interval)
	require.True(t, cfg.Reconcile.Repair)
	require.Equal(t, "100-M", cfg.RateLimit.PerIP)
	require.Equal(t, "s3cret", cfg.Auth.AdminSecret)
	require.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv("FIELDLOG_SERVER_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.DB.Driver = "mysql"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.DB.Driver = DriverPostgres
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Transport.Mode = ModeStdio
	require.Error(t, bad.Validate())
	bad.Auth.DefaultActor = "user-1"
	require.NoError(t, bad.Validate())

	bad = cfg
	bad.Reconcile.Interval = 0
	require.Error(t, bad.Validate())
}

func TestLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "DEBUG"
	require.Equal(t, "DEBUG", cfg.LogLevel().String())
}
