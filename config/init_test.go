package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.HTTPPort)
	require.Equal(t, "", cfg.Database.Driver)
	require.Equal(t, "db", cfg.Sequence.Backend)
	require.Equal(t, 30, cfg.Assignment.PastWindowDays)
	require.Equal(t, 90, cfg.Assignment.FutureWindowDays)
	require.Equal(t, "fs", cfg.QR.Storage)
	require.Equal(t, time.Hour, cfg.Jobs.OverdueInterval)
	require.Equal(t, 30*time.Second, cfg.PRP.Timeout)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := chdirTemp(t)
	file := filepath.Join(dir, "inventory.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
server:
  http_port: "9090"
database:
  driver: postgres
  dsn: postgres://u:p@localhost/inv
qr:
  storage: s3
  s3:
    bucket: qr-codes
jobs:
  overdue_interval: 15m
`), 0o600))
	t.Setenv("CONFIG_FILE", file)
	t.Setenv("LOGS_LEVEL", "debug")
	t.Setenv("ASSIGNMENT_PAST_WINDOW_DAYS", "14")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Server.HTTPPort)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "qr-codes", cfg.QR.S3.Bucket)
	require.Equal(t, 15*time.Minute, cfg.Jobs.OverdueInterval)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 14, cfg.Assignment.PastWindowDays)
}

func TestDotEnvIsLoaded(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("SERVER_HTTP_PORT", "")
	require.NoError(t, os.Unsetenv("SERVER_HTTP_PORT"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_HTTP_PORT=7070\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.Server.HTTPPort)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.Server.Address = "0.0.0.0"
		c.Server.HTTPPort = "8080"
		c.Sequence.Backend = "db"
		c.QR.Enabled = true
		c.QR.Storage = "fs"
		c.QR.Dir = "./qr"
		return c
	}
	require.NoError(t, validate(base()))

	cases := map[string]func(c *Config){
		"unknown driver":         func(c *Config) { c.Database.Driver = "sqlite" },
		"driver without dsn":     func(c *Config) { c.Database.Driver = "postgres" },
		"redis sequence no addr": func(c *Config) { c.Sequence.Backend = "redis" },
		"unknown sequence":       func(c *Config) { c.Sequence.Backend = "uuid" },
		"s3 without bucket":      func(c *Config) { c.QR.Storage = "s3" },
		"unknown qr storage":     func(c *Config) { c.QR.Storage = "ftp" },
		"placeholder secret":     func(c *Config) { c.PRP.SharedSecret = "CHANGE_ME" },
		"empty port":             func(c *Config) { c.Server.HTTPPort = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			require.Error(t, validate(c))
		})
	}
}
