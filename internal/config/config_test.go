package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "dispatch_sends", cfg.AMQP.Queue)
	assert.Equal(t, 8, cfg.Dispatch.EnqueueWorkers)
	assert.Equal(t, 10*time.Second, cfg.Dispatch.LookupTimeout())
}

func TestLoadFromFileWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
database:
  host: db.internal
  password: from-file
dispatch:
  enqueue_workers: 3
  log_fetch_timeout_seconds: 2
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("DB_PASSWORD", "from-env")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "from-env", cfg.Database.Password, "environment wins over the file for secrets")
	assert.Equal(t, 3, cfg.Dispatch.EnqueueWorkers)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.LogFetchTimeout())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	t.Setenv("CONFIG_PATH", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p",
		Name: "dispatch", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://u:p@localhost:5432/dispatch?sslmode=disable", d.DSN())
}
