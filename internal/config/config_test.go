package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.False(t, Exists())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	cfg.Server.Addr = "0.0.0.0:9000"
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = "0123456789abcdef0123"
	cfg.Auth.AllowedUsers = []string{"a@example.com", "b@example.com"}
	cfg.Storage.BlobBackend = BlobS3
	cfg.Storage.S3Bucket = "statements"

	require.NoError(t, Save(cfg))
	assert.True(t, Exists())

	info, err := os.Stat(ConfigPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general]\nlog_level = \"debug\"\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.Equal(t, "development", cfg.General.Environment)
	assert.Equal(t, 7, cfg.Orders.CacheDays)
}

func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[general\n"), 0o600))

	_, err := LoadFile(path)
	assert.ErrorContains(t, err, "parsing config")
}

func TestApplyEnvOverlay(t *testing.T) {
	t.Setenv("HOUSEHOLD_DB_PATH", "/tmp/h.db")
	t.Setenv("HOUSEHOLD_AUTH_ALLOWED_USERS", "x@example.com,y@example.com")
	t.Setenv("HOUSEHOLD_ORDERS_CACHE_DAYS", "3")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(&cfg))

	assert.Equal(t, "/tmp/h.db", cfg.Storage.DatabasePath())
	assert.Equal(t, []string{"x@example.com", "y@example.com"}, cfg.Auth.AllowedUsers)
	assert.Equal(t, 3, cfg.Orders.CacheDays)
	assert.Equal(t, "127.0.0.1:8787", cfg.Server.Addr, "unset variables keep file values")
}

func TestApplyEnvBadValue(t *testing.T) {
	t.Setenv("HOUSEHOLD_ORDERS_CACHE_DAYS", "soon")
	cfg := DefaultConfig()
	assert.Error(t, ApplyEnv(&cfg))
}

func TestLoadDotEnvMissingIsFine(t *testing.T) {
	assert.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HOUSEHOLD_THEME=from-file\nHOUSEHOLD_TEST_ONLY=yes\n"), 0o600))
	t.Setenv("HOUSEHOLD_THEME", "from-env")
	t.Setenv("HOUSEHOLD_TEST_ONLY", "")
	os.Unsetenv("HOUSEHOLD_TEST_ONLY")

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv("HOUSEHOLD_THEME"))
	assert.Equal(t, "yes", os.Getenv("HOUSEHOLD_TEST_ONLY"))
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Storage.BlobBackend = "ftp"
	cfg.Auth.Enabled = true
	cfg.Auth.Secret = "short"
	cfg.Scheduler.Timezone = "Mars/Olympus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blob_backend")
	assert.Contains(t, err.Error(), "auth.secret")
	assert.Contains(t, err.Error(), "Mars/Olympus")

	cfg = DefaultConfig()
	cfg.Storage.BlobBackend = BlobS3
	assert.ErrorContains(t, cfg.Validate(), "s3_bucket")
}

func TestDerivedPaths(t *testing.T) {
	data := t.TempDir()
	t.Setenv("XDG_DATA_HOME", data)

	var s StorageConfig
	assert.Equal(t, filepath.Join(data, "household", "household.db"), s.DatabasePath())
	assert.Equal(t, filepath.Join(data, "household", "blobs"), s.BlobDirectory())
}

func TestRefreshIntervalFloor(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultConfig().TUI.RefreshInterval())
	assert.Equal(t, 5*time.Second, TUIConfig{RefreshIntervalSec: 1}.RefreshInterval())
}
