package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: postgres://localhost/test
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "usd", cfg.Market.Currency)
	assert.Equal(t, 100, cfg.Market.HotSetSize)
	assert.Equal(t, 5*time.Minute, cfg.Market.CacheTTL)
	assert.Equal(t, 5*time.Minute, cfg.Market.RefreshInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.Market.RetryBackoff)
	assert.Equal(t, 50.0, cfg.Rate.RequestsPerSecond)
}

func TestLoadParsesFullConfig(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9090
  debug: true
database:
  url: postgres://localhost/test
market:
  currency: inr
  hot_set_size: 25
  cache_ttl: 90s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "inr", cfg.Market.Currency)
	assert.Equal(t, 25, cfg.Market.HotSetSize)
	assert.Equal(t, 90*time.Second, cfg.Market.CacheTTL)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9090
database:
  url: postgres://localhost/file
`)

	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://localhost/env")
	t.Setenv("COINGECKO_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, "postgres://localhost/env", cfg.Database.URL)
	assert.Equal(t, "from-env", cfg.Market.APIKey)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 8080
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url")
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
