package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Network.Name)
	assert.Equal(t, DefaultDBPath, cfg.Storage.DBPath)
	assert.Equal(t, DefaultStatePath, cfg.Storage.StatePath)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, 8090, cfg.API.Port)
	assert.Equal(t, 10*time.Second, cfg.Fetcher.PollInterval)
	assert.Equal(t, 200, cfg.Fetcher.FetchLimit)
	assert.Equal(t, 4, cfg.Trader.Workers)
	assert.False(t, cfg.Telegram.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stardust.yaml")
	content := `
network:
  name: simulated
api:
  port: 9000
user:
  id: user-1
  token: secret
  account: GTRADER
fetcher:
  poll_interval: 2s
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "simulated", cfg.Network.Name)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "user-1", cfg.User.ID)
	assert.Equal(t, "secret", cfg.User.Token)
	assert.Equal(t, 2*time.Second, cfg.Fetcher.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)

	// Untouched keys keep their defaults.
	assert.Equal(t, DefaultDBPath, cfg.Storage.DBPath)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network: [unterminated"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
