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
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Sync.RetryCount)
	assert.Equal(t, 3*time.Second, cfg.Sync.RetryDelay)
	assert.Equal(t, time.Second, cfg.IPFS.Timeout)
	assert.Equal(t, 20*time.Minute, cfg.PayoutSync.QRExpiry)
	assert.Equal(t, 2, cfg.Remarket.Limit)
	assert.Equal(t, "0xf209d2b723b6417cbf04c07e733bee776105a073", cfg.Chain.Networks["rinkeby"].Registry)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := `
env:
  name: prod
  active_network: mainnet
database:
  driver: sqlite
  path: /tmp/x.db
chain:
  networks:
    mainnet:
      rpc_url: http://node:8545
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "http://node:8545", cfg.Chain.Networks["mainnet"].RpcUrl)

	env := cfg.Environment()
	assert.False(t, env.NetworkGuard)
	assert.False(t, env.Suppresses("mainnet"))
	assert.Equal(t, "mainnet", env.ActiveNetwork)
}

func TestEnvironmentGuard(t *testing.T) {
	cfg := &Config{Env: EnvConfig{Name: "dev"}}
	assert.True(t, cfg.Environment().Suppresses("mainnet"))
	assert.False(t, cfg.Environment().Suppresses("rinkeby"))

	cfg = &Config{Env: EnvConfig{Name: "prod", Debug: true}}
	assert.True(t, cfg.Environment().NetworkGuard)

	off := false
	cfg = &Config{Env: EnvConfig{Name: "dev", NetworkGuard: &off}}
	assert.False(t, cfg.Environment().Suppresses("mainnet"))
}
