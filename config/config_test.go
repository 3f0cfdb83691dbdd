package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/igne-dev/pluginhost/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ignehost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
apiVersion: 1.5.12
vault: /srv/vaults/main
catalog: https://mirror.example.com
contract: contracts/api.json
cacheTTL: 10m
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, "1.5.12", cfg.APIVersion)
		assert.Equal(t, "/srv/vaults/main", cfg.VaultDir)
		assert.Equal(t, "https://mirror.example.com", cfg.CatalogURL)
		assert.Equal(t, "contracts/api.json", cfg.ContractPath)
		assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
		assert.Equal(t, "1.5.12", cfg.HostAPIVersion().String())
	})

	t.Run("defaults applied", func(t *testing.T) {
		path := writeConfig(t, `
apiVersion: 1.5.12
contract: contracts/api.json
`)
		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultCatalogURL, cfg.CatalogURL)
		assert.Equal(t, config.DefaultCacheTTL, cfg.CacheTTL)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("missing apiVersion", func(t *testing.T) {
		path := writeConfig(t, `contract: contracts/api.json`)
		_, err := config.Load(path)
		assert.Error(t, err)
	})

	t.Run("malformed apiVersion", func(t *testing.T) {
		path := writeConfig(t, `
apiVersion: not-a-version
contract: contracts/api.json
`)
		_, err := config.Load(path)
		assert.Error(t, err)
	})

	t.Run("missing contract path", func(t *testing.T) {
		path := writeConfig(t, `apiVersion: 1.5.12`)
		_, err := config.Load(path)
		assert.Error(t, err)
	})
}

func TestSaveRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "ignehost.yaml")
	cfg := &config.Config{
		APIVersion:   "1.5.12",
		VaultDir:     "/srv/vaults/main",
		ContractPath: "contracts/api.json",
		CacheTTL:     time.Minute,
	}
	require.NoError(t, config.Save(path, cfg))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.APIVersion, loaded.APIVersion)
	assert.Equal(t, cfg.VaultDir, loaded.VaultDir)
	assert.Equal(t, cfg.CacheTTL, loaded.CacheTTL)
	assert.Equal(t, config.DefaultCatalogURL, loaded.CatalogURL)
}

func TestSaveRejectsInvalid(t *testing.T) {
	t.Parallel()

	err := config.Save(filepath.Join(t.TempDir(), "x.yaml"), &config.Config{})
	assert.Error(t, err)
}
