// Package config loads and persists the host runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// Defaults applied when a field is absent from the file.
const (
	DefaultCatalogURL = "https://catalog.igne.dev"
	DefaultCacheTTL   = 5 * time.Minute
)

// Config is the host runtime configuration.
type Config struct {
	// APIVersion is the scripting-API version this host emulates.
	APIVersion string `yaml:"apiVersion"`

	// VaultDir is the vault root. Empty means the default vault location.
	VaultDir string `yaml:"vault,omitempty"`

	// CatalogURL is the plugin catalog base URL.
	CatalogURL string `yaml:"catalog,omitempty"`

	// ContractPath locates the pinned contract snapshot.
	ContractPath string `yaml:"contract"`

	// CacheTTL bounds how long catalog documents are cached.
	CacheTTL time.Duration `yaml:"cacheTTL,omitempty"`
}

// Load reads a config file. A missing file is an error; use Default for a
// fresh setup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %q: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config file, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config %q: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.CatalogURL == "" {
		c.CatalogURL = DefaultCatalogURL
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
}

// Validate checks the fields the runtime cannot start without.
func (c *Config) Validate() error {
	if c.APIVersion == "" {
		return fmt.Errorf("apiVersion is required")
	}
	if _, err := values.ParseVersion(c.APIVersion); err != nil {
		return fmt.Errorf("apiVersion: %w", err)
	}
	if c.ContractPath == "" {
		return fmt.Errorf("contract is required")
	}
	return nil
}

// HostAPIVersion returns the parsed emulated API version.
func (c *Config) HostAPIVersion() values.Version {
	return values.MustVersion(c.APIVersion)
}
