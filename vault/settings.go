package vault

import (
	"context"
	"errors"
	"io/fs"
	"path"

	"github.com/igne-dev/pluginhost/plugin/ports"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// SettingsStore persists each plugin's private settings blob under
// <vault>/<config>/plugins/<id>/data.json.
type SettingsStore struct {
	vault ports.Vault
}

var _ ports.SettingsStore = (*SettingsStore)(nil)

// NewSettingsStore creates a store backed by the vault collaborator.
func NewSettingsStore(vault ports.Vault) *SettingsStore {
	return &SettingsStore{vault: vault}
}

func settingsPath(id values.PluginID) string {
	return path.Join(ConfigDirName, "plugins", id.String(), "data.json")
}

// Load reads a plugin's settings. A plugin that never saved settings gets
// nil, not an error.
func (s *SettingsStore) Load(ctx context.Context, id values.PluginID) ([]byte, error) {
	data, err := s.vault.ReadFile(ctx, settingsPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Save writes a plugin's settings blob.
func (s *SettingsStore) Save(ctx context.Context, id values.PluginID, data []byte) error {
	return s.vault.WriteFile(ctx, settingsPath(id), data)
}
