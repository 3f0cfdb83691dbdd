package ports

import (
	"context"
	"time"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// FileStat is the metadata the runtime needs about a vault path. Mirrors
// the stat primitive of the vault I/O layer: a missing path is reported
// with Exists=false, not an error.
type FileStat struct {
	Name     string
	Path     string
	IsDir    bool
	Size     int64
	Modified time.Time
	Exists   bool
}

// Vault is the file I/O collaborator. Calls are fallible and asynchronous
// from the runtime's point of view; the runtime adds no retry logic of its
// own, failures surface to the caller.
type Vault interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	Stat(ctx context.Context, path string) (FileStat, error)

	// List returns vault-relative paths matching a glob pattern.
	List(ctx context.Context, pattern string) ([]string, error)
}

// SettingsStore persists each plugin's private settings blob. Backed by
// the Vault collaborator; a plugin that has never saved settings loads nil
// without error.
type SettingsStore interface {
	Load(ctx context.Context, id values.PluginID) ([]byte, error)
	Save(ctx context.Context, id values.PluginID, data []byte) error
}
