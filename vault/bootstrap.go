package vault

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDirName is the vault's hidden configuration directory. The name is
// kept for compatibility with the plugin ecosystem's existing vaults.
const ConfigDirName = ".obsidian"

const defaultAppConfig = `{
  "alwaysUpdateLinks": true,
  "newFileLocation": "root",
  "attachmentFolderPath": "attachments",
  "showLineNumber": true,
  "strictLineBreaks": false,
  "vimMode": false
}
`

const defaultAppearanceConfig = `{
  "baseFontSize": 16,
  "baseTheme": "dark",
  "accentColor": "#a78bfa",
  "translucency": false
}
`

const welcomeNote = `# Welcome to Igne

Igne is a fast, native markdown editor with vault and plugin compatibility.

Start writing! Create your first note or edit this one.
`

// EnsureVault creates the vault directory, its configuration directory,
// and starter files when they do not exist yet, then opens it. An existing
// vault is opened untouched.
func EnsureVault(dir string) (*FS, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating vault %q: %w", dir, err)
		}

		configDir := filepath.Join(dir, ConfigDirName)
		if err := os.MkdirAll(configDir, 0o750); err != nil {
			return nil, fmt.Errorf("creating vault config dir: %w", err)
		}
		seeds := map[string]string{
			filepath.Join(configDir, "app.json"):        defaultAppConfig,
			filepath.Join(configDir, "appearance.json"): defaultAppearanceConfig,
			filepath.Join(dir, "Welcome.md"):            welcomeNote,
		}
		for path, content := range seeds {
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return nil, fmt.Errorf("seeding %q: %w", path, err)
			}
		}
	}
	return Open(dir)
}

// DefaultVaultPath returns the default vault location under the user's
// documents directory.
func DefaultVaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, "Documents", "Igne"), nil
}
