// Package vault implements the file I/O collaborator: read/write/stat and
// glob listing rooted in the user's vault directory, plugin settings
// persistence, vault bootstrap, and change watching.
package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/igne-dev/pluginhost/plugin/ports"
)

// FS is a Vault rooted at a directory. All paths are vault-relative;
// escaping the root is rejected.
type FS struct {
	root string
}

var _ ports.Vault = (*FS)(nil)

// Open opens a vault rooted at dir. The directory must exist.
func Open(dir string) (*FS, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving vault path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("opening vault %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path %q is not a directory", dir)
	}
	return &FS{root: abs}, nil
}

// Root returns the vault's absolute root directory.
func (v *FS) Root() string { return v.root }

// resolve maps a vault-relative path to an absolute one, rejecting
// attempts to escape the root.
func (v *FS) resolve(rel string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(rel))
	abs := filepath.Join(v.root, clean)
	if abs != v.root && !strings.HasPrefix(abs, v.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the vault", rel)
	}
	return abs, nil
}

// ReadFile reads a vault file.
func (v *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}
	return data, nil
}

// WriteFile writes a vault file, creating parent directories.
func (v *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	abs, err := v.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return fmt.Errorf("creating directory for %q: %w", path, err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

// Stat reports metadata for a vault path. A missing path is reported with
// Exists=false, not an error.
func (v *FS) Stat(ctx context.Context, path string) (ports.FileStat, error) {
	abs, err := v.resolve(path)
	if err != nil {
		return ports.FileStat{}, err
	}

	stat := ports.FileStat{
		Name: filepath.Base(abs),
		Path: path,
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return stat, nil
		}
		return ports.FileStat{}, fmt.Errorf("stat %q: %w", path, err)
	}

	stat.Exists = true
	stat.IsDir = info.IsDir()
	stat.Size = info.Size()
	stat.Modified = info.ModTime()
	return stat, nil
}

// List returns vault-relative paths matching a doublestar glob pattern,
// e.g. "**/*.md".
func (v *FS) List(ctx context.Context, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(v.root), pattern)
	if err != nil {
		return nil, fmt.Errorf("globbing %q: %w", pattern, err)
	}
	return matches, nil
}

// Walk visits every file under the vault, skipping the config directory.
func (v *FS) Walk(ctx context.Context, fn func(rel string, d fs.DirEntry) error) error {
	return fs.WalkDir(os.DirFS(v.root), ".", func(rel string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ConfigDirName {
			return fs.SkipDir
		}
		return fn(rel, d)
	})
}
