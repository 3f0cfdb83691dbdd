package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileSnapshot pins one serialized file: its SHA-256 hex digest and byte
// length. Both must match the live bytes for the pin to hold.
type FileSnapshot struct {
	SHA256 string `json:"sha256"`
	Bytes  int    `json:"bytes"`
}

// PackageInfo identifies the contract the snapshot belongs to.
type PackageInfo struct {
	Version string `json:"version"`
}

// Snapshot is the persisted, previously-approved description of the host's
// API surface. The wire format is shared with the tooling that regenerates
// pins: {"package": {"version": ...}, "files": {"<name>": {"sha256", "bytes"}}}.
type Snapshot struct {
	Package PackageInfo             `json:"package"`
	Files   map[string]FileSnapshot `json:"files"`
}

// SnapshotOf computes the pin for a serialized file.
func SnapshotOf(data []byte) FileSnapshot {
	sum := sha256.Sum256(data)
	return FileSnapshot{
		SHA256: hex.EncodeToString(sum[:]),
		Bytes:  len(data),
	}
}

// Entry returns the pinned snapshot for a filename key.
func (s *Snapshot) Entry(name string) (FileSnapshot, bool) {
	fs, ok := s.Files[name]
	return fs, ok
}

// LoadSnapshot reads a snapshot file from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading contract snapshot %q: %w", path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding contract snapshot %q: %w", path, err)
	}
	return &s, nil
}

// SaveSnapshot writes a snapshot file, creating parent directories.
func SaveSnapshot(path string, s *Snapshot) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %q: %w", dir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding contract snapshot: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing contract snapshot %q: %w", path, err)
	}
	return nil
}
