package entities

import (
	"fmt"
)

// Manifest is a plugin's self-description as shipped in its manifest.json.
// The catalog serves the same document, so both paths share validation.
type Manifest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Version       string `json:"version"`
	MinAppVersion string `json:"minAppVersion"`
	Description   string `json:"description,omitempty"`
	Author        string `json:"author,omitempty"`
	AuthorURL     string `json:"authorUrl,omitempty"`
	IsDesktopOnly bool   `json:"isDesktopOnly,omitempty"`
}

// Validate checks the fields the runtime depends on. Manifests arrive from
// an untrusted catalog, so everything is re-checked even after schema
// validation.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("manifest: id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("manifest %q: name is required", m.ID)
	}
	if m.Version == "" {
		return fmt.Errorf("manifest %q: version is required", m.ID)
	}
	if m.MinAppVersion == "" {
		return fmt.Errorf("manifest %q: minAppVersion is required", m.ID)
	}
	return nil
}
