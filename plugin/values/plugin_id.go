package values

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PluginID is a validated plugin identifier. IDs name directories under the
// vault's plugin folder and keys in the community catalog, so they must be
// safe to use as path components.
type PluginID struct {
	value string
}

// NewPluginID validates and creates a PluginID. A valid id is non-empty,
// at most 64 characters, and contains only lowercase alphanumerics,
// underscores, and hyphens.
func NewPluginID(id string) (PluginID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return PluginID{}, fmt.Errorf("plugin id cannot be empty")
	}
	if len(id) > 64 {
		return PluginID{}, fmt.Errorf("plugin id too long (max 64 chars)")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return PluginID{}, fmt.Errorf("plugin id %q cannot contain path components", id)
	}
	for _, ch := range id {
		if !isValidIDChar(ch) {
			return PluginID{}, fmt.Errorf("invalid plugin id %q: must contain only lowercase alphanumerics, underscores, and hyphens", id)
		}
	}
	return PluginID{value: id}, nil
}

func isValidIDChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= '0' && r <= '9') ||
		r == '_' ||
		r == '-'
}

// MustPluginID creates a PluginID or panics.
func MustPluginID(id string) PluginID {
	p, err := NewPluginID(id)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the raw id.
func (p PluginID) String() string { return p.value }

// IsEmpty reports whether this is the zero value.
func (p PluginID) IsEmpty() bool { return p.value == "" }

// Equals reports id equality.
func (p PluginID) Equals(other PluginID) bool { return p.value == other.value }

// MarshalJSON implements json.Marshaler.
func (p PluginID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PluginID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := NewPluginID(s)
	if err != nil {
		return err
	}
	*p = id
	return nil
}
