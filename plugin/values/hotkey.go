package values

import (
	"fmt"
	"sort"
	"strings"
)

// Modifier is one keyboard modifier in a hotkey chord.
type Modifier string

// Modifiers understood by the host. "Mod" is the platform-mapped primary
// modifier (Cmd on macOS, Ctrl elsewhere) and is kept distinct from the
// literal Ctrl/Meta forms, matching how plugins declare their defaults.
const (
	ModifierMod   Modifier = "Mod"
	ModifierCtrl  Modifier = "Ctrl"
	ModifierShift Modifier = "Shift"
	ModifierAlt   Modifier = "Alt"
	ModifierMeta  Modifier = "Meta"
)

var knownModifiers = map[Modifier]struct{}{
	ModifierMod:   {},
	ModifierCtrl:  {},
	ModifierShift: {},
	ModifierAlt:   {},
	ModifierMeta:  {},
}

// Hotkey is a key plus a set of modifiers. Equality is order-insensitive
// over the modifier set and case-insensitive over the key, so "Mod+Shift+P"
// and "Shift+Mod+p" collide.
type Hotkey struct {
	key       string
	modifiers []Modifier // sorted, deduplicated
}

// NewHotkey validates and creates a Hotkey.
func NewHotkey(key string, modifiers ...Modifier) (Hotkey, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Hotkey{}, fmt.Errorf("hotkey key cannot be empty")
	}

	seen := make(map[Modifier]struct{}, len(modifiers))
	canonical := make([]Modifier, 0, len(modifiers))
	for _, m := range modifiers {
		if _, ok := knownModifiers[m]; !ok {
			return Hotkey{}, fmt.Errorf("unknown hotkey modifier %q", m)
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		canonical = append(canonical, m)
	}
	sort.Slice(canonical, func(i, j int) bool { return canonical[i] < canonical[j] })

	return Hotkey{key: strings.ToLower(key), modifiers: canonical}, nil
}

// MustHotkey creates a Hotkey or panics.
func MustHotkey(key string, modifiers ...Modifier) Hotkey {
	h, err := NewHotkey(key, modifiers...)
	if err != nil {
		panic(err)
	}
	return h
}

// IsEmpty reports whether this is the zero value (no hotkey assigned).
func (h Hotkey) IsEmpty() bool { return h.key == "" }

// Key returns the lowercased key.
func (h Hotkey) Key() string { return h.key }

// Modifiers returns the canonical modifier set.
func (h Hotkey) Modifiers() []Modifier {
	out := make([]Modifier, len(h.modifiers))
	copy(out, h.modifiers)
	return out
}

// String returns the canonical chord form, e.g. "Alt+Mod+p". Used as the
// binding-table key, so equal hotkeys always produce equal strings.
func (h Hotkey) String() string {
	if h.IsEmpty() {
		return ""
	}
	parts := make([]string, 0, len(h.modifiers)+1)
	for _, m := range h.modifiers {
		parts = append(parts, string(m))
	}
	parts = append(parts, h.key)
	return strings.Join(parts, "+")
}

// Equals reports whether two hotkeys are the same chord.
func (h Hotkey) Equals(other Hotkey) bool { return h.String() == other.String() }
