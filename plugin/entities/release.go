// Package entities holds the domain objects of the plugin runtime:
// releases, version ledgers, resolutions, and manifests.
package entities

import (
	"github.com/igne-dev/pluginhost/plugin/values"
)

// PluginRelease is the newest known release of a plugin as reported by its
// catalog manifest.
type PluginRelease struct {
	ID            values.PluginID `json:"id"`
	Version       values.Version  `json:"version"`
	MinAppVersion values.Version  `json:"minAppVersion"`
	DownloadURL   string          `json:"downloadUrl,omitempty"`
}

// VersionsLedger maps every version a plugin has ever published to the
// minimum host API version that release requires. Keys are unique; storage
// implies no ordering. The ledger is append-only history: entries are never
// rewritten once published.
type VersionsLedger map[string]string

// Entry is one (version, minAppVersion) pair from a ledger, parsed.
type Entry struct {
	Version       values.Version
	MinAppVersion values.Version
}

// Entries parses the ledger into entries, silently skipping pairs whose
// version or requirement does not parse. Ledgers come from an untrusted
// catalog, so one malformed row must not poison resolution of the rest.
func (l VersionsLedger) Entries() []Entry {
	out := make([]Entry, 0, len(l))
	for ver, minApp := range l {
		v, err := values.ParseVersion(ver)
		if err != nil {
			continue
		}
		m, err := values.ParseVersion(minApp)
		if err != nil {
			continue
		}
		out = append(out, Entry{Version: v, MinAppVersion: m})
	}
	return out
}
