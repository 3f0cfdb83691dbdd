// Package resolvers decides which published release of a plugin the host
// can run, given the API version the host emulates.
package resolvers

import (
	"fmt"

	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// VersionResolver selects the newest runnable release of a plugin.
// It is pure: inputs are never mutated and identical inputs yield
// identical resolutions.
type VersionResolver struct {
	hostAPIVersion values.Version
}

// NewVersionResolver creates a resolver for the given emulated host API
// version.
func NewVersionResolver(hostAPIVersion values.Version) *VersionResolver {
	return &VersionResolver{hostAPIVersion: hostAPIVersion}
}

// HostAPIVersion returns the emulated API version this resolver targets.
func (r *VersionResolver) HostAPIVersion() values.Version { return r.hostAPIVersion }

// Resolve picks the release to install.
//
// The latest release wins outright when the host satisfies its minimum
// requirement. Otherwise the ledger of historical releases is scanned for
// the greatest version whose requirement the host still satisfies. When
// nothing qualifies the resolution carries an absent version: that is a
// valid terminal outcome, not an error.
func (r *VersionResolver) Resolve(latest entities.PluginRelease, ledger entities.VersionsLedger) entities.VersionResolution {
	if latest.MinAppVersion.AtMost(r.hostAPIVersion) {
		return entities.VersionResolution{
			Version:       latest.Version,
			MinAppVersion: latest.MinAppVersion,
			Reason: fmt.Sprintf("Latest version %s is compatible with host API %s",
				latest.Version, r.hostAPIVersion),
		}
	}

	var best entities.Entry
	var found bool
	for _, entry := range ledger.Entries() {
		if entry.Version.Equals(latest.Version) {
			continue
		}
		if !entry.MinAppVersion.AtMost(r.hostAPIVersion) {
			continue
		}
		if !found || best.Version.LessThan(entry.Version) {
			best = entry
			found = true
		}
	}

	if found {
		return entities.VersionResolution{
			Version:       best.Version,
			MinAppVersion: best.MinAppVersion,
			Reason: fmt.Sprintf("Installing compatible version %s instead (latest requires host API >= %s)",
				best.Version, latest.MinAppVersion),
		}
	}

	return entities.VersionResolution{
		MinAppVersion: latest.MinAppVersion,
		Reason:        "No compatible version found",
	}
}
