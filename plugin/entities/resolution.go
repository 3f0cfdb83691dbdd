package entities

import (
	"github.com/igne-dev/pluginhost/plugin/values"
)

// VersionResolution is the outcome of deciding which release of a plugin
// the host can run. An absent Version is a valid terminal result meaning
// no published release is runnable on this host build; it is surfaced as
// data, never as an error.
type VersionResolution struct {
	// Version is the selected release, or the zero value when no release
	// is runnable.
	Version values.Version

	// MinAppVersion is the host requirement of the selected release, or of
	// the latest release when nothing was runnable.
	MinAppVersion values.Version

	// Reason explains the decision in user-facing terms.
	Reason string
}

// Runnable reports whether a release was selected.
func (r VersionResolution) Runnable() bool { return !r.Version.IsAbsent() }
