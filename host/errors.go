package host

import (
	"errors"
	"fmt"

	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/values"
)

var (
	// ErrNotStarted is returned when plugins are loaded before Start has
	// verified the contract and begun the run loop.
	ErrNotStarted = errors.New("host not started")

	// ErrIncompatiblePlugin is returned when no published release of a
	// plugin can run on this host build. The resolution itself is valid
	// data; the error exists so load callers have one failure path.
	ErrIncompatiblePlugin = errors.New("plugin incompatible with this host")
)

// IncompatibleError carries the terminal resolution for a plugin that has
// no runnable release.
type IncompatibleError struct {
	ID         values.PluginID
	Resolution entities.VersionResolution
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("plugin %s is incompatible with this host: %s (requires host API >= %s)",
		e.ID, e.Resolution.Reason, e.Resolution.MinAppVersion)
}

// Is implements error matching for errors.Is() checks.
func (e *IncompatibleError) Is(target error) bool {
	return target == ErrIncompatiblePlugin
}
