package entities

import (
	"errors"
	"fmt"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// Sentinel errors for common error patterns. These allow both errors.Is()
// checks and errors.As() for detailed information.
var (
	// ErrPluginNotFound is returned when the catalog has no entry for a
	// plugin id.
	ErrPluginNotFound = errors.New("plugin not found")
)

// PluginNotFoundError indicates the catalog does not know the plugin.
type PluginNotFoundError struct {
	ID values.PluginID
}

func (e *PluginNotFoundError) Error() string {
	return fmt.Sprintf("plugin not found: %s", e.ID.String())
}

// Is implements error matching for errors.Is() checks.
func (e *PluginNotFoundError) Is(target error) bool {
	return target == ErrPluginNotFound
}
