package lifecycle

import (
	"errors"
	"fmt"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// ErrInvalidLifecycleState is returned when an operation is attempted in a
// state that does not permit it. This is an ordering bug in the caller,
// not a fault in the plugin; the offending call is rejected and nothing
// else changes.
var ErrInvalidLifecycleState = errors.New("invalid lifecycle state")

// InvalidLifecycleStateError reports which plugin and state rejected an
// operation.
type InvalidLifecycleStateError struct {
	Plugin values.PluginID
	State  State
	Op     string
}

func (e *InvalidLifecycleStateError) Error() string {
	return fmt.Sprintf("plugin %s: cannot %s while %s", e.Plugin, e.Op, e.State)
}

// Is implements error matching for errors.Is() checks.
func (e *InvalidLifecycleStateError) Is(target error) bool {
	return target == ErrInvalidLifecycleState
}
