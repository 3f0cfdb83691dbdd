// Package lifecycle tracks every disposable resource a loaded plugin
// acquires and releases all of them on unload, independent of whether the
// plugin's own teardown ran. It is the only mandatory cleanup path;
// plugin-authored teardown hooks are advisory.
package lifecycle

// State is a plugin's position in its load/unload lifecycle.
type State int

const (
	// StateUnloaded means no resources are held and no load is in flight.
	StateUnloaded State = iota

	// StateLoading means the plugin's load hook has started but not settled.
	StateLoading

	// StateActive means the load hook completed without a fatal error.
	StateActive

	// StateUnloading means the ledger is draining the plugin's resources.
	StateUnloading
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateActive:
		return "active"
	case StateUnloading:
		return "unloading"
	default:
		return "unknown"
	}
}

// canRegister reports whether resource acquisition is legal in this state.
func (s State) canRegister() bool {
	return s == StateLoading || s == StateActive
}
