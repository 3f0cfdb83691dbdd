// Package pluginhost defines the contract between the Igne host and the
// plugins it runs: the Plugin lifecycle interface and the fixed capability
// API every loaded plugin receives. Plugins are polymorphic only over their
// load and unload hooks; everything they can touch in the host goes through
// the API, and every acquisition the API grants is tracked by the host's
// resource ledger for guaranteed release on unload.
package pluginhost

import (
	"context"
	"log/slog"
	"time"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// Plugin is implemented by every hosted plugin, whatever backend executes
// its code. Load may perform asynchronous work; the host does not mark the
// plugin active until Load returns. Unload is best-effort and advisory:
// the resource ledger releases everything the plugin acquired regardless
// of whether Unload runs to completion.
type Plugin interface {
	// Load is the plugin's startup hook. The API handle is valid until the
	// plugin unloads; calls made after that fail.
	Load(ctx context.Context, api API) error

	// Unload is the plugin's teardown hook.
	Unload(ctx context.Context) error
}

// Command declares an invocable action a plugin contributes. The host
// namespaces the id with the plugin's own id before registration.
type Command struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Hotkey values.Hotkey `json:"hotkey,omitempty"`

	// Check is an optional visibility predicate, evaluated fresh on every
	// palette render or hotkey press.
	Check func() bool `json:"-"`

	// Run executes the command on the host's event loop.
	Run func() `json:"-"`
}

// API is the fixed capability interface the host exposes to every plugin.
// Each capability is backed by the resource ledger: the subscription,
// timer, listener, or command registered here is released automatically
// when the plugin unloads or its load fails partway through.
type API interface {
	// AddCommand contributes a command to the global palette. A duplicate
	// id or conflicting hotkey rejects this registration only; the plugin
	// keeps loading.
	AddCommand(cmd Command) error

	// On subscribes to a host event. Handlers run on the host event loop.
	On(event string, handler func(payload any)) error

	// SetInterval registers a recurring timer on the host event loop.
	SetInterval(every time.Duration, fn func()) error

	// AddDOMListener attaches a listener to a UI surface identified by
	// target. The host treats targets opaquely; rendering is external.
	AddDOMListener(target, event string, handler func(payload any)) error

	// LoadSettings reads the plugin's private settings blob. A plugin that
	// has never saved settings gets nil, not an error.
	LoadSettings(ctx context.Context) ([]byte, error)

	// SaveSettings persists the plugin's private settings blob.
	SaveSettings(ctx context.Context, data []byte) error

	// Logger returns a logger scoped to the plugin.
	Logger() *slog.Logger
}
