package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pluginhost "github.com/igne-dev/pluginhost"
	"github.com/igne-dev/pluginhost/plugin/commands"
	"github.com/igne-dev/pluginhost/plugin/lifecycle"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// pluginAPI is the capability handle issued to one loaded plugin. Every
// acquisition routes through the resource ledger, so whatever the plugin
// registers is released when it unloads, whether or not its own teardown
// runs.
type pluginAPI struct {
	host   *Host
	id     values.PluginID
	logger *slog.Logger
}

var _ pluginhost.API = (*pluginAPI)(nil)

func newPluginAPI(h *Host, id values.PluginID) *pluginAPI {
	return &pluginAPI{
		host:   h,
		id:     id,
		logger: h.logger.With("plugin", id.String()),
	}
}

// AddCommand contributes a command to the global palette. The command's
// Run callback is marshalled onto the host loop.
func (a *pluginAPI) AddCommand(cmd pluginhost.Command) error {
	run := cmd.Run
	desc := commands.Descriptor{
		Plugin: a.id,
		ID:     cmd.ID,
		Name:   cmd.Name,
		Hotkey: cmd.Hotkey,
		Check:  cmd.Check,
	}
	if run != nil {
		desc.Run = func() { a.host.loop.Post(run) }
	}

	reg, err := a.host.commands.Register(desc)
	if err != nil {
		return err
	}
	if _, err := a.host.ledger.Register(a.id, "command", reg.Unregister); err != nil {
		reg.Unregister()
		return err
	}
	return nil
}

// On subscribes to a host event. The handler runs on the host loop.
func (a *pluginAPI) On(event string, handler func(payload any)) error {
	remove := a.host.bus.subscribe(event, handler)
	if _, err := a.host.ledger.Register(a.id, "event", remove); err != nil {
		remove()
		return err
	}
	return nil
}

// SetInterval registers a recurring timer. The callback runs on the host
// loop; the timer stops automatically when the plugin unloads.
func (a *pluginAPI) SetInterval(every time.Duration, fn func()) error {
	if every <= 0 {
		return fmt.Errorf("interval must be positive, got %s", every)
	}
	cancel := a.host.loop.SetInterval(every, fn)
	if _, err := a.host.ledger.Register(a.id, "interval", cancel); err != nil {
		cancel()
		return err
	}
	return nil
}

// AddDOMListener attaches a listener to an opaque UI target. The rendering
// layer dispatches into the host with DispatchDOM using the same key.
func (a *pluginAPI) AddDOMListener(target, event string, handler func(payload any)) error {
	remove := a.host.bus.subscribe(domKey(target, event), handler)
	if _, err := a.host.ledger.Register(a.id, "dom-listener", remove); err != nil {
		remove()
		return err
	}
	return nil
}

// LoadSettings reads the plugin's private settings blob.
func (a *pluginAPI) LoadSettings(ctx context.Context) ([]byte, error) {
	if err := a.requireLive("load settings"); err != nil {
		return nil, err
	}
	return a.host.settings.Load(ctx, a.id)
}

// SaveSettings persists the plugin's private settings blob.
func (a *pluginAPI) SaveSettings(ctx context.Context, data []byte) error {
	if err := a.requireLive("save settings"); err != nil {
		return err
	}
	return a.host.settings.Save(ctx, a.id, data)
}

// Logger returns a logger scoped to the plugin.
func (a *pluginAPI) Logger() *slog.Logger { return a.logger }

// requireLive rejects capability calls made outside Loading or Active,
// matching the ledger's own registration rule.
func (a *pluginAPI) requireLive(op string) error {
	state := a.host.ledger.State(a.id)
	if state != lifecycle.StateLoading && state != lifecycle.StateActive {
		return &lifecycle.InvalidLifecycleStateError{Plugin: a.id, State: state, Op: op}
	}
	if a.host.settings == nil {
		return fmt.Errorf("no settings store configured")
	}
	return nil
}
