package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	pluginhost "github.com/igne-dev/pluginhost"
	"github.com/igne-dev/pluginhost/contract"
	"github.com/igne-dev/pluginhost/plugin/commands"
	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/lifecycle"
	"github.com/igne-dev/pluginhost/plugin/ports"
	"github.com/igne-dev/pluginhost/plugin/resolvers"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// Factory constructs a Plugin instance from fetched release code. Backends
// (WASM, embedded scripting) implement this; the host never depends on a
// particular one.
type Factory interface {
	New(ctx context.Context, manifest entities.Manifest, code []byte) (pluginhost.Plugin, error)
}

// Host composes the runtime: it resolves a runnable release, fetches its
// code, constructs the plugin, runs its lifecycle hooks on the cooperative
// loop, and guarantees resource cleanup through the ledger.
type Host struct {
	apiVersion values.Version
	guard      *contract.Guard
	source     ports.ReleaseSource
	resolver   *resolvers.VersionResolver
	factory    Factory
	settings   ports.SettingsStore

	ledger   *lifecycle.Ledger
	commands *commands.Registry
	loop     *Loop
	bus      *eventBus
	logger   *slog.Logger

	mu       sync.Mutex
	started  bool
	loaded   map[string]*loadedPlugin
	inflight map[string]*inflight
}

type loadedPlugin struct {
	plugin     pluginhost.Plugin
	resolution entities.VersionResolution
}

// inflight tracks one outstanding load attempt. Concurrent loads of the
// same id collapse onto it; an unload requested mid-load is queued here and
// runs right after the load settles.
type inflight struct {
	done       chan struct{}
	err        error
	unloadDone chan struct{} // non-nil when an unload is queued
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithFactory sets the plugin backend used to construct instances from
// downloaded release code.
func WithFactory(f Factory) Option {
	return func(h *Host) { h.factory = f }
}

// WithSettingsStore sets the store backing each plugin's private settings.
func WithSettingsStore(s ports.SettingsStore) Option {
	return func(h *Host) { h.settings = s }
}

// NewHost creates a host for the given emulated API version. The guard is
// consulted exactly once, in Start; the release source supplies catalog
// data and plugin code.
func NewHost(apiVersion values.Version, guard *contract.Guard, source ports.ReleaseSource, opts ...Option) *Host {
	h := &Host{
		apiVersion: apiVersion,
		guard:      guard,
		source:     source,
		resolver:   resolvers.NewVersionResolver(apiVersion),
		logger:     slog.Default(),
		loop:       NewLoop(),
		loaded:     make(map[string]*loadedPlugin),
		inflight:   make(map[string]*inflight),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.ledger = lifecycle.NewLedger(lifecycle.WithLogger(h.logger))
	h.commands = commands.NewRegistry(commands.WithLogger(h.logger))
	h.bus = newEventBus(h.loop)
	return h
}

// Start verifies the API contract and begins the run loop. A contract
// drift blocks the entire plugin subsystem: no plugin may run against an
// API whose shape is unverified.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}

	if err := h.guard.Verify(h.apiVersion); err != nil {
		return fmt.Errorf("plugin subsystem blocked: %w", err)
	}

	go h.loop.Run()
	h.started = true
	h.logger.Info("plugin host started", "api_version", h.apiVersion.String())
	return nil
}

// Stop unloads every plugin and stops the run loop.
func (h *Host) Stop(ctx context.Context) {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()
	ids := h.ledger.Owners()

	for _, id := range ids {
		if err := h.UnloadPlugin(ctx, id); err != nil {
			h.logger.Warn("unload during shutdown failed", "plugin", id.String(), "error", err)
		}
	}

	h.mu.Lock()
	h.started = false
	h.mu.Unlock()
	h.loop.Stop()
	h.logger.Info("plugin host stopped")
}

// LoadPlugin resolves, fetches, constructs, and loads a plugin from the
// catalog. Concurrent calls for the same id share the in-flight attempt.
func (h *Host) LoadPlugin(ctx context.Context, id values.PluginID) error {
	return h.load(ctx, id, nil)
}

// LoadInstance loads an already-constructed plugin, bypassing catalog
// resolution. Used for built-in plugins and tests; lifecycle and cleanup
// guarantees are identical to LoadPlugin.
func (h *Host) LoadInstance(ctx context.Context, id values.PluginID, p pluginhost.Plugin) error {
	return h.load(ctx, id, p)
}

func (h *Host) load(ctx context.Context, id values.PluginID, instance pluginhost.Plugin) error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return ErrNotStarted
	}
	if fl, ok := h.inflight[id.String()]; ok {
		h.mu.Unlock()
		<-fl.done
		return fl.err
	}
	if _, ok := h.loaded[id.String()]; ok {
		h.mu.Unlock()
		return nil
	}
	fl := &inflight{done: make(chan struct{})}
	h.inflight[id.String()] = fl
	h.mu.Unlock()

	err := h.doLoad(ctx, id, instance)

	// Settle and release the in-flight slot in one critical section: an
	// unloader arriving after this point takes the direct performUnload
	// path instead of queuing on a slot nobody will service.
	h.mu.Lock()
	fl.err = err
	queued := fl.unloadDone
	delete(h.inflight, id.String())
	h.mu.Unlock()
	close(fl.done)

	// An unload queued mid-load runs immediately after the load settles,
	// success or not.
	if queued != nil {
		if uerr := h.performUnload(ctx, id); uerr != nil {
			h.logger.Warn("queued unload failed", "plugin", id.String(), "error", uerr)
		}
		close(queued)
	}

	return err
}

func (h *Host) doLoad(ctx context.Context, id values.PluginID, instance pluginhost.Plugin) error {
	plugin := instance
	var resolution entities.VersionResolution

	if plugin == nil {
		if h.factory == nil {
			return fmt.Errorf("plugin %s: no plugin factory configured", id)
		}

		latest, err := h.source.LatestRelease(ctx, id)
		if err != nil {
			return fmt.Errorf("plugin %s: fetching latest release: %w", id, err)
		}
		ledger, err := h.source.Versions(ctx, id)
		if err != nil {
			return fmt.Errorf("plugin %s: fetching versions ledger: %w", id, err)
		}

		resolution = h.resolver.Resolve(latest, ledger)
		if !resolution.Runnable() {
			h.bus.emit(EventPluginFailed, id.String())
			return &IncompatibleError{ID: id, Resolution: resolution}
		}
		h.logger.Info("resolved plugin release",
			"plugin", id.String(),
			"version", resolution.Version.String(),
			"reason", resolution.Reason)

		release := entities.PluginRelease{
			ID:            id,
			Version:       resolution.Version,
			MinAppVersion: resolution.MinAppVersion,
		}
		if resolution.Version.Equals(latest.Version) {
			release.DownloadURL = latest.DownloadURL
		}
		code, err := h.source.Download(ctx, release)
		if err != nil {
			return fmt.Errorf("plugin %s: downloading release %s: %w", id, resolution.Version, err)
		}

		manifest := entities.Manifest{
			ID:            id.String(),
			Name:          id.String(),
			Version:       resolution.Version.String(),
			MinAppVersion: resolution.MinAppVersion.String(),
		}
		plugin, err = h.factory.New(ctx, manifest, code)
		if err != nil {
			return fmt.Errorf("plugin %s: constructing instance: %w", id, err)
		}
	}

	if err := h.ledger.Begin(id); err != nil {
		return err
	}

	api := newPluginAPI(h, id)
	var loadErr error
	ok := h.loop.PostWait(func() {
		defer func() {
			if r := recover(); r != nil {
				loadErr = fmt.Errorf("load hook panicked: %v", r)
			}
		}()
		loadErr = plugin.Load(ctx, api)
	})
	if !ok {
		loadErr = fmt.Errorf("host loop stopped")
	}

	if loadErr != nil {
		// A fault during Loading never leaves partially-acquired resources
		// outstanding: drain whatever was registered so far.
		h.ledger.Drain(id)
		h.bus.emit(EventPluginFailed, id.String())
		return fmt.Errorf("plugin %s: load hook failed: %w", id, loadErr)
	}

	if err := h.ledger.Activate(id); err != nil {
		h.ledger.Drain(id)
		return err
	}

	h.mu.Lock()
	h.loaded[id.String()] = &loadedPlugin{plugin: plugin, resolution: resolution}
	h.mu.Unlock()

	h.bus.emit(EventPluginLoaded, id.String())
	h.logger.Info("plugin loaded", "plugin", id.String())
	return nil
}

// UnloadPlugin unloads a plugin. When the plugin is mid-load the unload is
// queued and runs right after the load settles; unloading a plugin that is
// not loaded is a no-op.
func (h *Host) UnloadPlugin(ctx context.Context, id values.PluginID) error {
	h.mu.Lock()
	if fl, ok := h.inflight[id.String()]; ok {
		if fl.unloadDone == nil {
			fl.unloadDone = make(chan struct{})
		}
		queued := fl.unloadDone
		h.mu.Unlock()
		<-queued
		return nil
	}
	h.mu.Unlock()

	return h.performUnload(ctx, id)
}

func (h *Host) performUnload(ctx context.Context, id values.PluginID) error {
	h.mu.Lock()
	lp, ok := h.loaded[id.String()]
	delete(h.loaded, id.String())
	h.mu.Unlock()

	if ok {
		// Plugin-authored teardown is best-effort and advisory. The ledger
		// drain below is the mandatory cleanup path.
		h.loop.PostWait(func() {
			defer func() {
				if r := recover(); r != nil {
					h.logger.Warn("unload hook panicked", "plugin", id.String(), "panic", r)
				}
			}()
			if err := lp.plugin.Unload(ctx); err != nil {
				h.logger.Warn("unload hook failed", "plugin", id.String(), "error", err)
			}
		})
	}

	h.ledger.Drain(id)
	if ok {
		h.bus.emit(EventPluginUnloaded, id.String())
		h.logger.Info("plugin unloaded", "plugin", id.String())
	}
	return nil
}

// State reports a plugin's lifecycle state.
func (h *Host) State(id values.PluginID) lifecycle.State {
	return h.ledger.State(id)
}

// Resolution returns the resolution a loaded plugin was installed under.
func (h *Host) Resolution(id values.PluginID) (entities.VersionResolution, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	lp, ok := h.loaded[id.String()]
	if !ok {
		return entities.VersionResolution{}, false
	}
	return lp.resolution, true
}

// Commands exposes the global command registry to the surrounding
// application (palette rendering, hotkey dispatch).
func (h *Host) Commands() *commands.Registry { return h.commands }

// Emit publishes a host event to all subscribers.
func (h *Host) Emit(event string, payload any) {
	h.bus.emit(event, payload)
}

// On subscribes application code to host events. The returned remove
// function unsubscribes; unlike plugin subscriptions it is not
// ledger-tracked.
func (h *Host) On(event string, handler func(payload any)) func() {
	return h.bus.subscribe(event, handler)
}

// DispatchDOM delivers a UI event to the DOM-level listeners plugins
// attached to the target.
func (h *Host) DispatchDOM(target, event string, payload any) {
	h.bus.emit(domKey(target, event), payload)
}

// ClearCache invalidates the release source's cache when it has one.
// Resolution is otherwise deterministic, so this is the only refresh knob.
func (h *Host) ClearCache() {
	if inv, ok := h.source.(ports.InvalidatingSource); ok {
		inv.ClearCache()
	}
}
