package host_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pluginhost "github.com/igne-dev/pluginhost"
	"github.com/igne-dev/pluginhost/contract"
	"github.com/igne-dev/pluginhost/host"
	"github.com/igne-dev/pluginhost/plugin/commands"
	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/lifecycle"
	"github.com/igne-dev/pluginhost/plugin/values"
)

var hostAPI = values.MustVersion("1.5.12")

// fakeSource serves canned catalog data.
type fakeSource struct {
	mu        sync.Mutex
	latest    entities.PluginRelease
	ledger    entities.VersionsLedger
	code      []byte
	latestErr error
	downloads int
	cleared   int
}

func (s *fakeSource) LatestRelease(ctx context.Context, id values.PluginID) (entities.PluginRelease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latestErr != nil {
		return entities.PluginRelease{}, s.latestErr
	}
	return s.latest, nil
}

func (s *fakeSource) Versions(ctx context.Context, id values.PluginID) (entities.VersionsLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger, nil
}

func (s *fakeSource) Download(ctx context.Context, release entities.PluginRelease) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads++
	return s.code, nil
}

func (s *fakeSource) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
}

// fakePlugin records its lifecycle hooks and optionally acquires resources
// or misbehaves during Load.
type fakePlugin struct {
	loadFn    func(ctx context.Context, api pluginhost.API) error
	loads     atomic.Int32
	unloads   atomic.Int32
	loadDelay time.Duration
}

func (p *fakePlugin) Load(ctx context.Context, api pluginhost.API) error {
	p.loads.Add(1)
	if p.loadDelay > 0 {
		time.Sleep(p.loadDelay)
	}
	if p.loadFn != nil {
		return p.loadFn(ctx, api)
	}
	return nil
}

func (p *fakePlugin) Unload(ctx context.Context) error {
	p.unloads.Add(1)
	return nil
}

type fakeFactory struct {
	plugin pluginhost.Plugin
	err    error
	builds atomic.Int32
}

func (f *fakeFactory) New(ctx context.Context, manifest entities.Manifest, code []byte) (pluginhost.Plugin, error) {
	f.builds.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.plugin, nil
}

type memSettings struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memSettings) Load(ctx context.Context, id values.PluginID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[id.String()], nil
}

func (m *memSettings) Save(ctx context.Context, id values.PluginID, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[id.String()] = data
	return nil
}

func newTestHost(t *testing.T, source *fakeSource, opts ...host.Option) *host.Host {
	t.Helper()

	snap, err := contract.Pin(hostAPI)
	require.NoError(t, err)

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]host.Option{host.WithLogger(quiet)}, opts...)
	h := host.NewHost(hostAPI, contract.NewGuard(snap), source, opts...)

	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() { h.Stop(context.Background()) })
	return h
}

func TestHost_LoadInstance(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")
	p := &fakePlugin{}

	require.NoError(t, h.LoadInstance(context.Background(), id, p))
	assert.Equal(t, lifecycle.StateActive, h.State(id))
	assert.Equal(t, int32(1), p.loads.Load())

	// Loading an already-loaded plugin is a no-op.
	require.NoError(t, h.LoadInstance(context.Background(), id, p))
	assert.Equal(t, int32(1), p.loads.Load())

	require.NoError(t, h.UnloadPlugin(context.Background(), id))
	assert.Equal(t, lifecycle.StateUnloaded, h.State(id))
	assert.Equal(t, int32(1), p.unloads.Load())
}

func TestHost_RequiresStart(t *testing.T) {
	t.Parallel()

	snap, err := contract.Pin(hostAPI)
	require.NoError(t, err)
	h := host.NewHost(hostAPI, contract.NewGuard(snap), &fakeSource{},
		host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err = h.LoadInstance(context.Background(), values.MustPluginID("calendar"), &fakePlugin{})
	assert.ErrorIs(t, err, host.ErrNotStarted)
}

func TestHost_StartBlockedByContractDrift(t *testing.T) {
	t.Parallel()

	// Pin an empty snapshot: the live surface has no pin, which is drift.
	g := contract.NewGuard(&contract.Snapshot{Files: map[string]contract.FileSnapshot{}})
	h := host.NewHost(hostAPI, g, &fakeSource{},
		host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := h.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, contract.ErrContractDrift))
}

func TestHost_LoadFailureDrainsLedger(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")

	p := &fakePlugin{loadFn: func(ctx context.Context, api pluginhost.API) error {
		// Acquire resources, then fail: every acquisition must be undone.
		if err := api.On("vault-changed", func(any) {}); err != nil {
			return err
		}
		if err := api.AddCommand(pluginhost.Command{ID: "open", Name: "Open", Run: func() {}}); err != nil {
			return err
		}
		if err := api.SetInterval(time.Minute, func() {}); err != nil {
			return err
		}
		return errors.New("plugin init failed")
	}}

	err := h.LoadInstance(context.Background(), id, p)
	require.Error(t, err)
	assert.Equal(t, lifecycle.StateUnloaded, h.State(id))
	assert.ErrorIs(t, h.Commands().Execute("calendar:open"), commands.ErrUnknownCommand)
	assert.Empty(t, h.Commands().Visible())
}

func TestHost_LoadPanicIsContained(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")
	p := &fakePlugin{loadFn: func(ctx context.Context, api pluginhost.API) error {
		panic("broken plugin")
	}}

	err := h.LoadInstance(context.Background(), id, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load hook panicked")
	assert.Equal(t, lifecycle.StateUnloaded, h.State(id))

	// The host keeps working afterwards.
	require.NoError(t, h.LoadInstance(context.Background(), id, &fakePlugin{}))
	assert.Equal(t, lifecycle.StateActive, h.State(id))
}

func TestHost_UnloadReleasesResources(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{}, host.WithSettingsStore(&memSettings{}))
	id := values.MustPluginID("calendar")

	var events atomic.Int32
	p := &fakePlugin{loadFn: func(ctx context.Context, api pluginhost.API) error {
		if err := api.On("note-created", func(any) { events.Add(1) }); err != nil {
			return err
		}
		return api.AddCommand(pluginhost.Command{ID: "open", Name: "Open", Run: func() {}})
	}}
	require.NoError(t, h.LoadInstance(context.Background(), id, p))

	h.Emit("note-created", nil)
	require.Eventually(t, func() bool { return events.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, h.Commands().Execute("calendar:open"))

	require.NoError(t, h.UnloadPlugin(context.Background(), id))

	// Subscription and command are gone.
	h.Emit("note-created", nil)
	assert.Error(t, h.Commands().Execute("calendar:open"))
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), events.Load())
}

func TestHost_UnloadNotLoadedIsNoop(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	assert.NoError(t, h.UnloadPlugin(context.Background(), values.MustPluginID("ghost")))
}

func TestHost_LoadPlugin_ResolvesAndDownloads(t *testing.T) {
	t.Parallel()

	id := values.MustPluginID("calendar")
	source := &fakeSource{
		latest: entities.PluginRelease{
			ID:            id,
			Version:       values.MustVersion("2.0.0"),
			MinAppVersion: values.MustVersion("1.2.0"),
			DownloadURL:   "https://catalog.igne.dev/plugins/calendar/2.0.0/plugin.wasm",
		},
		ledger: entities.VersionsLedger{"1.5.0": "1.0.0"},
		code:   []byte("\x00asm"),
	}
	p := &fakePlugin{}
	h := newTestHost(t, source, host.WithFactory(&fakeFactory{plugin: p}))

	require.NoError(t, h.LoadPlugin(context.Background(), id))
	assert.Equal(t, lifecycle.StateActive, h.State(id))

	res, ok := h.Resolution(id)
	require.True(t, ok)
	assert.Equal(t, "2.0.0", res.Version.String())
	assert.True(t, res.Runnable())
}

func TestHost_LoadPlugin_Incompatible(t *testing.T) {
	t.Parallel()

	id := values.MustPluginID("calendar")
	source := &fakeSource{
		latest: entities.PluginRelease{
			ID:            id,
			Version:       values.MustVersion("3.0.0"),
			MinAppVersion: values.MustVersion("9.0.0"),
		},
		ledger: entities.VersionsLedger{"2.0.0": "8.0.0"},
	}
	factory := &fakeFactory{plugin: &fakePlugin{}}
	h := newTestHost(t, source, host.WithFactory(factory))

	var failed atomic.Int32
	h.On(host.EventPluginFailed, func(any) { failed.Add(1) })

	err := h.LoadPlugin(context.Background(), id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, host.ErrIncompatiblePlugin))

	var incompat *host.IncompatibleError
	require.ErrorAs(t, err, &incompat)
	assert.Equal(t, id, incompat.ID)
	assert.False(t, incompat.Resolution.Runnable())
	assert.Equal(t, "9.0.0", incompat.Resolution.MinAppVersion.String())

	// Nothing was built or downloaded for an incompatible plugin.
	assert.Equal(t, int32(0), factory.builds.Load())
	require.Eventually(t, func() bool { return failed.Load() == 1 }, time.Second, time.Millisecond)
}

func TestHost_ConcurrentLoadsCollapse(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")
	p := &fakePlugin{loadDelay: 20 * time.Millisecond}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.LoadInstance(context.Background(), id, p)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), p.loads.Load())
	assert.Equal(t, lifecycle.StateActive, h.State(id))
}

func TestHost_UnloadQueuedDuringLoad(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")

	loadStarted := make(chan struct{})
	releaseLoad := make(chan struct{})
	p := &fakePlugin{loadFn: func(ctx context.Context, api pluginhost.API) error {
		close(loadStarted)
		<-releaseLoad
		return nil
	}}

	loadErr := make(chan error, 1)
	go func() { loadErr <- h.LoadInstance(context.Background(), id, p) }()
	<-loadStarted

	unloadDone := make(chan struct{})
	go func() {
		// Queued: must not interleave with the in-flight load.
		_ = h.UnloadPlugin(context.Background(), id)
		close(unloadDone)
	}()

	// The unload waits for the load to settle.
	select {
	case <-unloadDone:
		t.Fatal("unload completed while load was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(releaseLoad)
	require.NoError(t, <-loadErr)
	select {
	case <-unloadDone:
	case <-time.After(time.Second):
		t.Fatal("queued unload never ran")
	}

	assert.Equal(t, lifecycle.StateUnloaded, h.State(id))
	assert.Equal(t, int32(1), p.unloads.Load())
}

func TestHost_UnloadRacingLoadSettleNeverHangs(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")

	// Fire unloads right as loads settle: whichever side wins, both calls
	// must return, and the queued-unload channel must always be serviced.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 300; i++ {
			p := &fakePlugin{}
			var wg sync.WaitGroup
			wg.Add(2)
			go func() {
				defer wg.Done()
				_ = h.LoadInstance(context.Background(), id, p)
			}()
			go func() {
				defer wg.Done()
				_ = h.UnloadPlugin(context.Background(), id)
			}()
			wg.Wait()
			assert.NoError(t, h.UnloadPlugin(context.Background(), id))
		}
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("load/unload race deadlocked")
	}
	assert.Equal(t, lifecycle.StateUnloaded, h.State(id))
}

func TestHost_SettingsRoundtrip(t *testing.T) {
	t.Parallel()

	store := &memSettings{}
	h := newTestHost(t, &fakeSource{}, host.WithSettingsStore(store))
	id := values.MustPluginID("calendar")

	p := &fakePlugin{loadFn: func(ctx context.Context, api pluginhost.API) error {
		first, err := api.LoadSettings(ctx)
		if err != nil {
			return err
		}
		if first != nil {
			return errors.New("expected nil settings on first load")
		}
		return api.SaveSettings(ctx, []byte(`{"weekStart":"monday"}`))
	}}
	require.NoError(t, h.LoadInstance(context.Background(), id, p))

	data, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.JSONEq(t, `{"weekStart":"monday"}`, string(data))
}

func TestHost_DispatchDOM(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")

	var clicks atomic.Int32
	p := &fakePlugin{loadFn: func(ctx context.Context, api pluginhost.API) error {
		return api.AddDOMListener("ribbon", "click", func(any) { clicks.Add(1) })
	}}
	require.NoError(t, h.LoadInstance(context.Background(), id, p))

	h.DispatchDOM("ribbon", "click", nil)
	require.Eventually(t, func() bool { return clicks.Load() == 1 }, time.Second, time.Millisecond)

	// Different target, no delivery.
	h.DispatchDOM("statusbar", "click", nil)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(1), clicks.Load())
}

func TestHost_LoadedEventEmitted(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, &fakeSource{})
	id := values.MustPluginID("calendar")

	var loaded, unloaded atomic.Int32
	h.On(host.EventPluginLoaded, func(payload any) {
		if payload == id.String() {
			loaded.Add(1)
		}
	})
	h.On(host.EventPluginUnloaded, func(any) { unloaded.Add(1) })

	require.NoError(t, h.LoadInstance(context.Background(), id, &fakePlugin{}))
	require.Eventually(t, func() bool { return loaded.Load() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, h.UnloadPlugin(context.Background(), id))
	require.Eventually(t, func() bool { return unloaded.Load() == 1 }, time.Second, time.Millisecond)
}

func TestHost_ClearCache(t *testing.T) {
	t.Parallel()

	source := &fakeSource{}
	h := newTestHost(t, source)

	h.ClearCache()
	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 1, source.cleared)
}

func TestHost_StopUnloadsEverything(t *testing.T) {
	t.Parallel()

	snap, err := contract.Pin(hostAPI)
	require.NoError(t, err)
	h := host.NewHost(hostAPI, contract.NewGuard(snap), &fakeSource{},
		host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, h.Start(context.Background()))

	a := &fakePlugin{}
	b := &fakePlugin{}
	require.NoError(t, h.LoadInstance(context.Background(), values.MustPluginID("a"), a))
	require.NoError(t, h.LoadInstance(context.Background(), values.MustPluginID("b"), b))

	h.Stop(context.Background())

	assert.Equal(t, int32(1), a.unloads.Load())
	assert.Equal(t, int32(1), b.unloads.Load())
	assert.Equal(t, lifecycle.StateUnloaded, h.State(values.MustPluginID("a")))
}
