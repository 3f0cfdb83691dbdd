package lifecycle

import (
	"log/slog"
	"sync"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// Ledger issues and tracks every disposable resource plugins acquire.
// All acquisition goes through the ledger; nothing a plugin holds may
// bypass it. On unload, or on any unrecoverable failure during load, the
// ledger releases the plugin's disposables in reverse acquisition order.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]*entry
	logger  *slog.Logger
}

// entry is the per-plugin bookkeeping record. Created when the plugin
// begins loading, mutated only by that plugin's registrations while it is
// Loading or Active, destroyed when the plugin unloads.
type entry struct {
	owner       values.PluginID
	state       State
	disposables []*Disposable
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLogger sets the logger used for drain reporting.
func WithLogger(l *slog.Logger) LedgerOption {
	return func(ld *Ledger) { ld.logger = l }
}

// NewLedger creates an empty resource ledger.
func NewLedger(opts ...LedgerOption) *Ledger {
	l := &Ledger{
		entries: make(map[string]*entry),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Begin transitions a plugin from Unloaded to Loading and opens its entry.
func (l *Ledger) Begin(owner values.PluginID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[owner.String()]; ok && e.state != StateUnloaded {
		return &InvalidLifecycleStateError{Plugin: owner, State: e.state, Op: "begin loading"}
	}
	l.entries[owner.String()] = &entry{owner: owner, state: StateLoading}
	return nil
}

// Activate transitions a plugin from Loading to Active after its load hook
// settled successfully.
func (l *Ledger) Activate(owner values.PluginID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[owner.String()]
	if !ok || e.state != StateLoading {
		return &InvalidLifecycleStateError{Plugin: owner, State: l.stateLocked(owner), Op: "activate"}
	}
	e.state = StateActive
	return nil
}

// Register issues a disposable to the owning plugin. Legal only while the
// plugin is Loading or Active.
func (l *Ledger) Register(owner values.PluginID, kind string, release func()) (*Disposable, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[owner.String()]
	if !ok || !e.state.canRegister() {
		return nil, &InvalidLifecycleStateError{Plugin: owner, State: l.stateLocked(owner), Op: "register " + kind}
	}
	d := newDisposable(kind, release)
	e.disposables = append(e.disposables, d)
	return d, nil
}

// Drain releases every disposable the plugin holds, last-acquired first,
// and returns the plugin to Unloaded. Draining an already-unloaded plugin
// is a no-op so cleanup stays idempotent. A release callback that panics
// is logged and skipped; the remaining disposables are still released.
func (l *Ledger) Drain(owner values.PluginID) {
	l.mu.Lock()
	e, ok := l.entries[owner.String()]
	if !ok || e.state == StateUnloaded {
		l.mu.Unlock()
		return
	}
	e.state = StateUnloading
	disposables := e.disposables
	e.disposables = nil
	l.mu.Unlock()

	for i := len(disposables) - 1; i >= 0; i-- {
		l.releaseOne(owner, disposables[i])
	}

	l.mu.Lock()
	e.state = StateUnloaded
	delete(l.entries, owner.String())
	l.mu.Unlock()
}

func (l *Ledger) releaseOne(owner values.PluginID, d *Disposable) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("disposable release panicked",
				"plugin", owner.String(),
				"kind", d.Kind(),
				"id", d.ID().String(),
				"panic", r)
		}
	}()
	d.Release()
}

// State reports the plugin's current lifecycle state.
func (l *Ledger) State(owner values.PluginID) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked(owner)
}

func (l *Ledger) stateLocked(owner values.PluginID) State {
	if e, ok := l.entries[owner.String()]; ok {
		return e.state
	}
	return StateUnloaded
}

// Count returns the number of live disposables held by a plugin.
func (l *Ledger) Count(owner values.PluginID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.entries[owner.String()]; ok {
		return len(e.disposables)
	}
	return 0
}

// Owners lists plugins with open ledger entries. Used by the host during
// shutdown to drain everything still loaded.
func (l *Ledger) Owners() []values.PluginID {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]values.PluginID, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e.owner)
	}
	return out
}
