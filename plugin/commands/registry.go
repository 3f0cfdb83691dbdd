// Package commands holds the invocable actions plugins contribute, enforces
// global hotkey uniqueness, and runs dynamic visibility checks.
package commands

import (
	"log/slog"
	"sync"

	"github.com/igne-dev/pluginhost/plugin/values"
)

// Descriptor declares one invocable action a plugin contributes.
type Descriptor struct {
	// Plugin namespaces the command id.
	Plugin values.PluginID

	// ID is unique within the plugin's namespace.
	ID string

	// Name is the user-facing label shown in the palette.
	Name string

	// Hotkey is optional. Uniqueness of the chord is enforced globally
	// across all loaded plugins at registration time.
	Hotkey values.Hotkey

	// Check is an optional visibility predicate. It is invoked lazily,
	// once per palette render or hotkey press, and never cached, because
	// plugin state may change between checks.
	Check func() bool

	// Run executes the command.
	Run func()
}

// QualifiedID returns the globally unique "plugin:id" form.
func (d Descriptor) QualifiedID() string {
	return d.Plugin.String() + ":" + d.ID
}

// Registration is the handle returned by Register. The host wraps it in a
// ledger disposable so unregistration happens automatically on unload.
type Registration struct {
	registry *Registry
	id       string
	once     sync.Once
}

// Unregister removes the command and frees its hotkey binding. Idempotent.
func (r *Registration) Unregister() {
	r.once.Do(func() { r.registry.remove(r.id) })
}

// Registry is the global command and hotkey table. Mutation is serialized
// by the host's event loop; the mutex keeps the registry safe should an
// adapter call in from another goroutine.
type Registry struct {
	mu       sync.Mutex
	commands map[string]Descriptor // qualified id -> descriptor
	bindings map[string]string     // canonical chord -> qualified id
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used to report misbehaving visibility checks.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// NewRegistry creates an empty command registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		commands: make(map[string]Descriptor),
		bindings: make(map[string]string),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a command. It fails with DuplicateCommandError when the
// (plugin, id) pair already exists and with HotkeyConflictError when the
// requested chord is taken; in both cases the existing registration is
// untouched.
func (r *Registry) Register(d Descriptor) (*Registration, error) {
	qid := d.QualifiedID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[qid]; exists {
		return nil, &DuplicateCommandError{Plugin: d.Plugin, ID: d.ID}
	}
	if !d.Hotkey.IsEmpty() {
		if owner, bound := r.bindings[d.Hotkey.String()]; bound {
			return nil, &HotkeyConflictError{Hotkey: d.Hotkey, Owner: owner}
		}
		r.bindings[d.Hotkey.String()] = qid
	}
	r.commands[qid] = d

	return &Registration{registry: r, id: qid}, nil
}

func (r *Registry) remove(qid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.commands[qid]
	if !ok {
		return
	}
	delete(r.commands, qid)
	if !d.Hotkey.IsEmpty() && r.bindings[d.Hotkey.String()] == qid {
		delete(r.bindings, d.Hotkey.String())
	}
}

// Visible lists the commands whose visibility check passes right now.
// Checks run fresh on every call.
func (r *Registry) Visible() []Descriptor {
	r.mu.Lock()
	snapshot := make([]Descriptor, 0, len(r.commands))
	for _, d := range r.commands {
		snapshot = append(snapshot, d)
	}
	r.mu.Unlock()

	out := snapshot[:0]
	for _, d := range snapshot {
		if r.checkVisible(d) {
			out = append(out, d)
		}
	}
	return out
}

// Execute runs a command by qualified id after a fresh visibility check.
// A hidden command is reported the same as a missing one.
func (r *Registry) Execute(qid string) error {
	r.mu.Lock()
	d, ok := r.commands[qid]
	r.mu.Unlock()

	if !ok || !r.checkVisible(d) {
		return ErrUnknownCommand
	}
	if d.Run != nil {
		d.Run()
	}
	return nil
}

// Trigger dispatches a hotkey press to its bound command, if any.
// Returns false when the chord is unbound or the command is hidden.
func (r *Registry) Trigger(h values.Hotkey) bool {
	r.mu.Lock()
	qid, bound := r.bindings[h.String()]
	d := r.commands[qid]
	r.mu.Unlock()

	if !bound || !r.checkVisible(d) {
		return false
	}
	if d.Run != nil {
		d.Run()
	}
	return true
}

// BoundTo returns the qualified id holding a chord, if any.
func (r *Registry) BoundTo(h values.Hotkey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	qid, ok := r.bindings[h.String()]
	return qid, ok
}

// checkVisible evaluates a visibility predicate. A predicate that panics
// is treated as "not visible" so one misbehaving plugin cannot break the
// palette for everyone else.
func (r *Registry) checkVisible(d Descriptor) (visible bool) {
	if d.Check == nil {
		return true
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("visibility check panicked",
				"command", d.QualifiedID(), "panic", rec)
			visible = false
		}
	}()
	return d.Check()
}
