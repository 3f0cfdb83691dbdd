package lifecycle

import (
	"sync"

	"github.com/google/uuid"
)

// Disposable is one acquired, releasable capability: an event subscription,
// a timer, a DOM-level listener, a registered UI contribution. It is owned
// exclusively by the ledger entry that issued it and is never shared.
type Disposable struct {
	id      uuid.UUID
	kind    string
	release func()

	once sync.Once
}

func newDisposable(kind string, release func()) *Disposable {
	return &Disposable{
		id:      uuid.New(),
		kind:    kind,
		release: release,
	}
}

// ID returns the disposable's unique handle.
func (d *Disposable) ID() uuid.UUID { return d.id }

// Kind describes what was acquired ("event", "interval", "dom-listener",
// "command", ...). Used in logs only.
func (d *Disposable) Kind() string { return d.kind }

// Release frees the resource. Releasing twice is a no-op, not an error, so
// a ledger drain after a plugin's own teardown already ran stays safe.
func (d *Disposable) Release() {
	d.once.Do(func() {
		if d.release != nil {
			d.release()
		}
	})
}
