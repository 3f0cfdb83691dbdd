package host

import (
	"sync"

	"github.com/google/uuid"
)

// Host events emitted by the runtime itself. Plugins and the surrounding
// application can subscribe to these like any other event.
const (
	EventPluginLoaded   = "plugin-loaded"
	EventPluginUnloaded = "plugin-unloaded"
	EventPluginFailed   = "plugin-load-failed"
)

// eventBus fans events out to subscribed handlers. Delivery happens on the
// host loop, so handlers never run concurrently with each other.
type eventBus struct {
	mu       sync.Mutex
	handlers map[string]map[uuid.UUID]func(payload any)
	loop     *Loop
}

func newEventBus(loop *Loop) *eventBus {
	return &eventBus{
		handlers: make(map[string]map[uuid.UUID]func(payload any)),
		loop:     loop,
	}
}

// subscribe registers a handler and returns its remove function.
func (b *eventBus) subscribe(event string, handler func(payload any)) func() {
	id := uuid.New()

	b.mu.Lock()
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[uuid.UUID]func(payload any))
	}
	b.handlers[event][id] = handler
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if hs := b.handlers[event]; hs != nil {
			delete(hs, id)
			if len(hs) == 0 {
				delete(b.handlers, event)
			}
		}
	}
}

// emit posts the event to every current subscriber. The handler set is
// snapshotted first, so a handler that unsubscribes mid-delivery does not
// perturb the fan-out already in flight.
func (b *eventBus) emit(event string, payload any) {
	b.mu.Lock()
	snapshot := make([]func(payload any), 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		snapshot = append(snapshot, h)
	}
	b.mu.Unlock()

	for _, h := range snapshot {
		h := h
		b.loop.Post(func() { h(payload) })
	}
}

// domKey builds the bus key for a DOM-level listener. The host treats UI
// targets opaquely; the rendering layer dispatches into the bus with the
// same key.
func domKey(target, event string) string {
	return "dom\x00" + target + "\x00" + event
}
