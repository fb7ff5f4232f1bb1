package client

import (
	"fmt"
	"sync"
)

// SubscriptionID identifies one registration with the multiplexer.
type SubscriptionID uint64

type subscription struct {
	id   SubscriptionID
	kind EventKind
	fn   func(Event)
}

// Mux fans server-pushed events out to independently registered subscribers.
//
// Each Subscribe call is an independent registration: subscribing the same
// callback twice for the same kind means it fires twice per event, and each
// registration needs its own Unsubscribe. Events are delivered only to
// subscribers registered at dispatch time; there is no buffering or replay.
type Mux struct {
	logger Logger

	mu     sync.Mutex
	nextID SubscriptionID
	subs   map[EventKind][]*subscription
}

// NewMux constructs an empty multiplexer.
func NewMux() *Mux {
	return &Mux{
		logger: noopLogger{},
		subs:   make(map[EventKind][]*subscription),
	}
}

// SetLogger overrides the logger (optional).
func (m *Mux) SetLogger(l Logger) {
	if l == nil {
		return
	}
	m.logger = l
}

// Subscribe registers fn for events of the given kind. Callbacks for a kind
// fire in registration order. fn may be invoked from the transport's
// goroutine; it must not assume any particular caller.
func (m *Mux) Subscribe(kind EventKind, fn func(Event)) SubscriptionID {
	if fn == nil {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	sub := &subscription{id: m.nextID, kind: kind, fn: fn}
	m.subs[kind] = append(m.subs[kind], sub)
	return sub.id
}

// Unsubscribe removes a registration. Safe to call more than once and with
// an unknown id.
func (m *Mux) Unsubscribe(id SubscriptionID) {
	if id == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for kind, subs := range m.subs {
		for i, sub := range subs {
			if sub.id == id {
				m.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers ev to every current subscriber of ev.Kind. A panicking
// callback is logged and does not prevent delivery to the rest. A subscriber
// removed mid-dispatch is skipped for the remainder of this dispatch.
func (m *Mux) Dispatch(ev Event) {
	m.mu.Lock()
	snapshot := append([]*subscription(nil), m.subs[ev.Kind]...)
	m.mu.Unlock()

	for _, sub := range snapshot {
		if !m.registered(sub.id, ev.Kind) {
			continue
		}
		m.invoke(sub, ev)
	}
}

func (m *Mux) registered(id SubscriptionID, kind EventKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs[kind] {
		if sub.id == id {
			return true
		}
	}
	return false
}

func (m *Mux) invoke(sub *subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("subscriber panicked", map[string]any{
				"event": ev.Kind.String(),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	sub.fn(ev)
}
