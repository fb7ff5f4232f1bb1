package client

import "testing"

func TestMuxIndependentRegistrations(t *testing.T) {
	m := NewMux()

	calls := 0
	fn := func(Event) { calls++ }
	m.Subscribe(EventMessageReceived, fn)
	m.Subscribe(EventMessageReceived, fn)

	m.Dispatch(Event{Kind: EventMessageReceived, Message: &ChatMessage{Content: "hi"}})

	if calls != 2 {
		t.Fatalf("expected 2 calls for two registrations, got %d", calls)
	}
}

func TestMuxDispatchInRegistrationOrder(t *testing.T) {
	m := NewMux()

	var order []int
	m.Subscribe(EventPresenceChanged, func(Event) { order = append(order, 1) })
	m.Subscribe(EventPresenceChanged, func(Event) { order = append(order, 2) })
	m.Subscribe(EventPresenceChanged, func(Event) { order = append(order, 3) })

	m.Dispatch(Event{Kind: EventPresenceChanged, Presence: &PresenceUpdate{IdentityID: 1}})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("unexpected dispatch order: %v", order)
	}
}

func TestMuxOnlyMatchingKindDelivered(t *testing.T) {
	m := NewMux()

	var messages, presences int
	m.Subscribe(EventMessageReceived, func(Event) { messages++ })
	m.Subscribe(EventPresenceChanged, func(Event) { presences++ })

	m.Dispatch(Event{Kind: EventMessageReceived, Message: &ChatMessage{}})

	if messages != 1 || presences != 0 {
		t.Fatalf("expected message-only delivery, got messages=%d presences=%d", messages, presences)
	}
}

func TestMuxUnsubscribeIdempotent(t *testing.T) {
	m := NewMux()

	calls := 0
	id := m.Subscribe(EventConnected, func(Event) { calls++ })

	m.Unsubscribe(id)
	m.Unsubscribe(id)
	m.Unsubscribe(SubscriptionID(999))

	m.Dispatch(Event{Kind: EventConnected})
	if calls != 0 {
		t.Fatalf("expected no delivery after unsubscribe, got %d", calls)
	}
}

func TestMuxUnsubscribeDuringDispatch(t *testing.T) {
	m := NewMux()

	var secondID SubscriptionID
	var first, second, third int
	m.Subscribe(EventMessageReceived, func(Event) {
		first++
		m.Unsubscribe(secondID)
	})
	secondID = m.Subscribe(EventMessageReceived, func(Event) { second++ })
	m.Subscribe(EventMessageReceived, func(Event) { third++ })

	m.Dispatch(Event{Kind: EventMessageReceived, Message: &ChatMessage{}})
	m.Dispatch(Event{Kind: EventMessageReceived, Message: &ChatMessage{}})

	if second != 0 {
		t.Fatalf("removed subscriber received %d events", second)
	}
	if first != 2 || third != 2 {
		t.Fatalf("unrelated subscribers skipped: first=%d third=%d", first, third)
	}
}

func TestMuxPanickingSubscriberIsolated(t *testing.T) {
	m := NewMux()

	var after int
	m.Subscribe(EventMessageReceived, func(Event) { panic("boom") })
	m.Subscribe(EventMessageReceived, func(Event) { after++ })

	m.Dispatch(Event{Kind: EventMessageReceived, Message: &ChatMessage{}})

	if after != 1 {
		t.Fatalf("subscriber after panicking one not delivered: %d", after)
	}
}

func TestMuxNoReplayForLateSubscriber(t *testing.T) {
	m := NewMux()

	m.Dispatch(Event{Kind: EventMessageReceived, Message: &ChatMessage{Content: "early"}})

	calls := 0
	m.Subscribe(EventMessageReceived, func(Event) { calls++ })
	if calls != 0 {
		t.Fatalf("late subscriber must not see past events, got %d", calls)
	}
}
