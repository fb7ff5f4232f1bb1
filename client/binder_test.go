package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wardroom-app/wardroom/internal/proto"
)

func waitBind(t *testing.T, ch chan BindState, want BindState) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected state %s, got %s", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for state %s", want)
	}
}

func waitBindEventually(t *testing.T, ch chan BindState, want BindState) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func TestBinderConnectAndLogout(t *testing.T) {
	tokens := &fakeTokens{}
	mux := NewMux()
	w := newFakeWire()
	s := NewSession(DefaultConfig("http://example"), tokens, mux)
	s.dial = func(context.Context, string) (wire, error) { return w, nil }

	b := NewBinder(s)
	states := make(chan BindState, 16)
	b.SetStateFunc(func(_, next BindState) { states <- next })

	b.SetIdentity(&Identity{ID: 7, Approved: true})
	waitBind(t, states, BindAwaitingToken)
	waitBind(t, states, BindConnecting)
	waitBind(t, states, BindConnected)

	if !s.IsConnected() {
		t.Fatalf("session should be connected")
	}

	b.SetIdentity(nil)
	waitBind(t, states, BindNone)
	if s.IsConnected() {
		t.Fatalf("logout must close the transport")
	}
	if b.Identity() != nil {
		t.Fatalf("identity must be cleared on logout")
	}
}

func TestBinderSameIdentityWhileConnectedIsNoop(t *testing.T) {
	tokens := &fakeTokens{}
	s := NewSession(DefaultConfig("http://example"), tokens, NewMux())
	dials := 0
	s.dial = func(context.Context, string) (wire, error) {
		dials++
		return newFakeWire(), nil
	}

	b := NewBinder(s)
	states := make(chan BindState, 16)
	b.SetStateFunc(func(_, next BindState) { states <- next })

	b.SetIdentity(&Identity{ID: 7, Approved: true})
	waitBindEventually(t, states, BindConnected)

	b.SetIdentity(&Identity{ID: 7, Approved: true})

	select {
	case got := <-states:
		t.Fatalf("unexpected transition to %s", got)
	case <-time.After(50 * time.Millisecond):
	}
	if dials != 1 {
		t.Fatalf("rebinding the same identity must not redial, got %d dials", dials)
	}
}

func TestBinderIdentityChangeReplacesConnection(t *testing.T) {
	tokens := &fakeTokens{}
	s := NewSession(DefaultConfig("http://example"), tokens, NewMux())
	wires := []*fakeWire{newFakeWire(), newFakeWire()}
	dials := 0
	s.dial = func(context.Context, string) (wire, error) {
		w := wires[dials]
		dials++
		return w, nil
	}

	b := NewBinder(s)
	states := make(chan BindState, 16)
	b.SetStateFunc(func(_, next BindState) { states <- next })

	b.SetIdentity(&Identity{ID: 7, Approved: true})
	waitBindEventually(t, states, BindConnected)

	b.SetIdentity(&Identity{ID: 8, Approved: true})
	waitBindEventually(t, states, BindConnected)

	if dials != 2 {
		t.Fatalf("expected a fresh connection for the new identity, got %d dials", dials)
	}
	if !wires[0].isClosed() {
		t.Fatalf("old identity's connection must be closed")
	}
}

func TestBinderIdentityDisappearsMidRetry(t *testing.T) {
	tokens := &fakeTokens{}
	s := NewSession(DefaultConfig("http://example"), tokens, NewMux())
	s.dial = func(context.Context, string) (wire, error) {
		return nil, errors.New("refused")
	}
	s.sleep = func(ctx context.Context, _ time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	}

	b := NewBinder(s)
	states := make(chan BindState, 16)
	b.SetStateFunc(func(_, next BindState) { states <- next })

	b.SetIdentity(&Identity{ID: 7, Approved: true})
	waitBind(t, states, BindAwaitingToken)
	waitBind(t, states, BindConnecting)
	waitBind(t, states, BindRetrying)

	b.SetIdentity(nil)
	waitBind(t, states, BindNone)

	// One attempt happened; remaining ones were aborted.
	if got := tokens.count(); got != 1 {
		t.Fatalf("expected retries to stop on logout, got %d token exchanges", got)
	}
}

func TestBinderExhaustedRetriesDegradeToFailed(t *testing.T) {
	tokens := &fakeTokens{}
	s := NewSession(DefaultConfig("http://example"), tokens, NewMux())
	s.dial = func(context.Context, string) (wire, error) {
		return nil, errors.New("refused")
	}
	s.sleep = func(context.Context, time.Duration) error { return nil }

	b := NewBinder(s)
	states := make(chan BindState, 64)
	b.SetStateFunc(func(_, next BindState) { states <- next })

	b.SetIdentity(&Identity{ID: 7, Approved: true})
	waitBindEventually(t, states, BindFailed)

	if got := tokens.count(); got != 5 {
		t.Fatalf("expected 5 attempts before failing, got %d", got)
	}
	if b.State() != BindFailed {
		t.Fatalf("binder should stay failed, got %s", b.State())
	}
	if b.Identity() == nil {
		t.Fatalf("identity remains present with chat degraded")
	}
}

// Mirrors the approval lifecycle: an unapproved identity is held at the
// pending page, approval renders the dashboard, and the chat session then
// comes up and starts delivering presence.
func TestApprovalFlowEndToEnd(t *testing.T) {
	ident := &Identity{ID: 7, Approved: false}

	if got := Decide(IdentityLoaded, ident); got != DecisionRedirectPending {
		t.Fatalf("unapproved identity: got %s", got)
	}

	ident = &Identity{ID: 7, Approved: true}
	if got := Decide(IdentityLoaded, ident); got != DecisionRender {
		t.Fatalf("approved identity: got %s", got)
	}

	tokens := &fakeTokens{}
	mux := NewMux()
	presence := collectEvents(mux, EventPresenceChanged)
	w := newFakeWire()
	s := NewSession(DefaultConfig("http://example"), tokens, mux)
	s.dial = func(context.Context, string) (wire, error) { return w, nil }

	b := NewBinder(s)
	states := make(chan BindState, 16)
	b.SetStateFunc(func(_, next BindState) { states <- next })

	b.SetIdentity(ident)
	waitBind(t, states, BindAwaitingToken)
	waitBind(t, states, BindConnecting)
	waitBind(t, states, BindConnected)

	out, err := proto.NewEvent(proto.EventPresence, proto.PresenceData{IdentityID: 7, Online: true})
	if err != nil {
		t.Fatalf("build presence: %v", err)
	}
	w.incoming <- out

	ev := waitEvent(t, presence)
	if ev.Presence == nil || ev.Presence.IdentityID != 7 || !ev.Presence.Online {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
}
