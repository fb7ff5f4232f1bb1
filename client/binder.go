package client

import (
	"context"
	"sync"
)

// BindState is the chat session binder's position in the identity lifecycle.
type BindState int

const (
	// BindNone means no identity is present and no connection exists.
	BindNone BindState = iota
	// BindAwaitingToken means an identity appeared and a token is being fetched.
	BindAwaitingToken
	// BindConnecting means a token was obtained and the transport is dialing.
	BindConnecting
	// BindRetrying means an attempt failed and another is scheduled.
	BindRetrying
	// BindConnected means the chat session is live.
	BindConnected
	// BindFailed means attempts were exhausted or the session dropped; the
	// identity is still present but chat is degraded.
	BindFailed
)

// String returns the string representation of a BindState.
func (s BindState) String() string {
	switch s {
	case BindNone:
		return "none"
	case BindAwaitingToken:
		return "awaiting_token"
	case BindConnecting:
		return "connecting"
	case BindRetrying:
		return "retrying"
	case BindConnected:
		return "connected"
	case BindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Binder ties the transport session to the authenticated identity's
// lifecycle. Feed it identity transitions through SetIdentity; it opens the
// session when an identity appears, tears it down when the identity goes
// away or changes, and discards results of work started for an identity
// that is no longer current.
type Binder struct {
	session *Session
	logger  Logger

	mu       sync.Mutex
	state    BindState
	identity *Identity
	cancel   context.CancelFunc
	onChange func(old, next BindState)
}

// NewBinder wires a binder to the given session. The binder claims the
// session's state observer slot.
func NewBinder(session *Session) *Binder {
	b := &Binder{session: session, logger: noopLogger{}}
	session.SetStateFunc(b.observeSession)
	return b
}

// SetLogger overrides the logger (optional).
func (b *Binder) SetLogger(l Logger) {
	if l == nil {
		return
	}
	b.logger = l
}

// SetStateFunc registers an observer for binder state transitions.
func (b *Binder) SetStateFunc(fn func(old, next BindState)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// State returns the current binder state.
func (b *Binder) State() BindState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Identity returns the identity the binder is currently serving, nil when
// none.
func (b *Binder) Identity() *Identity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.identity
}

// SetIdentity reacts to an authentication state transition. A nil identity
// means logout: the transport is closed before the transition is
// acknowledged. A new identity cancels any in-flight work for the previous
// one, including pending token fetches and remaining retry attempts.
// Re-binding the identity that is already connected or connecting is a
// no-op beyond refreshing the stored flags.
func (b *Binder) SetIdentity(ident *Identity) {
	b.mu.Lock()

	if ident != nil && b.identity != nil && b.identity.ID == ident.ID && b.state != BindNone && b.state != BindFailed {
		b.identity = ident
		b.mu.Unlock()
		return
	}

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	if ident == nil {
		b.identity = nil
		b.mu.Unlock()
		b.session.Close()
		b.transition(BindNone)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.identity = ident
	b.cancel = cancel
	b.mu.Unlock()

	b.transition(BindAwaitingToken)
	go b.bind(ctx, ident.ID)
}

// Close releases the binder and its session. Equivalent to SetIdentity(nil).
func (b *Binder) Close() {
	b.SetIdentity(nil)
}

func (b *Binder) bind(ctx context.Context, identityID int64) {
	if err := b.session.Open(ctx, identityID); err != nil && ctx.Err() == nil {
		b.logger.Warn("chat session bind failed", map[string]any{
			"identity_id": identityID,
			"error":       err.Error(),
		})
	}
}

// observeSession maps transport transitions onto binder states, dropping
// anything reported for an identity that is no longer current.
func (b *Binder) observeSession(ev StateEvent) {
	b.mu.Lock()
	ident := b.identity
	current := b.state
	b.mu.Unlock()

	if ident == nil || ident.ID != ev.IdentityID {
		return
	}

	switch ev.New {
	case StateConnecting:
		b.transition(BindConnecting)
	case StateRetrying:
		b.transition(BindRetrying)
	case StateConnected:
		b.transition(BindConnected)
	case StateFailed:
		b.transition(BindFailed)
	case StateDisconnected, StateClosed:
		// A drop under a still-present identity degrades chat.
		if current == BindConnected {
			b.transition(BindFailed)
		}
	}
}

func (b *Binder) transition(next BindState) {
	b.mu.Lock()
	old := b.state
	if old == next {
		b.mu.Unlock()
		return
	}
	b.state = next
	fn := b.onChange
	b.mu.Unlock()

	if fn != nil {
		fn(old, next)
	}
}
