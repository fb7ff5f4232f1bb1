package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/wardroom-app/wardroom/client/internal"
	"github.com/wardroom-app/wardroom/internal/proto"
)

// TokenSource yields a fresh messaging token for the current session.
// *REST implements it.
type TokenSource interface {
	ChatToken(ctx context.Context) (string, error)
}

// retrySchedule is the delay between consecutive connection attempts: one
// entry per retry, so maxConnectAttempts attempts run len(retrySchedule)+1
// deep. Attempts past the end of the schedule reuse its last entry.
var retrySchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
}

// maxConnectAttempts bounds how many times Open tries before giving up:
// one initial attempt plus one retry per schedule entry.
const maxConnectAttempts = 5

// wire is the minimal connection surface the session needs. The production
// implementation wraps a websocket; tests substitute their own.
type wire interface {
	Read(ctx context.Context, v any) error
	Write(ctx context.Context, v any) error
	Close(code websocket.StatusCode, reason string) error
}

type dialFunc func(ctx context.Context, urlStr string) (wire, error)

type sleepFunc func(ctx context.Context, d time.Duration) error

// Session owns at most one live connection to the messaging backend.
// Opening for a new identity first tears down any connection belonging to a
// previous one; opening for the identity already connected is a no-op.
// Incoming events are fanned out through the attached Mux.
type Session struct {
	cfg    Config
	tokens TokenSource
	mux    *Mux
	logger Logger

	dial  dialFunc
	sleep sleepFunc

	onState func(StateEvent)

	mu         sync.Mutex
	openMu     sync.Mutex
	state      ConnectionState
	identityID int64
	conn       wire
	cancel     context.CancelFunc
	writeCh    chan proto.Inbound
}

// NewSession constructs a session that exchanges tokens through tokens and
// dispatches events through mux.
func NewSession(cfg Config, tokens TokenSource, mux *Mux) *Session {
	s := &Session{
		cfg:    cfg,
		tokens: tokens,
		mux:    mux,
		logger: noopLogger{},
		sleep:  sleepCtx,
	}
	s.dial = s.dialWebsocket
	return s
}

// SetLogger overrides the logger (optional).
func (s *Session) SetLogger(l Logger) {
	if l == nil {
		return
	}
	s.logger = l
}

// SetStateFunc registers an observer for connection state transitions. The
// callback runs synchronously on the transitioning goroutine; keep it cheap.
func (s *Session) SetStateFunc(fn func(StateEvent)) {
	s.onState = fn
}

// IsConnected reports whether a live connection exists.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// Open establishes a connection for the given identity. A fresh token is
// exchanged on every attempt; a failed exchange counts as a connection
// failure. Failures retry on retrySchedule up to maxConnectAttempts, then a
// terminal connectionError and disconnected pair is dispatched and the last
// error returned. Cancelling ctx aborts remaining attempts without the
// terminal events.
func (s *Session) Open(ctx context.Context, identityID int64) error {
	if s.tokens == nil {
		return NewError(ErrorInvalidConfig, "session has no token source")
	}

	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	if s.state == StateConnected && s.identityID == identityID {
		s.mu.Unlock()
		return nil
	}
	hasConn := s.conn != nil
	s.mu.Unlock()

	if hasConn {
		// A connection for a different identity must go first.
		s.Close()
	}

	var lastErr error
	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			s.setState(StateDisconnected, identityID, err)
			return err
		}

		conn, err := s.connectOnce(ctx, identityID)
		if err == nil {
			s.attach(conn, identityID)
			s.setState(StateConnected, identityID, nil)
			s.mux.Dispatch(Event{Kind: EventConnected})
			return nil
		}
		lastErr = err
		s.logger.Warn("connection attempt failed", map[string]any{
			"attempt": attempt,
			"error":   err.Error(),
		})

		if attempt == maxConnectAttempts {
			break
		}
		s.setState(StateRetrying, identityID, err)
		delay := retrySchedule[min(attempt-1, len(retrySchedule)-1)]
		if serr := s.sleep(ctx, delay); serr != nil {
			s.setState(StateDisconnected, identityID, serr)
			return serr
		}
	}

	s.setState(StateFailed, identityID, lastErr)
	terminal := WrapError(ErrorConnection, "connection attempts exhausted", lastErr)
	s.mux.Dispatch(Event{Kind: EventConnectionError, Err: terminal})
	s.mux.Dispatch(Event{Kind: EventDisconnected})
	return terminal
}

func (s *Session) connectOnce(ctx context.Context, identityID int64) (wire, error) {
	token, err := s.tokens.ChatToken(ctx)
	if err != nil {
		return nil, err
	}

	s.setState(StateConnecting, identityID, nil)
	return s.dial(ctx, s.cfg.socketURL()+"?token="+url.QueryEscape(token))
}

// Close tears down the connection if one exists. Safe to call repeatedly and
// on a session that never opened.
func (s *Session) Close() error {
	s.mu.Lock()
	wasConnected := s.state == StateConnected
	identityID := s.identityID
	conn := s.conn
	cancel := s.cancel
	s.conn = nil
	s.cancel = nil
	s.writeCh = nil
	s.identityID = 0
	s.state = StateClosed
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client close")
	}
	if wasConnected {
		s.emitState(StateConnected, StateClosed, identityID, nil)
		s.mux.Dispatch(Event{Kind: EventDisconnected})
	}
	return err
}

// JoinRoom subscribes to a room; the server replies with its recent history.
func (s *Session) JoinRoom(ctx context.Context, roomID int64) error {
	return s.send(ctx, proto.InboundTypeJoin, proto.JoinData{RoomID: roomID})
}

// LeaveRoom unsubscribes from a room.
func (s *Session) LeaveRoom(ctx context.Context, roomID int64) error {
	return s.send(ctx, proto.InboundTypeLeave, proto.JoinData{RoomID: roomID})
}

// Send publishes a message to a room. Fire-and-forget: delivery is not
// acknowledged.
func (s *Session) Send(ctx context.Context, roomID int64, content string) error {
	return s.send(ctx, proto.InboundTypeMsg, proto.MsgData{RoomID: roomID, Content: content})
}

func (s *Session) send(ctx context.Context, msgType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return WrapError(ErrorSerialization, "marshal payload", err)
	}

	s.mu.Lock()
	ch := s.writeCh
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || ch == nil {
		return NewError(ErrorNotConnected, "session is not connected")
	}

	select {
	case ch <- proto.Inbound{Type: msgType, Data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) attach(conn wire, identityID int64) {
	runCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	s.conn = conn
	s.cancel = cancel
	s.identityID = identityID
	s.writeCh = make(chan proto.Inbound, 16)
	ch := s.writeCh
	s.mu.Unlock()

	go s.readLoop(runCtx, conn, identityID)
	go s.writeLoop(runCtx, conn, ch)
}

func (s *Session) readLoop(ctx context.Context, conn wire, identityID int64) {
	for {
		var out proto.Outbound
		if err := conn.Read(ctx, &out); err != nil {
			if isExpectedDisconnect(ctx, err) {
				return
			}
			s.logger.Warn("read loop exit", map[string]any{"error": err.Error()})
			s.dropConn(conn, identityID, err)
			return
		}
		s.deliver(out)
	}
}

func (s *Session) writeLoop(ctx context.Context, conn wire, ch chan proto.Inbound) {
	for {
		select {
		case in := <-ch:
			if err := conn.Write(ctx, in); err != nil {
				s.logger.Warn("write loop exit", map[string]any{"error": err.Error()})
				s.mux.Dispatch(Event{
					Kind: EventConnectionError,
					Err:  WrapError(ErrorConnection, "write failed", err),
				})
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// dropConn handles an unexpected mid-session disconnect observed by the read
// loop. Only the connection it reports on is torn down; a newer connection
// stays untouched.
func (s *Session) dropConn(conn wire, identityID int64, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.conn = nil
	s.cancel = nil
	s.writeCh = nil
	s.identityID = 0
	s.state = StateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = conn.Close(websocket.StatusInternalError, "read error")

	s.emitState(StateConnected, StateDisconnected, identityID, cause)
	s.mux.Dispatch(Event{
		Kind: EventConnectionError,
		Err:  WrapError(ErrorDisconnected, "connection lost", cause),
	})
	s.mux.Dispatch(Event{Kind: EventDisconnected})
}

// deliver maps one protocol envelope to multiplexer events, preserving the
// order the server emitted them. History unrolls into individual message
// events.
func (s *Session) deliver(out proto.Outbound) {
	if out.Type == proto.OutboundTypeError {
		var err error
		if out.Error != nil {
			err = NewError(ParseErrorCode(out.Error.Code), out.Error.Msg)
		} else {
			err = NewError(ErrorUnknown, "malformed error envelope")
		}
		s.mux.Dispatch(Event{Kind: EventConnectionError, Err: err})
		return
	}

	switch out.Event {
	case proto.EventMessage:
		var d proto.MessageData
		if err := json.Unmarshal(out.Data, &d); err != nil {
			s.deliverBadPayload(out.Event, err)
			return
		}
		s.mux.Dispatch(Event{Kind: EventMessageReceived, Message: chatMessage(d)})
	case proto.EventPresence:
		var d proto.PresenceData
		if err := json.Unmarshal(out.Data, &d); err != nil {
			s.deliverBadPayload(out.Event, err)
			return
		}
		s.mux.Dispatch(Event{Kind: EventPresenceChanged, Presence: &PresenceUpdate{
			IdentityID: d.IdentityID,
			Online:     d.Online,
			ObservedAt: time.Unix(d.ObservedAt, 0),
		}})
	case proto.EventHistory:
		var d proto.HistoryData
		if err := json.Unmarshal(out.Data, &d); err != nil {
			s.deliverBadPayload(out.Event, err)
			return
		}
		for _, m := range d.Messages {
			s.mux.Dispatch(Event{Kind: EventMessageReceived, Message: chatMessage(m)})
		}
	}
}

func (s *Session) deliverBadPayload(event string, err error) {
	s.mux.Dispatch(Event{
		Kind: EventConnectionError,
		Err:  WrapError(ErrorSerialization, "unmarshal "+event+" event", err),
	})
}

func chatMessage(d proto.MessageData) *ChatMessage {
	return &ChatMessage{
		ID:       d.ID,
		RoomID:   d.RoomID,
		SenderID: d.SenderID,
		Content:  d.Content,
		SentAt:   time.Unix(d.SentAt, 0),
	}
}

func (s *Session) setState(state ConnectionState, identityID int64, err error) {
	s.mu.Lock()
	old := s.state
	s.state = state
	s.mu.Unlock()

	if old != state {
		s.emitState(old, state, identityID, err)
	}
}

func (s *Session) emitState(old, state ConnectionState, identityID int64, err error) {
	if s.onState != nil {
		s.onState(StateEvent{Old: old, New: state, IdentityID: identityID, Err: err})
	}
}

func (s *Session) dialWebsocket(ctx context.Context, urlStr string) (wire, error) {
	dialCtx := ctx
	if s.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.cfg.HandshakeTimeout)
		defer cancel()
	}
	ws, _, err := websocket.Dial(dialCtx, urlStr, nil)
	if err != nil {
		return nil, err
	}
	return internal.NewConn(ws, s.cfg.ReadTimeout, s.cfg.WriteTimeout), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if ctx != nil && ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
