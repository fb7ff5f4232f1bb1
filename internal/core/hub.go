package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardroom-app/wardroom/internal/store"
)

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub coordinates clients, rooms, presence, and message persistence.
// All room and client state is owned by the Run goroutine; external
// callers interact through channels only.
type Hub struct {
	store        store.Store
	log          *zerolog.Logger
	historyLimit int

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	outbound   chan *Event

	clients map[*Client]struct{}
	rooms   map[int64]*Room
}

// NewHub creates a new chat hub instance. A nil store disables persistence
// and history, which is convenient for tests.
func NewHub(st store.Store, logger *zerolog.Logger, historyLimit int) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Hub{
		store:        st,
		log:          logger,
		historyLimit: historyLimit,
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		commands:     make(chan clientCommand),
		outbound:     make(chan *Event, 16),
		clients:      make(map[*Client]struct{}),
		rooms:        make(map[int64]*Room),
	}
}

// RegisterClient adds a client to the hub.
func (h *Hub) RegisterClient(c *Client) {
	h.register <- c
}

// UnregisterClient removes a client from the hub and closes its event channel.
func (h *Hub) UnregisterClient(c *Client) {
	h.unregister <- c
}

// Publish persists a message sent over HTTP and broadcasts it to the room's
// connected clients. Delivery to clients is at-most-once with no buffering:
// subscribers not connected at dispatch time never see the message live.
func (h *Hub) Publish(ctx context.Context, senderID, roomID int64, content string) (*Message, error) {
	if content == "" {
		return nil, ErrBadRequest
	}
	if h.store == nil {
		return nil, ErrRoomNotFound
	}
	if _, err := h.store.GetRoomByID(ctx, roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}

	record := &store.Message{RoomID: roomID, SenderID: senderID, Content: content}
	if err := h.store.SaveMessage(ctx, record); err != nil {
		return nil, err
	}

	msg := &Message{
		ID:       record.ID,
		RoomID:   record.RoomID,
		SenderID: record.SenderID,
		Content:  record.Content,
		SentAt:   record.SentAt,
	}

	select {
	case h.outbound <- &Event{Kind: EventRoomMessage, Message: msg}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return msg, nil
}

// Run processes hub events until context cancellation.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.handleRegister(ctx, c)
		case c := <-h.unregister:
			h.handleUnregister(ctx, c)
		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.cmd)
		case ev := <-h.outbound:
			if ev.Message != nil {
				if room, ok := h.rooms[ev.Message.RoomID]; ok {
					room.Broadcast(ev)
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleRegister(ctx context.Context, c *Client) {
	h.clients[c] = struct{}{}
	go h.pump(ctx, c)

	h.log.Debug().Str("client_id", c.ID).Int64("identity_id", c.IdentityID).Msg("client registered")
	h.setPresence(ctx, c.IdentityID, true)
}

func (h *Hub) handleUnregister(ctx context.Context, c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	for roomID := range c.rooms {
		if room, ok := h.rooms[roomID]; ok {
			room.RemoveClient(c)
			if room.Empty() {
				delete(h.rooms, roomID)
			}
		}
	}

	close(c.done)
	close(c.Events)

	h.log.Debug().Str("client_id", c.ID).Int64("identity_id", c.IdentityID).Msg("client unregistered")
	h.setPresence(ctx, c.IdentityID, false)
}

// setPresence persists the online flag and broadcasts the change to every
// connected client, last-writer-wins.
func (h *Hub) setPresence(ctx context.Context, identityID int64, online bool) {
	if h.store != nil {
		if err := h.store.SetOnline(ctx, identityID, online); err != nil {
			h.log.Warn().Err(err).Int64("identity_id", identityID).Msg("failed to persist presence")
		}
	}

	ev := &Event{Kind: EventPresence, Presence: &Presence{
		IdentityID: identityID,
		Online:     online,
		ObservedAt: time.Now().UTC(),
	}}
	for client := range h.clients {
		select {
		case client.Events <- ev:
		default:
			// Drop if slow consumer.
		}
	}
}

// pump forwards a client's commands into the hub loop. It exits when the
// client's command channel closes, the client unregisters, or the hub stops.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd, ok := <-c.Commands:
			if !ok {
				return
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	switch cmd.Kind {
	case CommandJoinRoom:
		h.handleJoin(ctx, c, cmd.RoomID)
	case CommandLeaveRoom:
		h.handleLeave(c, cmd.RoomID)
	case CommandSendMessage:
		h.handleSend(ctx, c, cmd)
	default:
		h.sendError(c, coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *Client, roomID int64) {
	if h.store != nil {
		if _, err := h.store.GetRoomByID(ctx, roomID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				h.sendError(c, coreError(ErrCodeRoomNotFound, "room not found"))
			} else {
				h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
				h.sendError(c, coreError(ErrCodeInternal, "internal error"))
			}
			return
		}
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}

	if !room.AddClient(c) {
		h.sendError(c, coreError(ErrCodeAlreadyJoined, "already joined"))
		return
	}
	c.rooms[roomID] = struct{}{}

	h.sendHistory(ctx, c, roomID)
}

func (h *Hub) sendHistory(ctx context.Context, c *Client, roomID int64) {
	if h.store == nil {
		return
	}
	records, err := h.store.ListMessages(ctx, roomID, h.historyLimit, nil)
	if err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to load history")
		return
	}

	messages := make([]*Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, &Message{
			ID:       rec.ID,
			RoomID:   rec.RoomID,
			SenderID: rec.SenderID,
			Content:  rec.Content,
			SentAt:   rec.SentAt,
		})
	}

	select {
	case c.Events <- &Event{Kind: EventHistory, Messages: messages}:
	default:
	}
}

func (h *Hub) handleLeave(c *Client, roomID int64) {
	room, ok := h.rooms[roomID]
	if !ok {
		h.sendError(c, coreError(ErrCodeRoomNotFound, "room not found"))
		return
	}
	if !room.RemoveClient(c) {
		h.sendError(c, coreError(ErrCodeNotInRoom, "not in room"))
		return
	}
	delete(c.rooms, roomID)
	if room.Empty() {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) handleSend(ctx context.Context, c *Client, cmd *Command) {
	if _, joined := c.rooms[cmd.RoomID]; !joined {
		h.sendError(c, coreError(ErrCodeNotInRoom, "not in room"))
		return
	}
	if cmd.Content == "" {
		h.sendError(c, coreError(ErrCodeBadRequest, "empty message"))
		return
	}

	msg := &Message{
		RoomID:   cmd.RoomID,
		SenderID: c.IdentityID,
		Content:  cmd.Content,
		SentAt:   time.Now().UTC(),
	}

	if h.store != nil {
		record := &store.Message{RoomID: msg.RoomID, SenderID: msg.SenderID, Content: msg.Content, SentAt: msg.SentAt}
		if err := h.store.SaveMessage(ctx, record); err != nil {
			h.log.Error().Err(err).Int64("room_id", cmd.RoomID).Msg("failed to persist message")
			h.sendError(c, coreError(ErrCodeInternal, "internal error"))
			return
		}
		msg.ID = record.ID
		msg.SentAt = record.SentAt
	}

	h.rooms[cmd.RoomID].Broadcast(&Event{Kind: EventRoomMessage, Message: msg})
}

func (h *Hub) sendError(c *Client, cerr *CoreError) {
	select {
	case c.Events <- &Event{Kind: EventError, Error: cerr}:
	default:
	}
}
