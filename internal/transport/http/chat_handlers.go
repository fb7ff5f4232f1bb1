package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wardroom-app/wardroom/internal/auth"
	"github.com/wardroom-app/wardroom/internal/core"
	"github.com/wardroom-app/wardroom/internal/store"
)

// ChatHandlers provides HTTP handlers for chat endpoints.
type ChatHandlers struct {
	authService *auth.Service
	hub         *core.Hub
	store       store.Store
	log         *zerolog.Logger
}

// NewChatHandlers creates a new chat handlers instance.
func NewChatHandlers(authService *auth.Service, hub *core.Hub, st store.Store, logger *zerolog.Logger) *ChatHandlers {
	return &ChatHandlers{
		authService: authService,
		hub:         hub,
		store:       st,
		log:         logger,
	}
}

// ChatTokenResponse carries a short-lived messaging token.
type ChatTokenResponse struct {
	Token string `json:"token"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MessageResponse represents a chat message in API responses.
type MessageResponse struct {
	ID       int64  `json:"id"`
	RoomID   int64  `json:"room_id"`
	SenderID int64  `json:"sender_id"`
	Content  string `json:"content"`
	SentAt   int64  `json:"sent_at"`
}

// SendMessageRequest represents a message send request body.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChatToken issues a fresh token scoped to the caller and one messaging
// session. Requested anew on every connection attempt; never persisted.
// GET /api/chat/token
func (h *ChatHandlers) ChatToken(c *gin.Context) {
	ident := identityFromContext(c)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	token, err := h.authService.ChatToken(ident)
	if err != nil {
		h.log.Error().Err(err).Int64("identity_id", ident.ID).Msg("failed to issue chat token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ChatTokenResponse{Token: token})
}

// ListRooms returns all chat rooms.
// GET /api/chat/rooms
func (h *ChatHandlers) ListRooms(c *gin.Context) {
	rooms, err := h.store.ListRooms(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, room := range rooms {
		response = append(response, RoomResponse{ID: room.ID, Name: room.Name})
	}
	c.JSON(http.StatusOK, response)
}

// ListMessages returns a room's message history with pagination.
// GET /api/chat/rooms/:id/messages?limit=50&before=<id>
func (h *ChatHandlers) ListMessages(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	var beforeID *int64
	if raw := c.Query("before"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before cursor"})
			return
		}
		beforeID = &parsed
	}

	if _, err := h.store.GetRoomByID(c.Request.Context(), roomID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	messages, err := h.store.ListMessages(c.Request.Context(), roomID, limit, beforeID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, MessageResponse{
			ID:       msg.ID,
			RoomID:   msg.RoomID,
			SenderID: msg.SenderID,
			Content:  msg.Content,
			SentAt:   msg.SentAt.Unix(),
		})
	}
	c.JSON(http.StatusOK, response)
}

// SendMessage persists a message and broadcasts it to connected clients.
// Fire-and-forget towards subscribers: no delivery acknowledgment.
// POST /api/chat/rooms/:id/messages
func (h *ChatHandlers) SendMessage(c *gin.Context) {
	ident := identityFromContext(c)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	msg, err := h.hub.Publish(c.Request.Context(), ident.ID, roomID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrRoomNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		case errors.Is(err, core.ErrBadRequest):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty message"})
		default:
			h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to publish message")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{
		ID:       msg.ID,
		RoomID:   msg.RoomID,
		SenderID: msg.SenderID,
		Content:  msg.Content,
		SentAt:   msg.SentAt.Unix(),
	})
}
