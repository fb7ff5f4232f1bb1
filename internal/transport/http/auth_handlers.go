package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wardroom-app/wardroom/internal/auth"
	"github.com/wardroom-app/wardroom/internal/store"
)

// AuthHandlers provides HTTP handlers for authentication endpoints.
type AuthHandlers struct {
	authService *auth.Service
	loginLimit  *rateLimiter
	log         *zerolog.Logger
}

// NewAuthHandlers creates a new auth handlers instance.
func NewAuthHandlers(authService *auth.Service, loginLimit *rateLimiter, logger *zerolog.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		loginLimit:  loginLimit,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username    string `json:"username" binding:"required,min=3,max=32"`
	Password    string `json:"password" binding:"required,min=6"`
	DisplayName string `json:"display_name" binding:"omitempty,max=64"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// IdentityResponse represents an identity in API responses.
type IdentityResponse struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Approved    bool   `json:"approved"`
	Enabled     bool   `json:"enabled"`
	IsOnline    bool   `json:"is_online"`
	LastSeenAt  *int64 `json:"last_seen_at,omitempty"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string           `json:"token"`
	User  IdentityResponse `json:"user"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func identityResponse(ident *store.Identity) IdentityResponse {
	resp := IdentityResponse{
		ID:          ident.ID,
		Username:    ident.Username,
		DisplayName: ident.DisplayName,
		Role:        string(ident.Role),
		Approved:    ident.Approved,
		Enabled:     ident.Enabled,
		IsOnline:    ident.IsOnline,
	}
	if ident.LastSeenAt != nil {
		ts := ident.LastSeenAt.Unix()
		resp.LastSeenAt = &ts
	}
	return resp
}

// Register handles user registration.
// POST /api/register
func (h *AuthHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ident, token, err := h.authService.Register(c.Request.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to register user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("username", ident.Username).Str("role", string(ident.Role)).Msg("user registered")
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: identityResponse(ident)})
}

// Login handles user login.
// POST /api/login
func (h *AuthHandlers) Login(c *gin.Context) {
	if !h.loginLimit.allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many login attempts"})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ident, token, err := h.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("username", req.Username).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("username", ident.Username).Msg("user logged in")
	c.JSON(http.StatusOK, AuthResponse{Token: token, User: identityResponse(ident)})
}

// Logout acknowledges a logout. Sessions are stateless JWTs: the client
// discards the token and tears down its transport; tokens expire on their
// own after the session TTL.
// POST /api/logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	ident := identityFromContext(c)
	if ident != nil {
		h.log.Info().Str("username", ident.Username).Msg("user logged out")
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "at": time.Now().Unix()})
}

// CurrentIdentity returns the authenticated identity.
// GET /api/user
func (h *AuthHandlers) CurrentIdentity(c *gin.Context) {
	ident := identityFromContext(c)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, identityResponse(ident))
}
