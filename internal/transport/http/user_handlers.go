package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wardroom-app/wardroom/internal/store"
)

// UserHandlers provides HTTP handlers for admin user management.
type UserHandlers struct {
	store store.Store
	log   *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(st store.Store, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		store: st,
		log:   logger,
	}
}

// List returns all identities.
// GET /api/users
func (h *UserHandlers) List(c *gin.Context) {
	identities, err := h.store.ListIdentities(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list identities")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]IdentityResponse, 0, len(identities))
	for _, ident := range identities {
		response = append(response, identityResponse(ident))
	}
	c.JSON(http.StatusOK, response)
}

// ApproveRequest represents an approval change request body.
type ApproveRequest struct {
	Approved bool `json:"approved"`
}

// Approve flips an identity's approved flag.
// POST /api/users/:id/approve
func (h *UserHandlers) Approve(c *gin.Context) {
	target, ok := h.targetIdentity(c)
	if !ok {
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if !h.canModify(c, target) {
		return
	}

	if err := h.store.SetApproved(c.Request.Context(), target.ID, req.Approved); err != nil {
		h.log.Error().Err(err).Int64("id", target.ID).Msg("failed to set approved")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("id", target.ID).Bool("approved", req.Approved).Msg("approval updated")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// RoleRequest represents a role change request body.
type RoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SetRole changes an identity's role. Granting or revoking superadmin
// requires a superadmin caller.
// POST /api/users/:id/role
func (h *UserHandlers) SetRole(c *gin.Context) {
	target, ok := h.targetIdentity(c)
	if !ok {
		return
	}

	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	role := store.Role(req.Role)
	if !role.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid role"})
		return
	}

	if !h.canModify(c, target) {
		return
	}

	caller := identityFromContext(c)
	if role == store.RoleSuperadmin && caller.Role != store.RoleSuperadmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only superadmins may grant superadmin"})
		return
	}

	if err := h.store.SetRole(c.Request.Context(), target.ID, role); err != nil {
		h.log.Error().Err(err).Int64("id", target.ID).Msg("failed to set role")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("id", target.ID).Str("role", req.Role).Msg("role updated")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// EnabledRequest represents an enable/disable request body.
type EnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled flips an identity's enabled flag.
// POST /api/users/:id/enabled
func (h *UserHandlers) SetEnabled(c *gin.Context) {
	target, ok := h.targetIdentity(c)
	if !ok {
		return
	}

	var req EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if !h.canModify(c, target) {
		return
	}

	if err := h.store.SetEnabled(c.Request.Context(), target.ID, req.Enabled); err != nil {
		h.log.Error().Err(err).Int64("id", target.ID).Msg("failed to set enabled")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("id", target.ID).Bool("enabled", req.Enabled).Msg("enabled updated")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *UserHandlers) targetIdentity(c *gin.Context) (*store.Identity, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid user id"})
		return nil, false
	}

	target, err := h.store.GetIdentityByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return nil, false
		}
		h.log.Error().Err(err).Int64("id", id).Msg("failed to load identity")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return nil, false
	}
	return target, true
}

// canModify enforces the privilege ladder: admins manage regular users,
// only superadmins manage admins and other superadmins.
func (h *UserHandlers) canModify(c *gin.Context, target *store.Identity) bool {
	caller := identityFromContext(c)
	if caller == nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return false
	}
	if target.IsAdmin() && caller.Role != store.RoleSuperadmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only superadmins may modify admins"})
		return false
	}
	return true
}
