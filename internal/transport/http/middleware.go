package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wardroom-app/wardroom/internal/auth"
	"github.com/wardroom-app/wardroom/internal/store"
)

// ContextKeyIdentity is the context key for the authenticated identity.
const ContextKeyIdentity = "identity"

// The capability middleware is the actual security boundary: each check is
// enforced server-side on every request, regardless of what the client-side
// gate decided. Checks compose in fixed order authenticated -> approved ->
// role, short-circuiting at the first failure.

// RequireAuthenticated validates the bearer session token, loads the current
// identity from the store, and attaches it to the request context.
// Fails with 401 when no valid session is attached.
func RequireAuthenticated(authService *auth.Service, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug().Msg("missing authorization header")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header"})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			logger.Debug().Msg("invalid authorization header format")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format"})
			c.Abort()
			return
		}

		ident, err := authService.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			logger.Debug().Err(err).Msg("invalid session")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid session"})
			c.Abort()
			return
		}

		c.Set(ContextKeyIdentity, ident)
		c.Next()
	}
}

// RequireApproved fails with 403 when the authenticated identity has not been
// approved by an administrator. Must run after RequireAuthenticated.
func RequireApproved() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := identityFromContext(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			c.Abort()
			return
		}
		if !ident.Approved {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "account pending approval"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin fails with 403 when the authenticated identity is not an admin.
// Superadmin counts as admin. Must run after RequireAuthenticated.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := identityFromContext(c)
		if ident == nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
			c.Abort()
			return
		}
		if !ident.IsAdmin() {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "admin privileges required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// identityFromContext returns the identity attached by RequireAuthenticated,
// or nil.
func identityFromContext(c *gin.Context) *store.Identity {
	v, exists := c.Get(ContextKeyIdentity)
	if !exists {
		return nil
	}
	ident, ok := v.(*store.Identity)
	if !ok {
		return nil
	}
	return ident
}

// LoggerMiddleware creates a middleware that logs HTTP requests.
func LoggerMiddleware(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}
