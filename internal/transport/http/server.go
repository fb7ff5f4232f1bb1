package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/wardroom-app/wardroom/internal/auth"
	"github.com/wardroom-app/wardroom/internal/config"
	"github.com/wardroom-app/wardroom/internal/core"
	"github.com/wardroom-app/wardroom/internal/store"
)

// loginAttemptsPerMinute caps login attempts before returning 429.
const loginAttemptsPerMinute = 30

// NewServer builds the HTTP server with all routes and middleware.
//
// Route guards compose in fixed order: authenticated -> approved -> admin.
// The guards here are the security boundary; the client-side gate is only a
// UX convenience on top of the same identity state.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	loginLimit := newRateLimiter(loginAttemptsPerMinute)
	loginLimit.startReset()

	authHandlers := NewAuthHandlers(authService, loginLimit, logger)
	userHandlers := NewUserHandlers(st, logger)
	chatHandlers := NewChatHandlers(authService, hub, st, logger)
	wsHandler := NewWSHandler(authService, hub, logger)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	// Unguarded.
	router.POST("/api/register", authHandlers.Register)
	router.POST("/api/login", authHandlers.Login)

	authenticated := RequireAuthenticated(authService, logger)
	approved := RequireApproved()
	admin := RequireAdmin()

	// Authenticated only.
	router.GET("/api/user", authenticated, authHandlers.CurrentIdentity)
	router.POST("/api/logout", authenticated, authHandlers.Logout)

	// Authenticated + approved.
	chat := router.Group("/api/chat", authenticated, approved)
	chat.GET("/token", chatHandlers.ChatToken)
	chat.GET("/rooms", chatHandlers.ListRooms)
	chat.GET("/rooms/:id/messages", chatHandlers.ListMessages)
	chat.POST("/rooms/:id/messages", chatHandlers.SendMessage)

	// The websocket authenticates with its own scoped chat token.
	router.GET("/ws/chat", wsHandler.Handle)

	// Authenticated + approved + admin.
	users := router.Group("/api/users", authenticated, approved, admin)
	users.GET("", userHandlers.List)
	users.POST("/:id/approve", userHandlers.Approve)
	users.POST("/:id/role", userHandlers.SetRole)
	users.POST("/:id/enabled", userHandlers.SetEnabled)

	srv := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	srv.RegisterOnShutdown(loginLimit.stopReset)
	return srv
}
