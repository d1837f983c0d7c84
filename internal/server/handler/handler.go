// Package handler exposes the reference gateway server's REST and
// websocket surface.
package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"optichat/client/internal/models"
	"optichat/client/internal/moderation"
	"optichat/client/internal/server/hub"
	"optichat/client/internal/server/storage"
)

// Handler holds the dependencies shared by all routes.
type Handler struct {
	Hub       *hub.Hub
	Storage   storage.Storage
	Limiter   *moderation.RateLimiter
	JWTSecret []byte
}

func NewHandler(h *hub.Hub, s storage.Storage, limiter *moderation.RateLimiter, jwtSecret []byte) *Handler {
	return &Handler{Hub: h, Storage: s, Limiter: limiter, JWTSecret: jwtSecret}
}

// Register wires every route onto the router.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/auth/anon", h.GetAnonID)

	authed := r.Group("/", h.AuthRequired())
	authed.POST("/chats", h.CreateChat)
	authed.GET("/chats/:id", h.GetChat)
	authed.GET("/chats/:id/messages", h.ListMessages)
	authed.POST("/chats/:id/messages", h.SendMessage)
	authed.POST("/chats/:id/typing", h.UpdateTyping)
	authed.POST("/chats/:id/read", h.MarkRead)
	authed.PATCH("/messages/:id", h.EditMessage)
	authed.DELETE("/messages/:id", h.DeleteMessage)

	// The websocket handshake authenticates via query token; browsers
	// cannot set headers on upgrade requests.
	r.GET("/ws/:id", h.ServeWebSocket)
}

// errorBody is the JSON error shape shared with the client gateway.
func errorBody(code models.ErrorCode, message string, retryAfter time.Duration) gin.H {
	e := gin.H{"code": code, "message": message}
	if retryAfter > 0 {
		e["retry_after_ms"] = retryAfter.Milliseconds()
	}
	return gin.H{"error": e}
}

func abortError(c *gin.Context, status int, code models.ErrorCode, message string) {
	c.AbortWithStatusJSON(status, errorBody(code, message, 0))
}
