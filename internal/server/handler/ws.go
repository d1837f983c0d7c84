package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"optichat/client/internal/models"
	"optichat/client/internal/server/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Lock down in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the connection into the chat's event stream.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		abortError(c, http.StatusUnauthorized, models.ErrAccess, "authorization token missing")
		return
	}
	userID, err := h.validateToken(tokenString)
	if err != nil {
		abortError(c, http.StatusUnauthorized, models.ErrAccess, "invalid or expired token")
		return
	}
	c.Set(userIDKey, userID)

	chat, ok := h.participantChat(c, c.Param("id"))
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to upgrade connection")
		return
	}

	client := hub.NewWSClient(h.Hub, conn, userID, chat.ID)
	h.Hub.RegisterCh <- client
	client.Run()
}
