package hub

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"optichat/client/internal/config"
	"optichat/client/internal/models"
)

// WSClient implements the hub.Client interface over a websocket
// connection. The event stream is one-way: operations arrive over REST,
// so the read pump only watches for the peer going away.
type WSClient struct {
	UserID string
	ChatID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan models.Envelope

	closed chan struct{}
}

// NewWSClient wraps an upgraded connection for the given subscriber.
func NewWSClient(hub *Hub, conn *websocket.Conn, userID, chatID string) *WSClient {
	return &WSClient{
		UserID: userID,
		ChatID: chatID,
		Conn:   conn,
		Hub:    hub,
		Send:   make(chan models.Envelope, 64),
		closed: make(chan struct{}),
	}
}

func (c *WSClient) GetUserID() string                      { return c.UserID }
func (c *WSClient) GetChatID() string                      { return c.ChatID }
func (c *WSClient) GetSendChannel() chan<- models.Envelope { return c.Send }

// Run starts the pumps.
func (c *WSClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump. Idempotent; the hub may close a client it
// already dropped.
func (c *WSClient) Close() {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
}

// readPump discards inbound frames and unregisters the client when the
// connection dies.
func (c *WSClient) readPump() {
	defer func() {
		c.Hub.UnregisterCh <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("error reading from subscriber %s: %v", c.UserID, err)
			}
			return
		}
	}
}

// writePump drains the Send channel into the websocket and keeps the
// connection alive with pings.
func (c *WSClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.closed:
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case env := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))

			data, err := json.Marshal(env)
			if err != nil {
				log.Printf("Error encoding event for subscriber %s: %v", c.UserID, err)
				continue
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
