package gateway

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"optichat/client/internal/config"
	"optichat/client/internal/models"
)

// Subscribe dials the server's event stream for the chat and delivers
// decoded events to the handler from a background read pump. The returned
// Subscription must be closed when the chat session is torn down.
func (c *Client) Subscribe(chatID string, handler EventHandler) (Subscription, error) {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws/" + chatID + "?token=" + c.token

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, models.NewChatError(models.ErrTransient, "subscribe to chat %s: %v", chatID, err)
	}

	sub := &wsSubscription{conn: conn}
	go sub.readPump(handler)
	return sub, nil
}

type wsSubscription struct {
	conn *websocket.Conn
	once sync.Once
}

// Close tears down the stream. Safe to call more than once; the read pump
// exits on the closed connection.
func (s *wsSubscription) Close() {
	s.once.Do(func() {
		deadline := time.Now().Add(time.Second)
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.conn.Close()
	})
}

// readPump consumes envelopes until the connection dies. A malformed
// envelope is logged and skipped; it must not break the stream.
func (s *wsSubscription) readPump(handler EventHandler) {
	defer s.conn.Close()

	s.conn.SetReadLimit(config.MaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(config.PongWait))
	s.conn.SetPingHandler(func(appData string) error {
		s.conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(config.WriteWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("WARNING: chat event stream closed: %v", err)
			}
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("ERROR: decoding chat event envelope: %v", err)
			continue
		}
		ev, err := env.Decode()
		if err != nil {
			log.Printf("ERROR: decoding chat event %s: %v", env.Type, err)
			continue
		}
		handler(ev)
	}
}
