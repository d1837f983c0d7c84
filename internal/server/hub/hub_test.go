package hub_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"optichat/client/internal/models"
	"optichat/client/internal/server/hub"
)

// stubClient is a minimal in-memory hub.Client for exercising the fanout
// loop without websocket connections.
type stubClient struct {
	userID string
	chatID string
	send   chan models.Envelope

	mu     sync.Mutex
	closed bool
}

func newStubClient(userID, chatID string, buffer int) *stubClient {
	return &stubClient{userID: userID, chatID: chatID, send: make(chan models.Envelope, buffer)}
}

func (c *stubClient) GetUserID() string                      { return c.userID }
func (c *stubClient) GetChatID() string                      { return c.chatID }
func (c *stubClient) GetSendChannel() chan<- models.Envelope { return c.send }
func (c *stubClient) Run()                                   {}

func (c *stubClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *stubClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestHub_RegisterUnregister(t *testing.T) {
	h := hub.NewHub(nil)
	go h.Run()

	client := newStubClient("user-a", "chat-1", 1)

	h.RegisterCh <- client
	time.Sleep(50 * time.Millisecond)
	assert.Contains(t, h.Clients, hub.Client(client))

	h.UnregisterCh <- client
	time.Sleep(50 * time.Millisecond)
	assert.NotContains(t, h.Clients, hub.Client(client))
	assert.True(t, client.isClosed())
}

func TestHub_BroadcastMatchesChat(t *testing.T) {
	h := hub.NewHub(nil)
	go h.Run()

	sameChat := newStubClient("user-a", "chat-1", 1)
	otherChat := newStubClient("user-b", "chat-2", 1)
	h.RegisterCh <- sameChat
	h.RegisterCh <- otherChat
	time.Sleep(50 * time.Millisecond)

	h.EventCh <- models.Envelope{Type: models.EventNewMessage, ChatID: "chat-1", UserID: "user-c"}
	time.Sleep(50 * time.Millisecond)

	select {
	case env := <-sameChat.send:
		assert.Equal(t, models.EventNewMessage, env.Type)
	default:
		t.Error("subscriber of chat-1 did not receive the event")
	}

	select {
	case <-otherChat.send:
		t.Error("subscriber of chat-2 received a chat-1 event")
	default:
	}
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := hub.NewHub(nil)
	go h.Run()

	slow := newStubClient("user-a", "chat-1", 1)
	h.RegisterCh <- slow
	time.Sleep(50 * time.Millisecond)

	// First event fills the buffer, second finds it full.
	h.EventCh <- models.Envelope{Type: models.EventTypingStarted, ChatID: "chat-1"}
	h.EventCh <- models.Envelope{Type: models.EventTypingStopped, ChatID: "chat-1"}
	time.Sleep(50 * time.Millisecond)

	assert.NotContains(t, h.Clients, hub.Client(slow))
	assert.True(t, slow.isClosed())
}
