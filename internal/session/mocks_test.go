package session_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"optichat/client/internal/gateway"
	"optichat/client/internal/models"
	"optichat/client/internal/session"
)

// MockGateway is a mock implementation of the gateway.Gateway interface.
// It uses testify/mock to allow flexible expectation setting in tests and
// captures the subscription handler so tests can inject realtime events.
type MockGateway struct {
	mock.Mock

	mu      sync.Mutex
	handler gateway.EventHandler
}

func (g *MockGateway) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	args := g.Called(chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Chat), args.Error(1)
}

func (g *MockGateway) GetMessages(ctx context.Context, chatID string, q gateway.MessageQuery) (*gateway.MessagePage, error) {
	args := g.Called(chatID, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.MessagePage), args.Error(1)
}

func (g *MockGateway) SendMessage(ctx context.Context, req gateway.SendRequest) (*models.Message, error) {
	args := g.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (g *MockGateway) EditMessage(ctx context.Context, messageID, content string) (*models.Message, error) {
	args := g.Called(messageID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (g *MockGateway) DeleteMessage(ctx context.Context, messageID string, forEveryone bool) error {
	args := g.Called(messageID, forEveryone)
	return args.Error(0)
}

func (g *MockGateway) UpdateTypingStatus(ctx context.Context, chatID string, isTyping bool) error {
	args := g.Called(chatID, isTyping)
	return args.Error(0)
}

func (g *MockGateway) MarkAsRead(ctx context.Context, chatID string, messageIDs []string) error {
	args := g.Called(chatID, messageIDs)
	return args.Error(0)
}

func (g *MockGateway) Subscribe(chatID string, handler gateway.EventHandler) (gateway.Subscription, error) {
	g.mu.Lock()
	g.handler = handler
	g.mu.Unlock()

	args := g.Called(chatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gateway.Subscription), args.Error(1)
}

// Emit delivers an event through the captured subscription handler, as the
// websocket read pump would.
func (g *MockGateway) Emit(ev models.Event) {
	g.mu.Lock()
	handler := g.handler
	g.mu.Unlock()
	if handler != nil {
		handler(ev)
	}
}

// fakeSub counts Close calls.
type fakeSub struct {
	mu     sync.Mutex
	closed int
}

func (s *fakeSub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeSub) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeClock implements session.Clock with manual time control so timer
// behavior (optimistic eviction, typing debounce) is deterministic.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward and fires every timer that came due.
// Callbacks run outside the clock lock, like real timer goroutines.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

// Test fixtures.

func testChat(id string, participants ...string) *models.Chat {
	return &models.Chat{ID: id, Type: models.ChatDirect, Participants: participants}
}

func testMessage(id, sender, content string, at time.Time) models.Message {
	return models.Message{
		ID:        id,
		ChatID:    "chat-1",
		SenderID:  sender,
		Content:   content,
		Type:      models.MessageText,
		CreatedAt: at,
		UpdatedAt: at,
	}
}
