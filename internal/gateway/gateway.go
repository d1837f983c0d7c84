// Package gateway defines the remote chat gateway contract the session
// layer is written against, and an HTTP/WebSocket implementation of it.
// The session core never depends on the concrete transport, so tests run
// against a mock and the transport stays substitutable.
package gateway

import (
	"context"

	"optichat/client/internal/models"
)

// EventHandler receives decoded realtime events for a subscribed chat.
type EventHandler func(models.Event)

// Subscription is a live event stream for one chat.
type Subscription interface {
	// Close tears the stream down. Safe to call more than once.
	Close()
}

// MessageQuery selects a page of messages. Cursor is the identifier of the
// oldest message already held; empty means "latest page".
type MessageQuery struct {
	Limit  int
	Cursor string
}

// MessagePage is one page of messages in ascending creation order.
type MessagePage struct {
	Messages   []models.Message
	HasMore    bool
	NextCursor string
}

// SendRequest describes a message send.
type SendRequest struct {
	ChatID    string
	Content   string
	Type      models.MessageType
	ReplyToID *string
	Metadata  map[string]string
}

// Gateway is the remote service boundary providing chat operations and
// event subscription.
type Gateway interface {
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	GetMessages(ctx context.Context, chatID string, q MessageQuery) (*MessagePage, error)
	SendMessage(ctx context.Context, req SendRequest) (*models.Message, error)
	EditMessage(ctx context.Context, messageID, content string) (*models.Message, error)
	DeleteMessage(ctx context.Context, messageID string, forEveryone bool) error
	UpdateTypingStatus(ctx context.Context, chatID string, isTyping bool) error
	MarkAsRead(ctx context.Context, chatID string, messageIDs []string) error
	Subscribe(chatID string, handler EventHandler) (Subscription, error)
}
