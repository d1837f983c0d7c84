package models

import "time"

// ChatType distinguishes direct 1-on-1 chats from multi-user rooms.
type ChatType string

const (
	ChatDirect ChatType = "direct"
	ChatRoom   ChatType = "room"
)

// Chat holds the metadata of one chat as returned by the gateway.
type Chat struct {
	// ID is the unique identifier for the chat (UUID).
	ID string `json:"id"`
	// Name is the display name; empty for unnamed direct chats.
	Name string `json:"name,omitempty"`
	// Type indicates whether this is a direct chat or a room.
	Type ChatType `json:"type"`
	// Participants are the user identifiers taking part in the chat.
	Participants []string `json:"participants"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// LastMessageAt is the timestamp of the most recent message, if any.
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
}

// HasParticipant reports whether the user takes part in the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
