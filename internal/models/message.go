package models

import "time"

// MessageType indicates the kind of message content.
type MessageType string

const (
	MessageText    MessageType = "text"
	MessageImage   MessageType = "image"
	MessageFile    MessageType = "file"
	MessageSystem  MessageType = "system"
	MessageDeleted MessageType = "deleted"
)

// DeletedPlaceholder replaces the content of a soft-deleted message so the
// record keeps its position in the conversation.
const DeletedPlaceholder = "This message was deleted"

// MetaClientRef is the metadata key carrying the client-generated reference
// for a send. The gateway echoes metadata back, which lets the reconciler
// match a confirmed message to its optimistic record exactly instead of
// relying on the sender+content heuristic.
const MetaClientRef = "client_ref"

// MetaAttachment is the metadata key holding an attachment reference for
// non-text messages.
const MetaAttachment = "attachment"

// ReadReceipt records that a user has read a message.
type ReadReceipt struct {
	UserID string    `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

// Message is the client-facing message record for one chat.
// A confirmed message carries a server-assigned ID; an optimistic message
// carries a temporary ID and IsOptimistic until the server confirms it.
type Message struct {
	// ID is the server-assigned identifier, stable once confirmed.
	ID string `json:"id"`
	// ChatID is the identifier of the chat the message belongs to.
	ChatID string `json:"chat_id"`
	// SenderID is the identifier of the user who sent the message.
	SenderID string `json:"sender_id"`
	// Content is the text content or an attachment reference.
	Content string `json:"content"`
	// Type indicates the kind of message (text, image, file, system, deleted).
	Type MessageType `json:"type"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// EditedAt is set once the message has been edited.
	EditedAt *time.Time `json:"edited_at,omitempty"`
	// DeletedAt marks a soft delete; the record stays in place as a tombstone.
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// ReplyToID references the message being replied to, if any.
	ReplyToID *string `json:"reply_to_id,omitempty"`
	// Metadata carries free-form key/value data (captions, attachment refs,
	// the client ref).
	Metadata map[string]string `json:"metadata,omitempty"`

	// ReadBy lists the receipts collected for this message.
	ReadBy []ReadReceipt `json:"read_by,omitempty"`
	// IsRead is the computed "read by the current viewer" flag.
	IsRead bool `json:"is_read"`

	// IsOptimistic marks a record shown before server confirmation.
	IsOptimistic bool `json:"is_optimistic,omitempty"`
	// Error holds a delivery failure description for a failed send.
	Error string `json:"error,omitempty"`
}

// ClientRef returns the client-generated send reference, if present.
func (m *Message) ClientRef() string {
	return m.Metadata[MetaClientRef]
}

// IsDeleted reports whether the message is a soft-delete tombstone.
func (m *Message) IsDeleted() bool {
	return m.DeletedAt != nil || m.Type == MessageDeleted
}

// ReadByUser reports whether the given user appears in the read-by set.
func (m *Message) ReadByUser(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
