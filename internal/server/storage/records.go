package storage

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"optichat/client/internal/models"
)

// ChatRecord is the persisted form of a chat.
type ChatRecord struct {
	// ID is the unique identifier for the chat (UUID).
	ID string `gorm:"primaryKey"`
	// Name is the display name; empty for direct chats.
	Name string `gorm:"type:text"`
	// Type is "direct" or "room".
	Type string `gorm:"type:text;not null"`
	// Participants are the user IDs taking part in the chat.
	Participants pq.StringArray `gorm:"type:text[]"`

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastMessageAt *time.Time
}

// BeforeCreate generates the chat UUID when the caller has not set one.
func (c *ChatRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// MessageRecord is the persisted form of a message. DeletedAt is a plain
// tombstone column, not gorm's soft-delete type: tombstoned messages stay
// visible in listings so clients keep conversational ordering.
type MessageRecord struct {
	ID       string `gorm:"primaryKey"`
	ChatID   string `gorm:"type:uuid;not null;index:idx_chat_created"`
	SenderID string `gorm:"type:text;not null;index"`
	Content  string `gorm:"type:text"`
	Type     string `gorm:"type:text;not null"`
	// Metadata is the JSON-encoded key/value map attached to the message.
	Metadata string `gorm:"type:text"`
	// ClientRef is the client-generated send reference used for idempotent
	// retries and optimistic correlation.
	ClientRef string  `gorm:"index"`
	ReplyToID *string `gorm:"index"`

	CreatedAt time.Time `gorm:"index:idx_chat_created"`
	UpdatedAt time.Time
	EditedAt  *time.Time
	DeletedAt *time.Time
}

// BeforeCreate generates the message UUID when the caller has not set one.
func (m *MessageRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// ReadReceiptRecord stores that a user read a message. One row per
// (message, reader) pair.
type ReadReceiptRecord struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID string `gorm:"type:uuid;not null;uniqueIndex:idx_msg_reader"`
	UserID    string `gorm:"type:text;not null;uniqueIndex:idx_msg_reader"`
	ReadAt    time.Time
}

// ToChat converts the record into the wire chat model.
func (c *ChatRecord) ToChat() models.Chat {
	return models.Chat{
		ID:            c.ID,
		Name:          c.Name,
		Type:          models.ChatType(c.Type),
		Participants:  []string(c.Participants),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		LastMessageAt: c.LastMessageAt,
	}
}

// ToMessage converts the record into the wire message model. Read receipts
// and the viewer flag are attached by the caller, which knows the viewer.
func (m *MessageRecord) ToMessage() models.Message {
	msg := models.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Type:      models.MessageType(m.Type),
		ReplyToID: m.ReplyToID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		EditedAt:  m.EditedAt,
		DeletedAt: m.DeletedAt,
	}
	if m.DeletedAt != nil {
		msg.Content = models.DeletedPlaceholder
		msg.Type = models.MessageDeleted
	}
	if m.Metadata != "" {
		var meta map[string]string
		if err := json.Unmarshal([]byte(m.Metadata), &meta); err != nil {
			log.Printf("WARNING: corrupt metadata on message %s: %v", m.ID, err)
		} else {
			msg.Metadata = meta
		}
	}
	return msg
}

// EncodeMetadata serializes a metadata map for storage.
func EncodeMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		log.Printf("WARNING: failed to encode message metadata: %v", err)
		return ""
	}
	return string(data)
}
