// Package storage persists chats, messages and read receipts for the
// reference gateway server and publishes chat events over Redis Pub/Sub so
// every server instance can fan them out to its connected clients.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"optichat/client/internal/models"
)

// eventChannelPrefix namespaces the per-chat Redis Pub/Sub channels.
const eventChannelPrefix = "chat:events:"

// ErrNotFound is returned when a chat or message does not exist.
var ErrNotFound = errors.New("record not found")

type Storage interface {
	SaveChat(chat *ChatRecord) error
	GetChatByID(chatID string) (*ChatRecord, error)

	SaveMessage(msg *MessageRecord) error
	GetMessageByID(id string) (*MessageRecord, error)
	FindMessageByClientRef(chatID, clientRef string) (*MessageRecord, error)
	UpdateMessage(msg *MessageRecord) error
	SoftDeleteMessage(id string, at time.Time) error
	HardDeleteMessage(id string) error
	ListMessages(chatID string, limit int, beforeID string) ([]MessageRecord, bool, error)

	SaveReadReceipts(messageIDs []string, userID string, at time.Time) error
	ListReadReceipts(messageIDs []string) ([]ReadReceiptRecord, error)

	PublishEvent(env models.Envelope) error
}

// Service implements Storage over PostgreSQL (gorm) and Redis.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// Migrate creates or updates the schema for all records.
func (s *Service) Migrate() error {
	return s.DB.AutoMigrate(&ChatRecord{}, &MessageRecord{}, &ReadReceiptRecord{})
}

func (s *Service) SaveChat(chat *ChatRecord) error {
	return s.DB.Save(chat).Error
}

func (s *Service) GetChatByID(chatID string) (*ChatRecord, error) {
	var chat ChatRecord
	err := s.DB.Where("id = ?", chatID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		log.Printf("ERROR: Failed to get chat %s: %v", chatID, err)
		return nil, err
	}
	return &chat, nil
}

func (s *Service) SaveMessage(msg *MessageRecord) error {
	if err := s.DB.Create(msg).Error; err != nil {
		log.Printf("ERROR: Failed to save message for chat %s: %v", msg.ChatID, err)
		return err
	}
	// Keep the chat's activity timestamp current for listings.
	return s.DB.Model(&ChatRecord{}).
		Where("id = ?", msg.ChatID).
		Update("last_message_at", msg.CreatedAt).Error
}

func (s *Service) GetMessageByID(id string) (*MessageRecord, error) {
	var msg MessageRecord
	err := s.DB.Where("id = ?", id).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// FindMessageByClientRef returns the chat's message carrying the client
// ref, nil when no such send was recorded. Backs idempotent send retries.
func (s *Service) FindMessageByClientRef(chatID, clientRef string) (*MessageRecord, error) {
	if clientRef == "" {
		return nil, nil
	}
	var msg MessageRecord
	err := s.DB.Where("chat_id = ? AND client_ref = ?", chatID, clientRef).First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) UpdateMessage(msg *MessageRecord) error {
	return s.DB.Save(msg).Error
}

// SoftDeleteMessage tombstones the message in place.
func (s *Service) SoftDeleteMessage(id string, at time.Time) error {
	return s.DB.Model(&MessageRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"deleted_at": at,
			"updated_at": at,
		}).Error
}

func (s *Service) HardDeleteMessage(id string) error {
	return s.DB.Where("id = ?", id).Delete(&MessageRecord{}).Error
}

// ListMessages returns up to limit messages of the chat in ascending
// creation order. beforeID is the pagination cursor: only messages older
// than it are returned. The second result reports whether older messages
// remain beyond the returned page.
func (s *Service) ListMessages(chatID string, limit int, beforeID string) ([]MessageRecord, bool, error) {
	q := s.DB.Where("chat_id = ?", chatID)

	if beforeID != "" {
		cursor, err := s.GetMessageByID(beforeID)
		if err != nil {
			return nil, false, err
		}
		q = q.Where("created_at < ?", cursor.CreatedAt)
	}

	// Fetch newest-first with one extra row to detect more pages, then
	// reverse into display order.
	var page []MessageRecord
	if err := q.Order("created_at desc").Limit(limit + 1).Find(&page).Error; err != nil {
		log.Printf("ERROR: Failed to list messages for chat %s: %v", chatID, err)
		return nil, false, err
	}

	hasMore := len(page) > limit
	if hasMore {
		page = page[:limit]
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, hasMore, nil
}

func (s *Service) SaveReadReceipts(messageIDs []string, userID string, at time.Time) error {
	for _, id := range messageIDs {
		rec := ReadReceiptRecord{MessageID: id, UserID: userID, ReadAt: at}
		err := s.DB.Where("message_id = ? AND user_id = ?", id, userID).
			FirstOrCreate(&rec).Error
		if err != nil {
			log.Printf("ERROR: Failed to save read receipt for message %s: %v", id, err)
			return err
		}
	}
	return nil
}

func (s *Service) ListReadReceipts(messageIDs []string) ([]ReadReceiptRecord, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var receipts []ReadReceiptRecord
	if err := s.DB.Where("message_id IN ?", messageIDs).Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

// PublishEvent broadcasts the envelope on the chat's Redis channel.
func (s *Service) PublishEvent(env models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Redis.Publish(s.Ctx, eventChannelPrefix+env.ChatID, string(data)).Err()
}

// SubscribeToAllChats subscribes to every chat's event channel. The hub
// feeds its fanout loop from this.
func (s *Service) SubscribeToAllChats() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, eventChannelPrefix+"*")
}
