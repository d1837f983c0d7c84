package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"

	"optichat/client/internal/config"
	"optichat/client/internal/models"
	"optichat/client/internal/server/storage"
)

// CreateChat creates a chat; the caller is always a participant.
func (h *Handler) CreateChat(c *gin.Context) {
	var req struct {
		Name         string   `json:"name"`
		Type         string   `json:"type"`
		Participants []string `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = string(models.ChatDirect)
	}

	userID := currentUser(c)
	participants := req.Participants
	found := false
	for _, p := range participants {
		if p == userID {
			found = true
			break
		}
	}
	if !found {
		participants = append(participants, userID)
	}

	chat := &storage.ChatRecord{
		Name:         req.Name,
		Type:         req.Type,
		Participants: pq.StringArray(participants),
	}
	if err := h.Storage.SaveChat(chat); err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to create chat")
		return
	}
	c.JSON(http.StatusCreated, chat.ToChat())
}

// GetChat returns the chat metadata to a participant.
func (h *Handler) GetChat(c *gin.Context) {
	chat, ok := h.participantChat(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, chat.ToChat())
}

// ListMessages returns one page of the chat's messages in ascending
// creation order along with pagination state.
func (h *Handler) ListMessages(c *gin.Context) {
	chat, ok := h.participantChat(c, c.Param("id"))
	if !ok {
		return
	}

	limit := config.PageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			abortError(c, http.StatusBadRequest, models.ErrValidation, "invalid limit")
			return
		}
		limit = n
	}

	records, hasMore, err := h.Storage.ListMessages(chat.ID, limit, c.Query("cursor"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			abortError(c, http.StatusNotFound, models.ErrNotFound, "cursor message not found")
			return
		}
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to list messages")
		return
	}

	msgs := h.hydrate(records, currentUser(c))

	nextCursor := ""
	if len(msgs) > 0 {
		nextCursor = msgs[0].ID // oldest returned message
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":    msgs,
		"has_more":    hasMore,
		"next_cursor": nextCursor,
	})
}

// MarkRead records read receipts for the given messages (or the latest
// page when none are named) and broadcasts the receipt event.
func (h *Handler) MarkRead(c *gin.Context) {
	chat, ok := h.participantChat(c, c.Param("id"))
	if !ok {
		return
	}

	var req struct {
		MessageIDs []string `json:"message_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "invalid request body")
		return
	}

	userID := currentUser(c)
	ids := req.MessageIDs
	if len(ids) == 0 {
		records, _, err := h.Storage.ListMessages(chat.ID, config.PageSize, "")
		if err != nil {
			abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to resolve messages")
			return
		}
		for _, r := range records {
			if r.SenderID != userID {
				ids = append(ids, r.ID)
			}
		}
	}

	now := time.Now().UTC()
	if err := h.Storage.SaveReadReceipts(ids, userID, now); err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to save receipts")
		return
	}

	h.publish(models.MessageReadEvent{
		EventMeta:  models.EventMeta{ChatID: chat.ID, UserID: userID, Timestamp: now},
		MessageIDs: ids,
		ReadAt:     now,
	})
	c.JSON(http.StatusOK, gin.H{"read": true})
}

// UpdateTyping broadcasts a typing start/stop signal. Nothing is persisted.
func (h *Handler) UpdateTyping(c *gin.Context) {
	chat, ok := h.participantChat(c, c.Param("id"))
	if !ok {
		return
	}

	var req struct {
		IsTyping bool `json:"is_typing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "invalid request body")
		return
	}

	meta := models.EventMeta{ChatID: chat.ID, UserID: currentUser(c), Timestamp: time.Now().UTC()}
	if req.IsTyping {
		h.publish(models.TypingStartedEvent{EventMeta: meta})
	} else {
		h.publish(models.TypingStoppedEvent{EventMeta: meta})
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// participantChat loads the chat and enforces that the caller takes part
// in it, writing the error response itself when not.
func (h *Handler) participantChat(c *gin.Context, chatID string) (*storage.ChatRecord, bool) {
	chat, err := h.Storage.GetChatByID(chatID)
	if errors.Is(err, storage.ErrNotFound) {
		abortError(c, http.StatusNotFound, models.ErrNotFound, "chat not found")
		return nil, false
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to load chat")
		return nil, false
	}

	userID := currentUser(c)
	for _, p := range chat.Participants {
		if p == userID {
			return chat, true
		}
	}
	abortError(c, http.StatusForbidden, models.ErrAccess, "not a participant of this chat")
	return nil, false
}

// hydrate converts records into wire messages with read receipts and the
// viewer's read flag attached.
func (h *Handler) hydrate(records []storage.MessageRecord, viewerID string) []models.Message {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	receipts, err := h.Storage.ListReadReceipts(ids)
	if err != nil {
		log.Printf("WARNING: failed to load read receipts: %v", err)
	}
	byMessage := make(map[string][]models.ReadReceipt)
	for _, r := range receipts {
		byMessage[r.MessageID] = append(byMessage[r.MessageID], models.ReadReceipt{UserID: r.UserID, ReadAt: r.ReadAt})
	}

	msgs := make([]models.Message, len(records))
	for i, r := range records {
		m := r.ToMessage()
		m.ReadBy = byMessage[r.ID]
		m.IsRead = m.SenderID == viewerID || m.ReadByUser(viewerID)
		msgs[i] = m
	}
	return msgs
}

// publish pushes the event onto the chat's Redis channel. Delivery is best
// effort; a failed publish only logs, the REST response already committed.
func (h *Handler) publish(ev models.Event) {
	env, err := models.EnvelopeFor(ev)
	if err != nil {
		log.Printf("ERROR: encoding %s event: %v", ev.Kind(), err)
		return
	}
	if err := h.Storage.PublishEvent(env); err != nil {
		log.Printf("ERROR: publishing %s event for chat %s: %v", env.Type, env.ChatID, err)
	}
}
