package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"optichat/client/internal/config"
	"optichat/client/internal/models"
	"optichat/client/internal/server/storage"
)

// SendMessage validates, rate-limits and persists a send, then broadcasts
// the new-message event. Retries carrying the same client ref return the
// originally stored message instead of inserting a duplicate.
func (h *Handler) SendMessage(c *gin.Context) {
	chat, ok := h.participantChat(c, c.Param("id"))
	if !ok {
		return
	}

	var req struct {
		Content   string            `json:"content"`
		Type      string            `json:"type"`
		ReplyToID *string           `json:"reply_to_id"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "invalid request body")
		return
	}
	if req.Type == "" {
		req.Type = string(models.MessageText)
	}
	if strings.TrimSpace(req.Content) == "" && req.Metadata[models.MetaAttachment] == "" {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "message content is empty")
		return
	}
	if len(req.Content) > config.MaxContentLen {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "message content too long")
		return
	}

	userID := currentUser(c)
	if ok, wait := h.Limiter.Allow(userID); !ok {
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			errorBody(models.ErrRateLimited, "sending too fast", wait))
		return
	}

	// Idempotent retry: the client ref ties a retried POST to the send it
	// repeats.
	if existing, err := h.Storage.FindMessageByClientRef(chat.ID, req.Metadata[models.MetaClientRef]); err == nil && existing != nil {
		c.JSON(http.StatusOK, existing.ToMessage())
		return
	}

	now := time.Now().UTC()
	rec := &storage.MessageRecord{
		ChatID:    chat.ID,
		SenderID:  userID,
		Content:   req.Content,
		Type:      req.Type,
		Metadata:  storage.EncodeMetadata(req.Metadata),
		ClientRef: req.Metadata[models.MetaClientRef],
		ReplyToID: req.ReplyToID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Storage.SaveMessage(rec); err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to save message")
		return
	}

	msg := rec.ToMessage()
	h.publish(models.NewMessageEvent{
		EventMeta: models.EventMeta{ChatID: chat.ID, UserID: userID, Timestamp: now},
		Message:   msg,
	})
	c.JSON(http.StatusCreated, msg)
}

// EditMessage updates a message's content. Only the sender may edit, and
// the visible change reaches clients through the event stream.
func (h *Handler) EditMessage(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "message content is empty")
		return
	}

	rec, ok := h.ownMessage(c, c.Param("id"))
	if !ok {
		return
	}
	if rec.DeletedAt != nil {
		abortError(c, http.StatusBadRequest, models.ErrValidation, "cannot edit a deleted message")
		return
	}

	now := time.Now().UTC()
	rec.Content = req.Content
	rec.EditedAt = &now
	rec.UpdatedAt = now
	if err := h.Storage.UpdateMessage(rec); err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to update message")
		return
	}

	msg := rec.ToMessage()
	h.publish(models.MessageUpdatedEvent{
		EventMeta: models.EventMeta{ChatID: rec.ChatID, UserID: rec.SenderID, Timestamp: now},
		Message:   msg,
	})
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage removes a message: for_everyone=true removes the record
// entirely, otherwise it becomes a tombstone that keeps its position.
func (h *Handler) DeleteMessage(c *gin.Context) {
	rec, ok := h.ownMessage(c, c.Param("id"))
	if !ok {
		return
	}

	forEveryone := c.Query("for_everyone") == "true"
	now := time.Now().UTC()

	ev := models.MessageDeletedEvent{
		EventMeta: models.EventMeta{ChatID: rec.ChatID, UserID: rec.SenderID, Timestamp: now},
		MessageID: rec.ID,
	}

	var err error
	if forEveryone {
		err = h.Storage.HardDeleteMessage(rec.ID)
	} else {
		err = h.Storage.SoftDeleteMessage(rec.ID, now)
		ev.DeletedAt = &now
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to delete message")
		return
	}

	h.publish(ev)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ownMessage loads the message and enforces sender ownership, writing the
// error response itself when the check fails.
func (h *Handler) ownMessage(c *gin.Context, messageID string) (*storage.MessageRecord, bool) {
	rec, err := h.Storage.GetMessageByID(messageID)
	if errors.Is(err, storage.ErrNotFound) {
		abortError(c, http.StatusNotFound, models.ErrNotFound, "message not found")
		return nil, false
	}
	if err != nil {
		abortError(c, http.StatusInternalServerError, models.ErrTransient, "failed to load message")
		return nil, false
	}
	if rec.SenderID != currentUser(c) {
		abortError(c, http.StatusForbidden, models.ErrAccess, "not the sender of this message")
		return nil, false
	}
	return rec, true
}
