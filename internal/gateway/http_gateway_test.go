package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"optichat/client/internal/gateway"
	"optichat/client/internal/models"
)

func TestClient_GetMessagesSendsCursorAndAuth(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"messages":    []models.Message{{ID: "m1", Content: "hey"}},
			"has_more":    true,
			"next_cursor": "m1",
		})
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "tok-123")
	page, err := c.GetMessages(context.Background(), "chat-1", gateway.MessageQuery{Limit: 50, Cursor: "m7"})

	assert.NoError(t, err)
	assert.Equal(t, "/chats/chat-1/messages?cursor=m7&limit=50", gotPath)
	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Len(t, page.Messages, 1)
	assert.True(t, page.HasMore)
	assert.Equal(t, "m1", page.NextCursor)
}

func TestClient_SendMessagePostsBody(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Message{ID: "m9", Content: "hello"})
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "tok")
	msg, err := c.SendMessage(context.Background(), gateway.SendRequest{
		ChatID:   "chat-1",
		Content:  "hello",
		Type:     models.MessageText,
		Metadata: map[string]string{models.MetaClientRef: "optimistic-1"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "m9", msg.ID)
	assert.Equal(t, "hello", gotBody["content"])
	meta := gotBody["metadata"].(map[string]any)
	assert.Equal(t, "optimistic-1", meta[models.MetaClientRef])
}

func TestClient_ErrorBodyMapsToChatError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":           "rate_limited",
				"message":        "slow down",
				"retry_after_ms": 2500,
			},
		})
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "tok")
	_, err := c.SendMessage(context.Background(), gateway.SendRequest{ChatID: "chat-1", Content: "x"})

	var ce *models.ChatError
	assert.ErrorAs(t, err, &ce)
	assert.Equal(t, models.ErrRateLimited, ce.Code)
	assert.Equal(t, "slow down", ce.Message)
	assert.Equal(t, 2500*time.Millisecond, ce.RetryAfter)
}

func TestClient_StatusFallbackMapping(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := gateway.NewClient(srv.URL, "tok")

	_, err := c.GetChat(context.Background(), "missing")
	assert.Equal(t, models.ErrNotFound, models.CodeOf(err))

	status = http.StatusForbidden
	_, err = c.GetChat(context.Background(), "locked")
	assert.Equal(t, models.ErrAccess, models.CodeOf(err))

	status = http.StatusInternalServerError
	_, err = c.GetChat(context.Background(), "broken")
	assert.Equal(t, models.ErrTransient, models.CodeOf(err))
	assert.True(t, models.IsRetryable(err))
}
