package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"optichat/client/internal/models"
)

// Client is the HTTP/WebSocket implementation of the Gateway contract,
// speaking the reference server's REST surface and event stream.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient builds a gateway client for the server at baseURL using the
// given bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Authenticate requests an anonymous identity from the server and returns
// the bearer token and user ID to build a Client with.
func Authenticate(baseURL string) (token, userID string, err error) {
	resp, err := http.Post(baseURL+"/auth/anon", "application/json", nil)
	if err != nil {
		return "", "", fmt.Errorf("anon auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", decodeError(resp)
	}
	var out struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("anon auth: decode response: %w", err)
	}
	return out.Token, out.UserID, nil
}

func (c *Client) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	if err := c.do(ctx, http.MethodGet, "/chats/"+chatID, nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) GetMessages(ctx context.Context, chatID string, q MessageQuery) (*MessagePage, error) {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		v.Set("cursor", q.Cursor)
	}
	path := "/chats/" + chatID + "/messages"
	if enc := v.Encode(); enc != "" {
		path += "?" + enc
	}

	var out struct {
		Messages   []models.Message `json:"messages"`
		HasMore    bool             `json:"has_more"`
		NextCursor string           `json:"next_cursor"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &MessagePage{Messages: out.Messages, HasMore: out.HasMore, NextCursor: out.NextCursor}, nil
}

func (c *Client) SendMessage(ctx context.Context, req SendRequest) (*models.Message, error) {
	body := map[string]any{
		"content":  req.Content,
		"type":     req.Type,
		"metadata": req.Metadata,
	}
	if req.ReplyToID != nil {
		body["reply_to_id"] = *req.ReplyToID
	}
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/chats/"+req.ChatID+"/messages", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessage(ctx context.Context, messageID, content string) (*models.Message, error) {
	var msg models.Message
	body := map[string]any{"content": content}
	if err := c.do(ctx, http.MethodPatch, "/messages/"+messageID, body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string, forEveryone bool) error {
	path := "/messages/" + messageID
	if forEveryone {
		path += "?for_everyone=true"
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) UpdateTypingStatus(ctx context.Context, chatID string, isTyping bool) error {
	body := map[string]any{"is_typing": isTyping}
	return c.do(ctx, http.MethodPost, "/chats/"+chatID+"/typing", body, nil)
}

func (c *Client) MarkAsRead(ctx context.Context, chatID string, messageIDs []string) error {
	body := map[string]any{"message_ids": messageIDs}
	return c.do(ctx, http.MethodPost, "/chats/"+chatID+"/read", body, nil)
}

// do issues one JSON request and decodes the response into out (when
// non-nil). Non-2xx responses are mapped onto the ChatError taxonomy.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.NewChatError(models.ErrTransient, "gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return models.NewChatError(models.ErrTransient, "decode gateway response: %v", err)
	}
	return nil
}

// wireError is the server's error body shape.
type wireError struct {
	Error struct {
		Code         string `json:"code"`
		Message      string `json:"message"`
		RetryAfterMS int64  `json:"retry_after_ms,omitempty"`
	} `json:"error"`
}

func decodeError(resp *http.Response) error {
	var we wireError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &we); err == nil && we.Error.Code != "" {
		ce := &models.ChatError{
			Code:       models.ErrorCode(we.Error.Code),
			Message:    we.Error.Message,
			RetryAfter: time.Duration(we.Error.RetryAfterMS) * time.Millisecond,
		}
		return ce
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewChatError(models.ErrAccess, "gateway returned %s", resp.Status)
	case http.StatusNotFound:
		return models.NewChatError(models.ErrNotFound, "gateway returned %s", resp.Status)
	case http.StatusTooManyRequests:
		return models.NewChatError(models.ErrRateLimited, "gateway returned %s", resp.Status)
	default:
		return models.NewChatError(models.ErrTransient, "gateway returned %s", resp.Status)
	}
}
