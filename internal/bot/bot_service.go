// Package bot bridges Telegram users into gateway chats. Each Telegram
// conversation maps onto one chat session driven through the session
// controller, so bridged users get the same optimistic send and
// reconciliation behavior as native clients.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"optichat/client/internal/gateway"
	"optichat/client/internal/models"
	"optichat/client/internal/session"
)

const requestTimeout = 10 * time.Second

// Service polls Telegram updates and routes them into chat sessions.
type Service struct {
	BotAPI    *tgbotapi.BotAPI
	ServerURL string

	mu    sync.Mutex
	links map[int64]*link
}

// link is one Telegram conversation bound to one gateway chat.
type link struct {
	userID string
	mgr    *session.Manager
	ctrl   *session.Controller
}

// NewService authenticates the bot against Telegram.
func NewService(token, serverURL string) (*Service, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("Authorized on account %s", bot.Self.UserName)

	return &Service{
		BotAPI:    bot,
		ServerURL: serverURL,
		links:     make(map[int64]*link),
	}, nil
}

// Run consumes Telegram updates until the process exits.
func (s *Service) Run() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	for update := range s.BotAPI.GetUpdatesChan(u) {
		if update.Message == nil {
			continue
		}
		s.handleMessage(update.Message)
	}
}

func (s *Service) handleMessage(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "join":
		s.handleJoin(msg)
		return
	case "leave":
		s.handleLeave(msg)
		return
	}

	content := msg.Text
	if content == "" {
		content = msg.Caption
	}
	if content == "" {
		return
	}

	s.mu.Lock()
	l := s.links[msg.Chat.ID]
	s.mu.Unlock()
	if l == nil {
		s.reply(msg.Chat.ID, "Not connected. Use /join <chat-id> first.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if _, err := l.ctrl.Send(ctx, session.Draft{Content: content}); err != nil {
		log.Printf("ERROR: bridged send for telegram chat %d failed: %v", msg.Chat.ID, err)
		s.reply(msg.Chat.ID, "Delivery failed: "+err.Error())
	}
}

// handleJoin connects the Telegram conversation to the gateway chat named
// by the command argument.
func (s *Service) handleJoin(msg *tgbotapi.Message) {
	chatID := strings.TrimSpace(msg.CommandArguments())
	if chatID == "" {
		s.reply(msg.Chat.ID, "Usage: /join <chat-id>")
		return
	}

	token, userID, err := gateway.Authenticate(s.ServerURL)
	if err != nil {
		log.Printf("ERROR: bridge auth failed: %v", err)
		s.reply(msg.Chat.ID, "Could not reach the chat server.")
		return
	}

	tgChatID := msg.Chat.ID
	gw := gateway.NewClient(s.ServerURL, token)
	mgr := session.NewManager(gw, userID, session.Options{
		Notify: func(ev models.Event) { s.forward(tgChatID, ev) },
	})

	ctrl := mgr.Open(chatID)
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := ctrl.Load(ctx); err != nil {
		mgr.Close()
		s.reply(tgChatID, "Could not open chat: "+err.Error())
		return
	}

	s.mu.Lock()
	if old := s.links[tgChatID]; old != nil {
		old.mgr.Close()
	}
	s.links[tgChatID] = &link{userID: userID, mgr: mgr, ctrl: ctrl}
	s.mu.Unlock()

	s.reply(tgChatID, fmt.Sprintf("Connected to chat %s. Messages you type here are relayed.", chatID))
}

func (s *Service) handleLeave(msg *tgbotapi.Message) {
	s.mu.Lock()
	l := s.links[msg.Chat.ID]
	delete(s.links, msg.Chat.ID)
	s.mu.Unlock()

	if l == nil {
		s.reply(msg.Chat.ID, "Not connected.")
		return
	}
	l.mgr.Close()
	s.reply(msg.Chat.ID, "Disconnected.")
}

// forward relays reconciled remote activity into the Telegram
// conversation. A bridged user's own messages are never echoed back.
func (s *Service) forward(tgChatID int64, ev models.Event) {
	s.mu.Lock()
	l := s.links[tgChatID]
	s.mu.Unlock()
	if l == nil {
		return
	}

	switch e := ev.(type) {
	case models.NewMessageEvent:
		if e.Message.SenderID == l.userID {
			return
		}
		s.reply(tgChatID, fmt.Sprintf("%s: %s", shortID(e.Message.SenderID), e.Message.Content))

	case models.MessageUpdatedEvent:
		if e.Message.SenderID == l.userID {
			return
		}
		s.reply(tgChatID, fmt.Sprintf("%s (edited): %s", shortID(e.Message.SenderID), e.Message.Content))

	case models.MessageDeletedEvent:
		if e.UserID == l.userID {
			return
		}
		s.reply(tgChatID, fmt.Sprintf("%s deleted a message", shortID(e.UserID)))
	}
}

func (s *Service) reply(tgChatID int64, text string) {
	if _, err := s.BotAPI.Send(tgbotapi.NewMessage(tgChatID, text)); err != nil {
		log.Printf("ERROR: sending telegram message to %d: %v", tgChatID, err)
	}
}

// shortID abbreviates a UUID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
