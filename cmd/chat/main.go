// Command chat is a minimal terminal client. It authenticates anonymously,
// opens one chat session and relays stdin lines as messages while printing
// reconciled events from other participants.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"optichat/client/internal/config"
	"optichat/client/internal/gateway"
	"optichat/client/internal/models"
	"optichat/client/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: chat <chat-id>")
		os.Exit(1)
	}
	chatID := os.Args[1]
	serverURL := config.Getenv("SERVER_URL", "http://localhost:8080")

	token, userID, err := gateway.Authenticate(serverURL)
	if err != nil {
		log.Fatalf("auth failed: %v", err)
	}
	fmt.Printf("connected as %s\n", userID)

	gw := gateway.NewClient(serverURL, token)
	mgr := session.NewManager(gw, userID, session.Options{
		Notify: func(ev models.Event) { printEvent(ev, userID) },
	})
	defer mgr.Close()

	ctrl := mgr.Open(chatID)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = ctrl.Load(ctx)
	cancel()
	if err != nil {
		log.Fatalf("opening chat %s: %v", chatID, err)
	}

	for _, m := range ctrl.Messages() {
		printMessage(m, userID)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			return
		}

		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, err := ctrl.Send(sendCtx, session.Draft{Content: line})
		cancel()
		if err != nil {
			fmt.Printf("! send failed: %v\n", err)
		}
	}
}

func printEvent(ev models.Event, self string) {
	switch e := ev.(type) {
	case models.NewMessageEvent:
		if e.Message.SenderID != self {
			printMessage(e.Message, self)
		}
	case models.MessageUpdatedEvent:
		if e.Message.SenderID != self {
			fmt.Printf("[%s] (edited) %s\n", short(e.Message.SenderID), e.Message.Content)
		}
	case models.MessageDeletedEvent:
		if e.UserID != self {
			fmt.Printf("[%s] deleted a message\n", short(e.UserID))
		}
	case models.TypingStartedEvent:
		if e.UserID != self {
			fmt.Printf("[%s] is typing...\n", short(e.UserID))
		}
	}
}

func printMessage(m models.Message, self string) {
	who := short(m.SenderID)
	if m.SenderID == self {
		who = "you"
	}
	fmt.Printf("[%s] %s\n", who, m.Content)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
