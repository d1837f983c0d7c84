// Command bridge runs the Telegram relay. Telegram users /join a chat and
// talk through it like any other client.
package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"optichat/client/internal/bot"
	"optichat/client/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not set!")
	}
	serverURL := config.Getenv("SERVER_URL", "http://localhost:8080")

	svc, err := bot.NewService(botToken, serverURL)
	if err != nil {
		log.Fatalf("Failed to start Telegram bridge: %v", err)
	}
	svc.Run()
}
