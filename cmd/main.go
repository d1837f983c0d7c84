package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"optichat/client/internal/config"
	"optichat/client/internal/moderation"
	"optichat/client/internal/server/handler"
	"optichat/client/internal/server/hub"
	"optichat/client/internal/server/storage"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	dsn := config.Getenv("DATABASE_DSN",
		"host=localhost user=user password=password dbname=optichat port=5432 sslmode=disable")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Getenv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	return db, rdb
}

func main() {
	log.Println("Starting optichat gateway...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)
	if err := s.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database and Redis connections established, migrations complete.")

	eventHub := hub.NewHub(s)
	eventHub.StartPubSubListener()
	go eventHub.Run()

	limiter := moderation.NewRateLimiter(config.SendRateLimit, config.SendRateWindow, nil)

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set!")
	}

	r := gin.Default()
	h := handler.NewHandler(eventHub, s, limiter, []byte(jwtSecret))
	h.Register(r)

	server := &http.Server{
		Addr:           config.Getenv("LISTEN_ADDR", ":8080"),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
