// Package config groups the tuning constants and environment lookup used
// across the client and the reference gateway server.
package config

import (
	"os"
	"time"
)

const (
	// Session
	OptimisticTimeout = 10 * time.Second
	TypingDebounce    = 500 * time.Millisecond
	RetryAttempts     = 3
	PageSize          = 50
	SessionCacheSize  = 32

	// Moderation
	SendRateLimit  = 10
	SendRateWindow = 10 * time.Second

	// Server
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 4096
	MaxContentLen  = 4000

	TokenTTL = 72 * time.Hour
)

// Getenv returns the value of the environment variable or the fallback
// when it is unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
