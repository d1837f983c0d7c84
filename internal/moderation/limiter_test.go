package moderation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"optichat/client/internal/moderation"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := moderation.NewRateLimiter(3, 10*time.Second, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		ok, _ := rl.Allow("alice")
		assert.True(t, ok)
	}

	ok, retryAfter := rl.Allow("alice")
	assert.False(t, ok)
	assert.Equal(t, 10*time.Second, retryAfter)

	// Other users keep their own budget.
	ok, _ = rl.Allow("bob")
	assert.True(t, ok)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := moderation.NewRateLimiter(2, 10*time.Second, func() time.Time { return now })

	rl.Allow("alice")
	now = now.Add(6 * time.Second)
	rl.Allow("alice")

	ok, retryAfter := rl.Allow("alice")
	assert.False(t, ok)
	// The oldest send leaves the window in 4 more seconds.
	assert.Equal(t, 4*time.Second, retryAfter)

	now = now.Add(4 * time.Second)
	ok, _ = rl.Allow("alice")
	assert.True(t, ok)
}

func TestRateLimiter_Forget(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := moderation.NewRateLimiter(1, 10*time.Second, func() time.Time { return now })

	rl.Allow("alice")
	ok, _ := rl.Allow("alice")
	assert.False(t, ok)

	rl.Forget("alice")
	ok, _ = rl.Allow("alice")
	assert.True(t, ok)
}
