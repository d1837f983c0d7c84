package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"optichat/client/internal/models"
)

// tempIDPrefix namespaces optimistic identifiers so they are
// distinguishable from server-assigned UUIDs by construction.
const tempIDPrefix = "optimistic-"

// NewTempID generates a temporary identifier for an optimistic message:
// prefix + high-resolution clock + randomness, so rapid sends never collide
// and an ID is never reused.
func NewTempID(now time.Time) string {
	return fmt.Sprintf("%s%d-%s", tempIDPrefix, now.UnixNano(), uuid.NewString())
}

// IsTempID reports whether the identifier names an optimistic record.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// Draft describes the message a caller wants to send.
type Draft struct {
	Content   string
	Type      models.MessageType
	ReplyToID *string
	Metadata  map[string]string
}

// tracker creates provisional message records before server confirmation
// and arranges their timeout-based eviction.
type tracker struct {
	mu      sync.Mutex
	clock   Clock
	timeout time.Duration
	timers  map[string]Timer
	// onExpire runs when an optimistic record's timeout fires; the
	// controller re-checks the optimistic flag under its own lock, so a
	// late timer against an already-confirmed record is a no-op.
	onExpire func(tempID string)
}

func newTracker(clock Clock, timeout time.Duration, onExpire func(tempID string)) *tracker {
	return &tracker{
		clock:    clock,
		timeout:  timeout,
		timers:   make(map[string]Timer),
		onExpire: onExpire,
	}
}

// BeginSend builds the optimistic record for the draft, stamps it with the
// local clock and schedules its eviction. The caller inserts the returned
// record into the store.
func (t *tracker) BeginSend(chatID, senderID string, d Draft) models.Message {
	now := t.clock.Now()
	tempID := NewTempID(now)

	meta := make(map[string]string, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		meta[k] = v
	}
	meta[models.MetaClientRef] = tempID

	msg := models.Message{
		ID:           tempID,
		ChatID:       chatID,
		SenderID:     senderID,
		Content:      d.Content,
		Type:         d.Type,
		CreatedAt:    now,
		UpdatedAt:    now,
		ReplyToID:    d.ReplyToID,
		Metadata:     meta,
		IsRead:       true, // own message
		IsOptimistic: true,
	}

	t.mu.Lock()
	t.timers[tempID] = t.clock.AfterFunc(t.timeout, func() {
		t.mu.Lock()
		delete(t.timers, tempID)
		t.mu.Unlock()
		t.onExpire(tempID)
	})
	t.mu.Unlock()

	return msg
}

// Resolve cancels the eviction timer once the record was confirmed, failed
// or replaced. Resolving an unknown identifier is a no-op.
func (t *tracker) Resolve(tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[tempID]; ok {
		timer.Stop()
		delete(t.timers, tempID)
	}
}

// CancelAll stops every pending eviction timer. Called on session teardown
// so timers never leak across sessions.
func (t *tracker) CancelAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}
