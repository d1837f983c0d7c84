package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"optichat/client/internal/models"
	"optichat/client/internal/session"
)

func TestStore_InsertOrReplace_Deduplicates(t *testing.T) {
	s := session.NewStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.InsertOrReplace(testMessage("m1", "alice", "hello", at))
	s.InsertOrReplace(testMessage("m1", "alice", "hello edited", at))

	assert.Equal(t, 1, s.Len())
	got, ok := s.Get("m1")
	assert.True(t, ok)
	assert.Equal(t, "hello edited", got.Content)
}

func TestStore_OrderingWithTieBreak(t *testing.T) {
	s := session.NewStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// m2 arrives first but was created later; m3 and m4 share a timestamp so
	// arrival order decides.
	s.InsertOrReplace(testMessage("m2", "alice", "second", at.Add(time.Minute)))
	s.InsertOrReplace(testMessage("m1", "bob", "first", at))
	s.InsertOrReplace(testMessage("m3", "alice", "tie a", at.Add(2*time.Minute)))
	s.InsertOrReplace(testMessage("m4", "bob", "tie b", at.Add(2*time.Minute)))

	msgs := s.Messages()
	ids := []string{msgs[0].ID, msgs[1].ID, msgs[2].ID, msgs[3].ID}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4"}, ids)
}

func TestStore_ReplaceKeepsPosition(t *testing.T) {
	s := session.NewStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.InsertOrReplace(testMessage("m1", "alice", "a", at))
	s.InsertOrReplace(testMessage("m2", "bob", "b", at))
	s.InsertOrReplace(testMessage("m1", "alice", "a2", at))

	msgs := s.Messages()
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "a2", msgs[0].Content)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestStore_SoftDelete(t *testing.T) {
	s := session.NewStore()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.InsertOrReplace(testMessage("m1", "alice", "a", at))
	s.InsertOrReplace(testMessage("m2", "bob", "secret", at.Add(time.Minute)))
	s.InsertOrReplace(testMessage("m3", "alice", "c", at.Add(2*time.Minute)))

	deletedAt := at.Add(3 * time.Minute)
	assert.True(t, s.SoftDelete("m2", deletedAt))

	msgs := s.Messages()
	assert.Equal(t, 3, len(msgs))
	assert.Equal(t, "m2", msgs[1].ID)
	assert.Equal(t, models.DeletedPlaceholder, msgs[1].Content)
	assert.Equal(t, models.MessageDeleted, msgs[1].Type)
	assert.True(t, msgs[1].IsDeleted())
}

func TestStore_UpdateAbsentIsNoop(t *testing.T) {
	s := session.NewStore()
	called := false
	ok := s.Update("missing", func(m *models.Message) { called = true })
	assert.False(t, ok)
	assert.False(t, called)
}

func TestStore_RemoveAbsentIsNoop(t *testing.T) {
	s := session.NewStore()
	s.InsertOrReplace(testMessage("m1", "alice", "a", time.Now()))
	assert.False(t, s.Remove("missing"))
	assert.True(t, s.Remove("m1"))
	assert.False(t, s.Remove("m1"))
	assert.Equal(t, 0, s.Len())
}

func TestStore_FindByClientRef(t *testing.T) {
	s := session.NewStore()
	at := time.Now()

	opt := testMessage("optimistic-1", "alice", "hi", at)
	opt.IsOptimistic = true
	opt.Metadata = map[string]string{models.MetaClientRef: "optimistic-1"}
	s.InsertOrReplace(opt)

	confirmed := testMessage("m1", "alice", "hi", at)
	confirmed.Metadata = map[string]string{models.MetaClientRef: "optimistic-1"}
	s.InsertOrReplace(confirmed)

	// Only the live optimistic record correlates.
	id, ok := s.FindByClientRef("optimistic-1")
	assert.True(t, ok)
	assert.Equal(t, "optimistic-1", id)

	_, ok = s.FindByClientRef("")
	assert.False(t, ok)
}

func TestStore_FindOptimisticMatchesOldest(t *testing.T) {
	s := session.NewStore()
	at := time.Now()

	a := testMessage("optimistic-a", "alice", "hi", at)
	a.IsOptimistic = true
	b := testMessage("optimistic-b", "alice", "hi", at.Add(time.Second))
	b.IsOptimistic = true
	s.InsertOrReplace(a)
	s.InsertOrReplace(b)

	id, ok := s.FindOptimistic("alice", "hi")
	assert.True(t, ok)
	assert.Equal(t, "optimistic-a", id)

	_, ok = s.FindOptimistic("bob", "hi")
	assert.False(t, ok)
}
