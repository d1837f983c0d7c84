package session

import (
	"sort"
	"time"

	"optichat/client/internal/models"
)

// Store maintains one chronologically ordered, deduplicated collection of
// messages for a chat. Display order is creation timestamp ascending with
// ties broken by arrival order. Store is not safe for concurrent use; the
// Controller serializes access.
type Store struct {
	entries []storeEntry
	index   map[string]int // message ID -> position in entries
	nextSeq uint64
}

type storeEntry struct {
	msg models.Message
	seq uint64 // arrival order, the timestamp tie-breaker
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Len returns the number of messages held.
func (s *Store) Len() int { return len(s.entries) }

// Get returns the message with the given identifier.
func (s *Store) Get(id string) (models.Message, bool) {
	if i, ok := s.index[id]; ok {
		return s.entries[i].msg, true
	}
	return models.Message{}, false
}

// Messages returns a copy of the ordered message list.
func (s *Store) Messages() []models.Message {
	out := make([]models.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

// InsertOrReplace adds the message, or replaces the existing record with
// the same identifier in place. The store never holds two records with the
// same identifier.
func (s *Store) InsertOrReplace(msg models.Message) {
	if i, ok := s.index[msg.ID]; ok {
		// Replace in place, keeping the original arrival order.
		s.entries[i].msg = msg
		return
	}
	s.entries = append(s.entries, storeEntry{msg: msg, seq: s.nextSeq})
	s.nextSeq++
	s.resort()
}

// Update applies the mutation to the record with the given identifier.
// It is a no-op (returning false) if the message is absent.
func (s *Store) Update(id string, apply func(*models.Message)) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	apply(&s.entries[i].msg)
	return true
}

// Remove deletes the record entirely (hard delete). Removing an absent
// identifier is a no-op.
func (s *Store) Remove(id string) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.reindex()
	return true
}

// SoftDelete replaces the record's content with the deletion placeholder
// and marks its type deleted, retaining the record's position so the
// conversational ordering survives the deletion.
func (s *Store) SoftDelete(id string, deletedAt time.Time) bool {
	return s.Update(id, func(m *models.Message) {
		at := deletedAt
		m.Content = models.DeletedPlaceholder
		m.Type = models.MessageDeleted
		m.DeletedAt = &at
	})
}

// ReplaceAll discards the current collection and loads the given messages.
func (s *Store) ReplaceAll(msgs []models.Message) {
	s.entries = s.entries[:0]
	s.index = make(map[string]int, len(msgs))
	s.nextSeq = 0
	for _, m := range msgs {
		s.InsertOrReplace(m)
	}
}

// FindByClientRef returns the identifier of a live optimistic record whose
// client ref matches. Exact correlation for confirmed sends.
func (s *Store) FindByClientRef(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	for _, e := range s.entries {
		if e.msg.IsOptimistic && e.msg.ClientRef() == ref {
			return e.msg.ID, true
		}
	}
	return "", false
}

// FindOptimistic returns the identifier of the oldest live optimistic
// record with matching sender and content. Heuristic correlation used when
// no client ref survived the round trip.
func (s *Store) FindOptimistic(senderID, content string) (string, bool) {
	for _, e := range s.entries {
		if e.msg.IsOptimistic && e.msg.SenderID == senderID && e.msg.Content == content {
			return e.msg.ID, true
		}
	}
	return "", false
}

func (s *Store) resort() {
	sort.SliceStable(s.entries, func(i, j int) bool {
		a, b := s.entries[i], s.entries[j]
		if a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.seq < b.seq
		}
		return a.msg.CreatedAt.Before(b.msg.CreatedAt)
	})
	s.reindex()
}

func (s *Store) reindex() {
	for i := range s.index {
		delete(s.index, i)
	}
	for i, e := range s.entries {
		s.index[e.msg.ID] = i
	}
}
