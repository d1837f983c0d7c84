package session

import (
	"fmt"
	"log"
	"sort"

	"optichat/client/internal/models"
)

// reconciler consumes the remote event stream and converges the store to
// server truth. Application is commutative and idempotent: the optimistic
// send path and the event stream race to mutate the same store, and either
// arrival order must end in the same state.
type reconciler struct {
	store       *Store
	tracker     *tracker
	localUserID string
	typing      map[string]struct{}
}

func newReconciler(store *Store, tr *tracker, localUserID string) *reconciler {
	return &reconciler{
		store:       store,
		tracker:     tr,
		localUserID: localUserID,
		typing:      make(map[string]struct{}),
	}
}

// Apply merges one event into the store. Errors (including panics from a
// malformed payload) are caught and logged; one bad event must not break
// the stream, so the caller never sees a failure.
func (r *reconciler) Apply(ev models.Event) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("ERROR: reconciling %s event: %v", ev.Kind(), p)
		}
	}()
	if err := r.apply(ev); err != nil {
		log.Printf("ERROR: reconciling %s event: %v", ev.Kind(), err)
	}
}

func (r *reconciler) apply(ev models.Event) error {
	switch e := ev.(type) {
	case models.NewMessageEvent:
		// Sending a message supersedes any typing indicator.
		r.clearTyping(e.Message.SenderID)
		r.applyNewMessage(e.Message)

	case models.MessageUpdatedEvent:
		r.applyUpdate(e.Message)

	case models.MessageDeletedEvent:
		if e.DeletedAt != nil {
			r.store.SoftDelete(e.MessageID, *e.DeletedAt)
		} else {
			r.store.Remove(e.MessageID)
		}

	case models.TypingStartedEvent:
		// The local viewer's own identifier never enters the typing set.
		if e.UserID != r.localUserID {
			r.typing[e.UserID] = struct{}{}
		}

	case models.TypingStoppedEvent:
		delete(r.typing, e.UserID)

	case models.MessageReadEvent:
		r.applyRead(e)

	case models.UnknownEvent:
		log.Printf("WARNING: ignoring unknown chat event type %q", e.Type)

	default:
		return fmt.Errorf("unhandled event variant %T", ev)
	}
	return nil
}

func (r *reconciler) applyNewMessage(msg models.Message) {
	// Idempotent: the confirmed record may already be present, either from
	// a previous delivery or because the send response landed first.
	if _, ok := r.store.Get(msg.ID); ok {
		return
	}

	msg.IsOptimistic = false
	msg.IsRead = msg.SenderID == r.localUserID || msg.ReadByUser(r.localUserID)

	// Correlate with a live optimistic record: exact client-ref match
	// first, sender+content heuristic as the fallback. If neither matches,
	// the message came from another participant (or the send path already
	// replaced the provisional record) and is simply inserted.
	tempID, ok := r.store.FindByClientRef(msg.ClientRef())
	if !ok {
		tempID, ok = r.store.FindOptimistic(msg.SenderID, msg.Content)
	}
	if ok {
		r.store.Remove(tempID)
		r.tracker.Resolve(tempID)
	}
	r.store.InsertOrReplace(msg)
}

func (r *reconciler) applyUpdate(msg models.Message) {
	// No-op if the message is not held locally (paginated out).
	r.store.Update(msg.ID, func(m *models.Message) {
		m.Content = msg.Content
		m.Type = msg.Type
		m.UpdatedAt = msg.UpdatedAt
		m.EditedAt = msg.EditedAt
		if msg.Metadata != nil {
			m.Metadata = msg.Metadata
		}
	})
}

func (r *reconciler) applyRead(e models.MessageReadEvent) {
	for _, id := range e.MessageIDs {
		r.store.Update(id, func(m *models.Message) {
			if !m.ReadByUser(e.UserID) {
				m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: e.UserID, ReadAt: e.ReadAt})
			}
			if e.UserID == r.localUserID {
				m.IsRead = true
			}
		})
	}
}

// TypingUsers returns the identifiers currently typing, sorted for stable
// rendering. The local viewer is never included.
func (r *reconciler) TypingUsers() []string {
	out := make([]string, 0, len(r.typing))
	for id := range r.typing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (r *reconciler) clearTyping(userID string) {
	delete(r.typing, userID)
}
