package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"optichat/client/internal/config"
	"optichat/client/internal/gateway"
	"optichat/client/internal/models"
)

// ErrRetryLimit is the terminal error surfaced once Retry has exhausted its
// bounded attempts. Further retries are refused until the session is reset
// by navigating away and back.
var ErrRetryLimit = errors.New("retry limit reached")

// Options tunes a chat session. Zero values fall back to the defaults in
// the config package.
type Options struct {
	Clock             Clock
	OptimisticTimeout time.Duration
	TypingDebounce    time.Duration
	RetryAttempts     int
	PageSize          int
	// Notify, when set, is invoked after each reconciled event, outside the
	// session lock. Consumers (CLI, bot bridge) use it to react to remote
	// activity.
	Notify func(models.Event)
}

func (o *Options) fill() {
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.OptimisticTimeout <= 0 {
		o.OptimisticTimeout = config.OptimisticTimeout
	}
	if o.TypingDebounce <= 0 {
		o.TypingDebounce = config.TypingDebounce
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = config.RetryAttempts
	}
	if o.PageSize <= 0 {
		o.PageSize = config.PageSize
	}
}

// Snapshot preserves a session's visible state across remounts so rapid
// chat switching does not flicker. Live optimistic records are excluded:
// their eviction timers died with the session.
type Snapshot struct {
	Chat     *models.Chat
	Messages []models.Message
	Cursor   string
	HasMore  bool
}

// Controller owns the state of one open chat: the message store, the
// optimistic tracker, the event reconciler and the typing debouncer. It is
// the only component that mutates the session state; callers reach it
// through the exported operations, each safe for concurrent use.
type Controller struct {
	chatID      string
	localUserID string
	gw          gateway.Gateway
	clock       Clock
	opts        Options

	mu          sync.Mutex
	store       *Store
	rec         *reconciler
	tracker     *tracker
	typing      *typingDebouncer
	chat        *models.Chat
	sub         gateway.Subscription
	loading     bool
	loadingMore bool
	sending     bool
	hasMore     bool
	cursor      string
	err         error
	retryCount  int
	closed      bool
}

// NewController builds a session for the chat, restoring the snapshot when
// one survives from an earlier visit.
func NewController(gw gateway.Gateway, chatID, localUserID string, snap *Snapshot, opts Options) *Controller {
	opts.fill()

	c := &Controller{
		chatID:      chatID,
		localUserID: localUserID,
		gw:          gw,
		clock:       opts.Clock,
		opts:        opts,
		store:       NewStore(),
	}
	c.tracker = newTracker(opts.Clock, opts.OptimisticTimeout, c.evictOptimistic)
	c.rec = newReconciler(c.store, c.tracker, localUserID)
	c.typing = newTypingDebouncer(opts.Clock, opts.TypingDebounce, c.notifyTyping)

	if snap != nil {
		c.chat = snap.Chat
		c.cursor = snap.Cursor
		c.hasMore = snap.HasMore
		c.store.ReplaceAll(snap.Messages)
	}
	return c
}

// ChatID returns the identifier of the chat this session manages.
func (c *Controller) ChatID() string { return c.chatID }

// Chat returns the loaded chat metadata, nil before the first Load.
func (c *Controller) Chat() *models.Chat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chat
}

// Messages returns the ordered message list.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Messages()
}

// TypingUsers returns the users currently typing, excluding the viewer.
func (c *Controller) TypingUsers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec.TypingUsers()
}

// HasMore reports whether older pages remain.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Live reports whether the realtime subscription is established.
func (c *Controller) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// Err returns the session-level error slot.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ClearError clears the session-level error without retrying. The retry
// counter is left untouched, so an exhausted Retry stays exhausted until
// the session is reset.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = nil
}

// Load fetches the chat metadata and the first page of messages, then
// establishes the realtime subscription. Establishing twice reuses the
// existing subscription. On failure the store is left as-is and the error
// lands in the session error slot.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.loading {
		c.mu.Unlock()
		return nil
	}
	c.loading = true
	c.mu.Unlock()

	chat, err := c.gw.GetChat(ctx, c.chatID)
	var page *gateway.MessagePage
	if err == nil {
		page, err = c.gw.GetMessages(ctx, c.chatID, gateway.MessageQuery{Limit: c.opts.PageSize})
	}

	c.mu.Lock()
	c.loading = false
	if c.closed {
		// Stale response for an abandoned session: discard.
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.err = err
		c.mu.Unlock()
		return err
	}

	c.chat = chat
	c.store.ReplaceAll(page.Messages)
	c.cursor = page.NextCursor
	c.hasMore = page.HasMore
	c.err = nil
	c.retryCount = 0
	needSub := c.sub == nil
	c.mu.Unlock()

	if needSub {
		sub, serr := c.gw.Subscribe(c.chatID, c.handleEvent)
		c.mu.Lock()
		if serr != nil {
			c.err = serr
			c.mu.Unlock()
			return serr
		}
		if c.closed {
			c.mu.Unlock()
			sub.Close()
			return nil
		}
		c.sub = sub
		c.mu.Unlock()
	}

	c.markLoadedRead(ctx, page.Messages)
	return nil
}

// markLoadedRead reports read receipts for the other participants'
// unread messages. Best effort; a failure only logs.
func (c *Controller) markLoadedRead(ctx context.Context, msgs []models.Message) {
	var unread []string
	for _, m := range msgs {
		if m.SenderID != c.localUserID && !m.ReadByUser(c.localUserID) {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) == 0 {
		return
	}
	if err := c.gw.MarkAsRead(ctx, c.chatID, unread); err != nil {
		log.Printf("WARNING: mark-as-read for chat %s failed: %v", c.chatID, err)
	}
}

// LoadMore fetches the next older page and prepends it. No-op when no more
// pages exist or a pagination fetch is already in flight.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || !c.hasMore || c.loadingMore {
		c.mu.Unlock()
		return nil
	}
	c.loadingMore = true
	cursor := c.cursor
	c.mu.Unlock()

	page, err := c.gw.GetMessages(ctx, c.chatID, gateway.MessageQuery{Limit: c.opts.PageSize, Cursor: cursor})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadingMore = false
	if c.closed {
		return nil
	}
	if err != nil {
		c.err = err
		return err
	}
	for _, m := range page.Messages {
		c.store.InsertOrReplace(m)
	}
	c.cursor = page.NextCursor
	c.hasMore = page.HasMore
	return nil
}

// Send creates an optimistic record, issues the gateway call and replaces
// the record with the confirmed message or marks it failed. It returns the
// temporary identifier of the optimistic record. At most one send is
// outstanding per session; a concurrent call is a no-op returning "".
func (c *Controller) Send(ctx context.Context, d Draft) (string, error) {
	if d.Type == "" {
		d.Type = models.MessageText
	}
	if strings.TrimSpace(d.Content) == "" && d.Metadata[models.MetaAttachment] == "" {
		return "", models.NewChatError(models.ErrValidation, "message content is empty")
	}

	c.mu.Lock()
	if c.closed || c.sending {
		c.mu.Unlock()
		return "", nil
	}
	c.sending = true
	msg := c.tracker.BeginSend(c.chatID, c.localUserID, d)
	c.store.InsertOrReplace(msg)
	c.mu.Unlock()

	confirmed, err := c.gw.SendMessage(ctx, gateway.SendRequest{
		ChatID:    c.chatID,
		Content:   d.Content,
		Type:      d.Type,
		ReplyToID: d.ReplyToID,
		Metadata:  msg.Metadata,
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
	c.tracker.Resolve(msg.ID)
	if c.closed {
		return msg.ID, err
	}

	if err != nil {
		// Mark-failed policy: the record stays so the UI can render a
		// delivery-failed indicator; other messages remain interactable.
		c.store.Update(msg.ID, func(m *models.Message) {
			m.IsOptimistic = false
			m.Error = err.Error()
		})
		return msg.ID, err
	}

	// The subscription may have delivered the confirmed message already;
	// both orders converge because removal and insert-or-replace are
	// idempotent.
	c.store.Remove(msg.ID)
	got := *confirmed
	got.IsOptimistic = false
	got.IsRead = true
	c.store.InsertOrReplace(got)
	return msg.ID, nil
}

// Edit issues the edit call. The visible record is updated by the event
// stream, not by this call's response, keeping a single source of truth
// for content mutation.
func (c *Controller) Edit(ctx context.Context, messageID, content string) error {
	if strings.TrimSpace(content) == "" {
		return models.NewChatError(models.ErrValidation, "message content is empty")
	}
	if _, err := c.gw.EditMessage(ctx, messageID, content); err != nil {
		c.setErr(err)
		return err
	}
	return nil
}

// Delete issues the delete call and removes the message locally right away
// for responsiveness. The redundant deletion event that follows is an
// idempotent no-op.
func (c *Controller) Delete(ctx context.Context, messageID string, forEveryone bool) error {
	if err := c.gw.DeleteMessage(ctx, messageID, forEveryone); err != nil {
		c.setErr(err)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Remove(messageID)
	return nil
}

// SetTyping feeds the local typing state through the debouncer.
func (c *Controller) SetTyping(isTyping bool) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	if isTyping {
		c.typing.Start()
	} else {
		c.typing.Stop()
	}
}

// MarkRead reports read receipts for the given messages.
func (c *Controller) MarkRead(ctx context.Context, messageIDs ...string) error {
	return c.gw.MarkAsRead(ctx, c.chatID, messageIDs)
}

// Retry re-invokes Load, bounded by the retry counter. Once exceeded it
// surfaces ErrRetryLimit without touching the gateway.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.retryCount >= c.opts.RetryAttempts {
		c.err = ErrRetryLimit
		c.mu.Unlock()
		return ErrRetryLimit
	}
	c.retryCount++
	c.mu.Unlock()
	return c.Load(ctx)
}

// Close tears the session down: unsubscribes the event stream, cancels the
// typing debouncer and every optimistic timer, and returns the snapshot to
// cache for a future revisit. Close is idempotent.
func (c *Controller) Close() *Snapshot {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sub := c.sub
	c.sub = nil

	msgs := c.store.Messages()
	kept := msgs[:0]
	for _, m := range msgs {
		if m.IsOptimistic {
			continue
		}
		kept = append(kept, m)
	}
	snap := &Snapshot{Chat: c.chat, Messages: kept, Cursor: c.cursor, HasMore: c.hasMore}
	c.mu.Unlock()

	c.typing.Cancel()
	c.tracker.CancelAll()
	if sub != nil {
		sub.Close()
	}
	return snap
}

// handleEvent is the subscription callback. Events for an abandoned
// session are discarded.
func (c *Controller) handleEvent(ev models.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.rec.Apply(ev)
	notify := c.opts.Notify
	c.mu.Unlock()

	if notify != nil {
		notify(ev)
	}
}

// evictOptimistic runs when an optimistic record's timeout fires. The
// record may have been replaced meanwhile, so the optimistic flag is
// re-checked before removal.
func (c *Controller) evictOptimistic(tempID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if m, ok := c.store.Get(tempID); ok && m.IsOptimistic {
		log.Printf("WARNING: send %s timed out, dropping optimistic message", tempID)
		c.store.Remove(tempID)
	}
}

// notifyTyping is the debouncer's gateway hook.
func (c *Controller) notifyTyping(isTyping bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.gw.UpdateTypingStatus(ctx, c.chatID, isTyping); err != nil {
		log.Printf("WARNING: typing status update failed: %v", err)
	}
}

func (c *Controller) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.err = err
	}
}
