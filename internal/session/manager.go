// Package session implements the optimistic chat reconciliation core: an
// ordered message store, an optimistic send tracker, an event reconciler,
// a typing debouncer and the controller that orchestrates them against a
// remote chat gateway.
package session

import (
	"container/list"
	"sync"

	"optichat/client/internal/config"
	"optichat/client/internal/gateway"
)

// Manager owns chat sessions for one viewer. At most one session is active
// at a time; switching chats tears the previous session down and caches
// its snapshot so revisiting a chat shows the last-seen messages without a
// visible reload. The snapshot cache is bounded with LRU eviction instead
// of growing per distinct chat visited.
type Manager struct {
	mu     sync.Mutex
	gw     gateway.Gateway
	userID string
	opts   Options
	active *Controller
	cache  *snapshotCache
}

// NewManager builds a session manager for the viewer. The options apply to
// every session it opens.
func NewManager(gw gateway.Gateway, userID string, opts Options) *Manager {
	return &Manager{
		gw:     gw,
		userID: userID,
		opts:   opts,
		cache:  newSnapshotCache(config.SessionCacheSize),
	}
}

// Open returns the session for the chat, creating it if needed. Opening
// the already-active chat returns the existing session; opening a
// different chat closes the previous session first and stores its
// snapshot.
func (m *Manager) Open(chatID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		if m.active.ChatID() == chatID {
			return m.active
		}
		m.closeActive()
	}

	m.active = NewController(m.gw, chatID, m.userID, m.cache.take(chatID), m.opts)
	return m.active
}

// Active returns the currently open session, or nil.
func (m *Manager) Active() *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Close tears down the active session, if any, snapshotting it.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeActive()
}

func (m *Manager) closeActive() {
	if m.active == nil {
		return
	}
	if snap := m.active.Close(); snap != nil {
		m.cache.put(m.active.ChatID(), snap)
	}
	m.active = nil
}

// snapshotCache is a bounded LRU of chat snapshots keyed by chat ID.
type snapshotCache struct {
	cap   int
	order *list.List               // front = most recent
	items map[string]*list.Element // chat ID -> element holding cacheItem
}

type cacheItem struct {
	chatID string
	snap   *Snapshot
}

func newSnapshotCache(capacity int) *snapshotCache {
	return &snapshotCache{
		cap:   capacity,
		order: list.New(),
		items: make(map[string]*list.Element),
	}
}

// take removes and returns the snapshot for the chat, nil if absent.
// Removal keeps the cache and the restored session from diverging.
func (c *snapshotCache) take(chatID string) *Snapshot {
	el, ok := c.items[chatID]
	if !ok {
		return nil
	}
	c.order.Remove(el)
	delete(c.items, chatID)
	return el.Value.(*cacheItem).snap
}

func (c *snapshotCache) put(chatID string, snap *Snapshot) {
	if el, ok := c.items[chatID]; ok {
		c.order.Remove(el)
		delete(c.items, chatID)
	}
	c.items[chatID] = c.order.PushFront(&cacheItem{chatID: chatID, snap: snap})

	for c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheItem).chatID)
	}
}

func (c *snapshotCache) len() int { return c.order.Len() }
