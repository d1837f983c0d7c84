package session_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"optichat/client/internal/gateway"
	"optichat/client/internal/models"
	"optichat/client/internal/session"
)

func TestManager_OpenSameChatReusesSession(t *testing.T) {
	gw := new(MockGateway)
	mgr := session.NewManager(gw, "alice", session.Options{Clock: newFakeClock()})

	a := mgr.Open("chat-1")
	b := mgr.Open("chat-1")

	assert.Same(t, a, b)
	assert.Same(t, a, mgr.Active())
}

func TestManager_SwitchingSnapshotsAndRestores(t *testing.T) {
	gw := new(MockGateway)
	clock := newFakeClock()
	at := clock.Now()

	gw.On("GetChat", "chat-1").Return(testChat("chat-1", "alice", "bob"), nil)
	gw.On("GetChat", "chat-2").Return(testChat("chat-2", "alice", "carol"), nil)
	gw.On("GetMessages", "chat-1", mock.Anything).
		Return(&gateway.MessagePage{Messages: []models.Message{testMessage("m1", "bob", "hey", at)}}, nil)
	gw.On("GetMessages", "chat-2", mock.Anything).Return(&gateway.MessagePage{}, nil)
	gw.On("Subscribe", mock.AnythingOfType("string")).Return(&fakeSub{}, nil)
	gw.On("MarkAsRead", mock.AnythingOfType("string"), mock.Anything).Return(nil)

	mgr := session.NewManager(gw, "alice", session.Options{Clock: clock})

	first := mgr.Open("chat-1")
	assert.NoError(t, first.Load(context.Background()))
	assert.Len(t, first.Messages(), 1)

	// Switching tears the first session down and caches its snapshot.
	second := mgr.Open("chat-2")
	assert.NotSame(t, first, second)
	assert.Same(t, second, mgr.Active())

	// Revisiting restores the cached messages before any network call.
	back := mgr.Open("chat-1")
	assert.NotSame(t, first, back)
	msgs := back.Messages()
	assert.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "chat-1", back.Chat().ID)
}

func TestManager_SnapshotCacheEvictsOldest(t *testing.T) {
	gw := new(MockGateway)
	clock := newFakeClock()
	at := clock.Now()

	gw.On("GetChat", mock.AnythingOfType("string")).Return(testChat("chat-x", "alice"), nil)
	gw.On("Subscribe", mock.AnythingOfType("string")).Return(&fakeSub{}, nil)
	gw.On("MarkAsRead", mock.AnythingOfType("string"), mock.Anything).Return(nil).Maybe()
	gw.On("GetMessages", mock.AnythingOfType("string"), mock.Anything).
		Return(&gateway.MessagePage{Messages: []models.Message{testMessage("m1", "alice", "hi", at)}}, nil)

	mgr := session.NewManager(gw, "alice", session.Options{Clock: clock})

	// Visit one more chat than the cache holds; the first visit's snapshot
	// ages out.
	for i := 0; i <= 32; i++ {
		ctrl := mgr.Open(fmt.Sprintf("chat-%d", i))
		assert.NoError(t, ctrl.Load(context.Background()))
	}
	mgr.Close()

	evicted := mgr.Open("chat-0")
	assert.Empty(t, evicted.Messages())

	recent := mgr.Open("chat-32")
	assert.Len(t, recent.Messages(), 1)
}

func TestManager_CloseIsIdempotent(t *testing.T) {
	gw := new(MockGateway)
	mgr := session.NewManager(gw, "alice", session.Options{Clock: newFakeClock()})

	mgr.Open("chat-1")
	mgr.Close()
	assert.Nil(t, mgr.Active())
	mgr.Close()
}
