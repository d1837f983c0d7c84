// Package hub fans chat events out to the websocket subscribers connected
// to this server instance. Events always travel through Redis Pub/Sub
// first, so instances behind a load balancer see each other's activity.
package hub

import (
	"encoding/json"
	"log"

	"optichat/client/internal/models"
	"optichat/client/internal/server/storage"
)

// Hub owns the set of live subscriber connections.
type Hub struct {
	Clients map[Client]struct{}

	RegisterCh   chan Client
	UnregisterCh chan Client
	EventCh      chan models.Envelope

	Storage *storage.Service
}

// NewHub builds a hub fed by the storage service's Redis subscription.
func NewHub(s *storage.Service) *Hub {
	return &Hub{
		Clients:      make(map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		EventCh:      make(chan models.Envelope, 64),
		Storage:      s,
	}
}

// StartPubSubListener runs the goroutine bridging Redis Pub/Sub into the
// hub's event channel.
func (h *Hub) StartPubSubListener() {
	go func() {
		pubsub := h.Storage.SubscribeToAllChats()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var env models.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("ERROR: unmarshalling pubsub event: %v", err)
				continue
			}
			h.EventCh <- env
		}
	}()
}

// Run is the hub's main loop: registrations, unregistrations and event
// fanout all funnel through here, so the client set needs no lock.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.RegisterCh:
			h.Clients[client] = struct{}{}
			log.Printf("Client %s subscribed to chat %s", client.GetUserID(), client.GetChatID())

		case client := <-h.UnregisterCh:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				client.Close()
			}

		case env := <-h.EventCh:
			h.broadcast(env)
		}
	}
}

// broadcast delivers the envelope to every subscriber of its chat. A
// subscriber whose send buffer is full is dropped; a client that cannot
// keep up with the stream must reconnect and reload.
func (h *Hub) broadcast(env models.Envelope) {
	for client := range h.Clients {
		if client.GetChatID() != env.ChatID {
			continue
		}
		select {
		case client.GetSendChannel() <- env:
		default:
			log.Printf("WARNING: dropping slow subscriber %s on chat %s", client.GetUserID(), env.ChatID)
			delete(h.Clients, client)
			client.Close()
		}
	}
}
