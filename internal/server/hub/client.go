package hub

import "optichat/client/internal/models"

// Client is the interface for one subscribed event-stream connection.
// It abstracts the underlying transport so the hub can manage different
// connection types uniformly.
type Client interface {
	// GetUserID returns the identifier of the user behind the connection.
	GetUserID() string
	// GetChatID returns the chat whose events this connection receives.
	GetChatID() string

	// GetSendChannel returns the channel the hub writes outbound event
	// envelopes to. It is a send-only channel.
	GetSendChannel() chan<- models.Envelope

	// Run starts the connection's pumps.
	Run()
	// Close shuts the connection down and releases its channels.
	Close()
}
