package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType names the realtime events delivered over a chat subscription.
type EventType string

const (
	EventNewMessage     EventType = "new-message"
	EventMessageUpdated EventType = "message-updated"
	EventMessageDeleted EventType = "message-deleted"
	EventTypingStarted  EventType = "typing-started"
	EventTypingStopped  EventType = "typing-stopped"
	EventMessageRead    EventType = "message-read"
)

// Envelope is the wire shape of a chat event: a type tag, routing fields
// and a type-specific payload.
type Envelope struct {
	Type      EventType       `json:"type"`
	ChatID    string          `json:"chat_id"`
	UserID    string          `json:"user_id"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EventMeta carries the routing fields common to all event variants.
type EventMeta struct {
	ChatID    string
	UserID    string
	Timestamp time.Time
}

// Meta implements the Event interface.
func (m EventMeta) Meta() EventMeta { return m }

// Event is the decoded form of an Envelope: one variant per event type, so
// reconciler dispatch is a type switch the compiler can check.
type Event interface {
	Meta() EventMeta
	Kind() EventType
}

// NewMessageEvent announces a message added to the chat.
type NewMessageEvent struct {
	EventMeta
	Message Message
}

// MessageUpdatedEvent carries the updated record for an edited message.
type MessageUpdatedEvent struct {
	EventMeta
	Message Message
}

// MessageDeletedEvent announces a deletion. DeletedAt present means soft
// delete; absent means the message was removed entirely.
type MessageDeletedEvent struct {
	EventMeta
	MessageID string
	DeletedAt *time.Time
}

// TypingStartedEvent signals that UserID started typing.
type TypingStartedEvent struct {
	EventMeta
}

// TypingStoppedEvent signals that UserID stopped typing.
type TypingStoppedEvent struct {
	EventMeta
}

// MessageReadEvent signals that UserID read the listed messages.
type MessageReadEvent struct {
	EventMeta
	MessageIDs []string
	ReadAt     time.Time
}

// UnknownEvent preserves an envelope whose type this client does not
// understand. It is logged and ignored; one unparseable event must not
// break the stream.
type UnknownEvent struct {
	EventMeta
	Type EventType
	Raw  json.RawMessage
}

func (NewMessageEvent) Kind() EventType     { return EventNewMessage }
func (MessageUpdatedEvent) Kind() EventType { return EventMessageUpdated }
func (MessageDeletedEvent) Kind() EventType { return EventMessageDeleted }
func (TypingStartedEvent) Kind() EventType  { return EventTypingStarted }
func (TypingStoppedEvent) Kind() EventType  { return EventTypingStopped }
func (MessageReadEvent) Kind() EventType    { return EventMessageRead }
func (e UnknownEvent) Kind() EventType      { return e.Type }

// Wire payload shapes for the typed variants.
type newMessagePayload struct {
	Message Message `json:"message"`
}

type messageDeletedPayload struct {
	MessageID string     `json:"message_id"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type messageReadPayload struct {
	MessageIDs []string  `json:"message_ids"`
	ReadAt     time.Time `json:"read_at"`
}

// Decode converts the envelope into its typed event variant.
// An unrecognized type decodes into UnknownEvent without error.
func (e Envelope) Decode() (Event, error) {
	meta := EventMeta{ChatID: e.ChatID, UserID: e.UserID, Timestamp: e.Timestamp}

	switch e.Type {
	case EventNewMessage:
		var p newMessagePayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return NewMessageEvent{EventMeta: meta, Message: p.Message}, nil

	case EventMessageUpdated:
		var p newMessagePayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return MessageUpdatedEvent{EventMeta: meta, Message: p.Message}, nil

	case EventMessageDeleted:
		var p messageDeletedPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return MessageDeletedEvent{EventMeta: meta, MessageID: p.MessageID, DeletedAt: p.DeletedAt}, nil

	case EventTypingStarted:
		return TypingStartedEvent{EventMeta: meta}, nil

	case EventTypingStopped:
		return TypingStoppedEvent{EventMeta: meta}, nil

	case EventMessageRead:
		var p messageReadPayload
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return MessageReadEvent{EventMeta: meta, MessageIDs: p.MessageIDs, ReadAt: p.ReadAt}, nil

	default:
		return UnknownEvent{EventMeta: meta, Type: e.Type, Raw: e.Data}, nil
	}
}

// EnvelopeFor encodes a typed event back into its wire envelope. It is the
// inverse of Decode and is what the gateway server publishes.
func EnvelopeFor(ev Event) (Envelope, error) {
	meta := ev.Meta()
	env := Envelope{
		Type:      ev.Kind(),
		ChatID:    meta.ChatID,
		UserID:    meta.UserID,
		Timestamp: meta.Timestamp,
	}

	var payload any
	switch e := ev.(type) {
	case NewMessageEvent:
		payload = newMessagePayload{Message: e.Message}
	case MessageUpdatedEvent:
		payload = newMessagePayload{Message: e.Message}
	case MessageDeletedEvent:
		payload = messageDeletedPayload{MessageID: e.MessageID, DeletedAt: e.DeletedAt}
	case MessageReadEvent:
		payload = messageReadPayload{MessageIDs: e.MessageIDs, ReadAt: e.ReadAt}
	case TypingStartedEvent, TypingStoppedEvent:
		return env, nil
	case UnknownEvent:
		env.Data = e.Raw
		return env, nil
	default:
		return env, fmt.Errorf("no envelope encoding for event %T", ev)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("encode %s payload: %w", env.Type, err)
	}
	env.Data = data
	return env, nil
}
