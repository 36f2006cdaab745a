package models

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// EventType discriminates the variants of a realtime Event.
type EventType string

const (
	EventMessage              EventType = "message"
	EventMessageStreaming     EventType = "messageStreaming"
	EventMessageStreamStarted EventType = "messageStreamStarted"
	EventMessageStreamEnded   EventType = "messageStreamEnded"
	EventConversationUpdated  EventType = "conversationUpdated"
	EventUserJoined           EventType = "userJoined"
	EventUserLeft             EventType = "userLeft"
	EventTyping               EventType = "typing"
	EventError                EventType = "error"
)

// ChannelRealtimeEvent is the transport channel carrying already-tagged events.
// The three streaming event types double as channel names for their raw payloads.
const ChannelRealtimeEvent = "realtime-event"

// EventData is the closed set of event payloads.
type EventData interface {
	isEventData()
}

// Event is one realtime occurrence, tagged by Type.
type Event struct {
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

// MessagePayload carries a persisted chat message for a conversation.
type MessagePayload struct {
	ConversationID string          `json:"conversationId"`
	Message        json.RawMessage `json:"message,omitempty"`
}

// StreamChunkPayload is one chunk of an in-flight assistant response.
type StreamChunkPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
	Chunk          string `json:"chunk"`
	Done           bool   `json:"done,omitempty"`
}

// StreamMarkerPayload marks the start or end of a response stream.
type StreamMarkerPayload struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
}

// ConversationUpdatedPayload signals metadata changes on a conversation.
type ConversationUpdatedPayload struct {
	ConversationID string          `json:"conversationId"`
	Conversation   json.RawMessage `json:"conversation,omitempty"`
}

// PresencePayload reports a user joining or leaving a conversation.
type PresencePayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
}

// TypingPayload reports a typing indicator change.
type TypingPayload struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId"`
	IsTyping       bool   `json:"isTyping"`
}

// ErrorPayload is a transport-level error. It carries no conversation and
// is only ever delivered to global subscribers.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (MessagePayload) isEventData()             {}
func (StreamChunkPayload) isEventData()         {}
func (StreamMarkerPayload) isEventData()        {}
func (ConversationUpdatedPayload) isEventData() {}
func (PresencePayload) isEventData()            {}
func (TypingPayload) isEventData()              {}
func (ErrorPayload) isEventData()               {}

// RoutingKey returns the conversation identifier used for keyed fan-out.
// The second return is false for events that are not conversation-routed,
// which includes every error event and any payload missing its identifier.
func (e Event) RoutingKey() (string, bool) {
	switch d := e.Data.(type) {
	case MessagePayload:
		return d.ConversationID, d.ConversationID != ""
	case StreamChunkPayload:
		return d.ConversationID, d.ConversationID != ""
	case StreamMarkerPayload:
		return d.ConversationID, d.ConversationID != ""
	case ConversationUpdatedPayload:
		return d.ConversationID, d.ConversationID != ""
	case PresencePayload:
		return d.ConversationID, d.ConversationID != ""
	case TypingPayload:
		return d.ConversationID, d.ConversationID != ""
	case ErrorPayload:
		return "", false
	default:
		return "", false
	}
}

// IsStreaming reports whether the event is one of the three stream variants.
func (e Event) IsStreaming() bool {
	switch e.Type {
	case EventMessageStreaming, EventMessageStreamStarted, EventMessageStreamEnded:
		return true
	default:
		return false
	}
}

type eventHead struct {
	Type EventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes a tagged event, selecting the payload struct by the
// type discriminator. Unknown discriminators are an error.
func (e *Event) UnmarshalJSON(b []byte) error {
	var head eventHead
	if err := sonic.Unmarshal(b, &head); err != nil {
		return fmt.Errorf("failed to decode event envelope: %w", err)
	}
	data, err := decodePayload(head.Type, head.Data)
	if err != nil {
		return err
	}
	e.Type = head.Type
	e.Data = data
	return nil
}

func decodePayload(t EventType, raw json.RawMessage) (EventData, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch t {
	case EventMessage:
		return decodeAs[MessagePayload](t, raw)
	case EventMessageStreaming:
		return decodeAs[StreamChunkPayload](t, raw)
	case EventMessageStreamStarted, EventMessageStreamEnded:
		return decodeAs[StreamMarkerPayload](t, raw)
	case EventConversationUpdated:
		return decodeAs[ConversationUpdatedPayload](t, raw)
	case EventUserJoined, EventUserLeft:
		return decodeAs[PresencePayload](t, raw)
	case EventTyping:
		return decodeAs[TypingPayload](t, raw)
	case EventError:
		return decodeAs[ErrorPayload](t, raw)
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
}

func decodeAs[T EventData](t EventType, raw json.RawMessage) (EventData, error) {
	var p T
	if err := sonic.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to decode %q payload: %w", t, err)
	}
	return p, nil
}

// DecodeEvent decodes a fully tagged event from the realtime-event channel.
func DecodeEvent(raw []byte) (Event, error) {
	var e Event
	if err := sonic.Unmarshal(raw, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// WrapStreamPayload wraps a raw payload from one of the three typed streaming
// channels into the corresponding tagged event.
func WrapStreamPayload(t EventType, raw []byte) (Event, error) {
	switch t {
	case EventMessageStreaming, EventMessageStreamStarted, EventMessageStreamEnded:
	default:
		return Event{}, fmt.Errorf("%q is not a streaming channel", t)
	}
	data, err := decodePayload(t, raw)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: t, Data: data}, nil
}

// EncodeEvent serializes a tagged event for transport.
func EncodeEvent(e Event) ([]byte, error) {
	return sonic.Marshal(e)
}
