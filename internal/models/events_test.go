package models

import (
	"reflect"
	"testing"
)

func TestEvent_RoutingKey(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantKey string
		wantOK  bool
	}{
		{
			name:    "message",
			event:   Event{Type: EventMessage, Data: MessagePayload{ConversationID: "conv-1"}},
			wantKey: "conv-1",
			wantOK:  true,
		},
		{
			name:    "stream chunk",
			event:   Event{Type: EventMessageStreaming, Data: StreamChunkPayload{ConversationID: "conv-2", Chunk: "x"}},
			wantKey: "conv-2",
			wantOK:  true,
		},
		{
			name:    "stream marker",
			event:   Event{Type: EventMessageStreamEnded, Data: StreamMarkerPayload{ConversationID: "conv-3"}},
			wantKey: "conv-3",
			wantOK:  true,
		},
		{
			name:    "conversation updated",
			event:   Event{Type: EventConversationUpdated, Data: ConversationUpdatedPayload{ConversationID: "conv-4"}},
			wantKey: "conv-4",
			wantOK:  true,
		},
		{
			name:    "presence",
			event:   Event{Type: EventUserJoined, Data: PresencePayload{ConversationID: "conv-5", UserID: "u1"}},
			wantKey: "conv-5",
			wantOK:  true,
		},
		{
			name:    "typing",
			event:   Event{Type: EventTyping, Data: TypingPayload{ConversationID: "conv-6", UserID: "u1", IsTyping: true}},
			wantKey: "conv-6",
			wantOK:  true,
		},
		{
			name:   "error is never routed",
			event:  Event{Type: EventError, Data: ErrorPayload{Message: "boom", Code: "E1"}},
			wantOK: false,
		},
		{
			name:   "missing conversation id",
			event:  Event{Type: EventMessage, Data: MessagePayload{}},
			wantOK: false,
		},
		{
			name:   "nil payload",
			event:  Event{Type: EventMessage},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := tt.event.RoutingKey()
			if ok != tt.wantOK || key != tt.wantKey {
				t.Errorf("RoutingKey() = (%q, %v), want (%q, %v)", key, ok, tt.wantKey, tt.wantOK)
			}
		})
	}
}

func TestEvent_IsStreaming(t *testing.T) {
	streaming := []EventType{EventMessageStreaming, EventMessageStreamStarted, EventMessageStreamEnded}
	for _, et := range streaming {
		if !(Event{Type: et}).IsStreaming() {
			t.Errorf("IsStreaming() = false for %q, want true", et)
		}
	}
	for _, et := range []EventType{EventMessage, EventConversationUpdated, EventUserJoined, EventUserLeft, EventTyping, EventError} {
		if (Event{Type: et}).IsStreaming() {
			t.Errorf("IsStreaming() = true for %q, want false", et)
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Event
		wantErr bool
	}{
		{
			name: "tagged message",
			raw:  `{"type":"message","data":{"conversationId":"conv-1","message":{"text":"hi"}}}`,
			want: Event{
				Type: EventMessage,
				Data: MessagePayload{ConversationID: "conv-1", Message: []byte(`{"text":"hi"}`)},
			},
		},
		{
			name: "typing",
			raw:  `{"type":"typing","data":{"conversationId":"conv-1","userId":"u1","isTyping":true}}`,
			want: Event{
				Type: EventTyping,
				Data: TypingPayload{ConversationID: "conv-1", UserID: "u1", IsTyping: true},
			},
		},
		{
			name: "error with no data fields",
			raw:  `{"type":"error","data":{"message":"rate limited","code":"RATE"}}`,
			want: Event{
				Type: EventError,
				Data: ErrorPayload{Message: "rate limited", Code: "RATE"},
			},
		},
		{
			name: "absent data decodes to zero payload",
			raw:  `{"type":"userLeft"}`,
			want: Event{Type: EventUserLeft, Data: PresencePayload{}},
		},
		{
			name:    "unknown discriminator",
			raw:     `{"type":"bogus","data":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `typing`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeEvent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DecodeEvent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWrapStreamPayload(t *testing.T) {
	got, err := WrapStreamPayload(EventMessageStreaming, []byte(`{"conversationId":"conv-1","chunk":"he","done":false}`))
	if err != nil {
		t.Fatal(err)
	}
	want := Event{
		Type: EventMessageStreaming,
		Data: StreamChunkPayload{ConversationID: "conv-1", Chunk: "he"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("WrapStreamPayload() = %+v, want %+v", got, want)
	}

	if _, err := WrapStreamPayload(EventMessage, []byte(`{}`)); err == nil {
		t.Error("WrapStreamPayload() accepted a non-streaming type")
	}
}

func TestEncodeDecodeEvent(t *testing.T) {
	event := Event{
		Type: EventConversationUpdated,
		Data: ConversationUpdatedPayload{ConversationID: "conv-9", Conversation: []byte(`{"title":"new"}`)},
	}
	raw, err := EncodeEvent(event)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeEvent(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, event) {
		t.Errorf("round trip = %+v, want %+v", got, event)
	}
}
