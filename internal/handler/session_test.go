package handler

import (
	"testing"

	"github.com/convoline/bridge/internal/models"
)

func event(conversationID string) models.Event {
	return models.Event{
		Type: models.EventMessage,
		Data: models.MessagePayload{ConversationID: conversationID},
	}
}

func TestSession_PushAndClose(t *testing.T) {
	s := NewSession(2)
	s.Push(event("c1"))
	s.Push(event("c2"))

	if got := len(s.Events()); got != 2 {
		t.Fatalf("buffered %d events, want 2", got)
	}

	s.Close()
	// Push after close is dropped, not a panic.
	s.Push(event("c3"))
	// Close is idempotent.
	s.Close()

	count := 0
	for range s.Events() {
		count++
	}
	if count != 2 {
		t.Errorf("drained %d events, want 2", count)
	}
}

func TestSession_FullBufferDrops(t *testing.T) {
	s := NewSession(1)
	s.Push(event("c1"))
	s.Push(event("c2")) // dropped, never blocks

	got := <-s.Events()
	if key, _ := got.RoutingKey(); key != "c1" {
		t.Errorf("kept event for %q, want c1", key)
	}
	if len(s.Events()) != 0 {
		t.Error("second event was buffered, want dropped")
	}
}
