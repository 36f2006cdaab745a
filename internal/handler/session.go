package handler

import (
	"sync"

	"github.com/convoline/bridge/internal/models"
)

// Session buffers events for one streaming client between the bridge
// callback and the SSE write loop. Pushing never blocks: when the buffer
// is full the event is dropped, matching the bridge's at-most-once
// delivery.
type Session struct {
	mux     sync.Mutex
	eventCh chan models.Event
	closed  bool
}

func NewSession(buffer int) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		eventCh: make(chan models.Event, buffer),
	}
}

// Events returns the read-only channel for receiving events. It is closed
// by Close.
func (s *Session) Events() <-chan models.Event {
	return s.eventCh
}

// Push enqueues an event without blocking. Events pushed after Close, or
// while the buffer is full, are dropped.
func (s *Session) Push(event models.Event) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed {
		return
	}
	select {
	case s.eventCh <- event:
	default:
	}
}

// Close stops the session. Idempotent.
func (s *Session) Close() {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.eventCh)
}
