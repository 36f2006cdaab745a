// Package source provides transport-layer event sources that feed the
// bridge: an in-process emitter, a Redis pub/sub consumer and a WebSocket
// client. All of them satisfy the bridge.Source contract.
package source

import "sync"

// Emitter is an in-process event source. Hosts that produce events from
// plain function calls rather than a network transport attach one to the
// bridge and emit through it. Also the reference Source used in tests.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[string][]func(payload []byte)
}

func NewEmitter() *Emitter {
	return &Emitter{
		handlers: make(map[string][]func(payload []byte)),
	}
}

// On registers a handler for a named event.
func (e *Emitter) On(event string, handler func(payload []byte)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[event] = append(e.handlers[event], handler)
}

// RemoveAllListeners drops every registered handler.
func (e *Emitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = make(map[string][]func(payload []byte))
}

// Emit invokes the handlers registered for the named event, in
// registration order, on the calling goroutine. Handlers registered while
// an emit is in flight are not part of that pass.
func (e *Emitter) Emit(event string, payload []byte) {
	e.mu.RLock()
	snapshot := make([]func(payload []byte), len(e.handlers[event]))
	copy(snapshot, e.handlers[event])
	e.mu.RUnlock()

	for _, handler := range snapshot {
		handler(payload)
	}
}

// ListenerCount reports how many handlers are attached for the named event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[event])
}
