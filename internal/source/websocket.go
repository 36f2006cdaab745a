package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"github.com/convoline/bridge/internal/utils"
)

// wsFrame is the wire format of the upstream transport: a named event plus
// its raw payload.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func decodeFrame(raw []byte) (wsFrame, error) {
	var f wsFrame
	if err := sonic.Unmarshal(raw, &f); err != nil {
		return wsFrame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	if f.Event == "" {
		return wsFrame{}, fmt.Errorf("frame has no event name")
	}
	return f, nil
}

// WebsocketSource consumes named events from an upstream WebSocket
// endpoint and forwards payloads to registered listeners. Lost connections
// are redialed with exponential backoff.
type WebsocketSource struct {
	mu        sync.RWMutex
	handlers  map[string][]func(payload []byte)
	url       string
	cancel    context.CancelFunc
	connected atomic.Bool
}

// NewWebsocketSource dials the upstream endpoint once synchronously to
// fail fast on a bad URL, then hands the connection to the read loop.
func NewWebsocketSource(url string) (*WebsocketSource, error) {
	logger := log.WithField("prefix", "NewWebsocketSource")

	dialCtx, cancelDial := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDial()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %q: %w", url, err)
	}
	logger.Infof("connected to %s", url)

	runCtx, stop := context.WithCancel(context.Background())
	s := &WebsocketSource{
		handlers: make(map[string][]func(payload []byte)),
		url:      url,
		cancel:   stop,
	}
	s.connected.Store(true)
	utils.RunWithRecovery(func() { s.run(runCtx, conn) })
	return s, nil
}

// On registers a handler for a named event.
func (s *WebsocketSource) On(event string, handler func(payload []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], handler)
}

// RemoveAllListeners drops every registered handler while the read loop
// keeps the connection alive.
func (s *WebsocketSource) RemoveAllListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = make(map[string][]func(payload []byte))
}

func (s *WebsocketSource) run(ctx context.Context, conn *websocket.Conn) {
	logger := log.WithField("prefix", "WebsocketSource.run")

	if err := s.readLoop(ctx, conn); err != nil && ctx.Err() == nil {
		logger.Errorf("read loop failed: %v", err)
	}
	s.connected.Store(false)

	backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			logger.Errorf("redial failed: %v", err)
			return retry.RetryableError(err)
		}
		logger.Infof("reconnected to %s", s.url)
		s.connected.Store(true)
		readErr := s.readLoop(ctx, conn)
		s.connected.Store(false)
		if ctx.Err() != nil {
			return nil
		}
		return retry.RetryableError(readErr)
	})
	if err != nil && ctx.Err() == nil {
		logger.Errorf("reconnect loop gave up: %v", err)
	}
}

func (s *WebsocketSource) readLoop(ctx context.Context, conn *websocket.Conn) error {
	logger := log.WithField("prefix", "WebsocketSource.readLoop")
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Errorf("failed to close connection: %v", err)
		}
	}()

	// Unblock ReadMessage when the source is closed.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		frame, err := decodeFrame(raw)
		if err != nil {
			logger.Errorf("dropping frame: %v", err)
			continue
		}
		s.dispatch(frame.Event, frame.Data)
	}
}

func (s *WebsocketSource) dispatch(event string, payload []byte) {
	s.mu.RLock()
	snapshot := make([]func(payload []byte), len(s.handlers[event]))
	copy(snapshot, s.handlers[event])
	s.mu.RUnlock()

	for _, handler := range snapshot {
		handler(payload)
	}
}

// HealthCheck reports whether the upstream connection is currently alive.
func (s *WebsocketSource) HealthCheck() error {
	if !s.connected.Load() {
		return fmt.Errorf("websocket source disconnected from %s", s.url)
	}
	return nil
}

// Close stops the read loop and tears down the connection.
func (s *WebsocketSource) Close() error {
	s.cancel()
	return nil
}
