package source

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"github.com/convoline/bridge/internal/models"
	"github.com/convoline/bridge/internal/utils"
)

// subscribedChannels are the transport channels a source listens on: the
// generic tagged-event channel plus the three raw streaming channels.
var subscribedChannels = []string{
	models.ChannelRealtimeEvent,
	string(models.EventMessageStreaming),
	string(models.EventMessageStreamStarted),
	string(models.EventMessageStreamEnded),
}

// RedisSource consumes the bridge channels from a Redis (or Valkey)
// pub/sub server and forwards payloads to registered listeners. The
// consume loop resubscribes with exponential backoff after connection
// failures.
type RedisSource struct {
	mu       sync.RWMutex
	handlers map[string][]func(payload []byte)
	client   *redis.Client
	cancel   context.CancelFunc
}

// NewRedisSource connects to the given Redis URI, verifies it with a ping
// and starts the consume loop.
func NewRedisSource(redisURI string) (*RedisSource, error) {
	logger := log.WithField("prefix", "NewRedisSource")

	opts, err := redis.ParseURL(strings.TrimSpace(redisURI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse URI: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	logger.Info("connected to Redis")

	runCtx, stop := context.WithCancel(context.Background())
	s := &RedisSource{
		handlers: make(map[string][]func(payload []byte)),
		client:   client,
		cancel:   stop,
	}
	utils.RunWithRecovery(func() { s.run(runCtx) })
	return s, nil
}

// On registers a handler for a named event.
func (s *RedisSource) On(event string, handler func(payload []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = append(s.handlers[event], handler)
}

// RemoveAllListeners drops every registered handler. The consume loop
// keeps running; subsequent messages are discarded until new handlers are
// attached.
func (s *RedisSource) RemoveAllListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = make(map[string][]func(payload []byte))
}

func (s *RedisSource) run(ctx context.Context) {
	logger := log.WithField("prefix", "RedisSource.run")

	backoff := retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf("consume loop failed, resubscribing: %v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		logger.Errorf("consume loop gave up: %v", err)
	}
}

func (s *RedisSource) consume(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, subscribedChannels...)
	defer func() {
		if err := pubsub.Close(); err != nil {
			log.WithField("prefix", "RedisSource.consume").Errorf("failed to close pubsub: %v", err)
		}
	}()

	// Confirm the subscription actually started.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		s.dispatch(msg.Channel, []byte(msg.Payload))
	}
}

func (s *RedisSource) dispatch(event string, payload []byte) {
	s.mu.RLock()
	snapshot := make([]func(payload []byte), len(s.handlers[event]))
	copy(snapshot, s.handlers[event])
	s.mu.RUnlock()

	for _, handler := range snapshot {
		handler(payload)
	}
}

// HealthCheck pings the Redis server.
func (s *RedisSource) HealthCheck() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close stops the consume loop and releases the client.
func (s *RedisSource) Close() error {
	s.cancel()
	return s.client.Close()
}
