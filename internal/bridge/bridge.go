package bridge

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/convoline/bridge/internal/models"
)

// GlobalKey is the sentinel routing key whose subscribers observe every
// event regardless of conversation.
const GlobalKey = "global"

var (
	activeSubscriptionsMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "number_of_active_subscriptions",
		Help: "The number of active subscriptions",
	})
	dispatchedEventsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "number_of_dispatched_events",
		Help: "The total number of dispatched events",
	}, []string{"type"})
	deliveredCallbacksMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "number_of_delivered_callbacks",
		Help: "The total number of callback deliveries",
	})
	subscriberFaultsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "number_of_subscriber_faults",
		Help: "The total number of recovered subscriber panics",
	})
)

// Callback receives events routed to its registration key.
type Callback func(models.Event)

// Source is the contract an external transport must satisfy to feed the
// bridge: named-event registration plus bulk listener removal.
type Source interface {
	On(event string, handler func(payload []byte))
	RemoveAllListeners()
}

// Recorder receives delivery outcome records without blocking. A full
// recorder drops records, it never stalls dispatch.
type Recorder interface {
	TryAdd(record interface{}) bool
}

// DeliveryRecord summarizes one dispatch pass.
type DeliveryRecord struct {
	EventType string `json:"eventType"`
	Key       string `json:"key,omitempty"`
	Delivered int    `json:"delivered"`
	Faults    int    `json:"faults"`
}

// Stats is a read-only snapshot of registry occupancy.
type Stats struct {
	ActiveSubscriptions            int      `json:"activeSubscriptions"`
	ConversationsWithSubscriptions []string `json:"conversationsWithSubscriptions"`
	TotalCallbacks                 int      `json:"totalCallbacks"`
}

// Bridge fans events from one upstream source out to per-conversation
// subscribers and to the global channel. The zero value is not usable,
// construct with New and pass by reference to collaborators.
type Bridge struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]Callback
	nextID      uint64
	source      Source
	recorder    Recorder
}

// New creates a bridge. The recorder may be nil, in which case delivery
// outcomes are not reported.
func New(recorder Recorder) *Bridge {
	return &Bridge{
		subscribers: make(map[string]map[uint64]Callback),
		recorder:    recorder,
	}
}

var streamChannels = []models.EventType{
	models.EventMessageStreaming,
	models.EventMessageStreamStarted,
	models.EventMessageStreamEnded,
}

// ConnectSource attaches the bridge to a transport source. Any previously
// attached source has all of its listeners removed first, so reconnecting
// never mixes sources or leaks listeners. Passing nil detaches only.
func (b *Bridge) ConnectSource(src Source) {
	b.mu.Lock()
	if b.source != nil {
		b.source.RemoveAllListeners()
	}
	b.source = src
	b.mu.Unlock()

	if src == nil {
		return
	}

	src.On(models.ChannelRealtimeEvent, func(payload []byte) {
		logger := log.WithField("prefix", "Bridge.ConnectSource")
		event, err := models.DecodeEvent(payload)
		if err != nil {
			logger.Errorf("dropping undecodable realtime event: %v", err)
			return
		}
		b.Emit(event)
	})
	for _, t := range streamChannels {
		t := t
		src.On(string(t), func(payload []byte) {
			logger := log.WithField("prefix", "Bridge.ConnectSource")
			event, err := models.WrapStreamPayload(t, payload)
			if err != nil {
				logger.Errorf("dropping undecodable %q payload: %v", t, err)
				return
			}
			b.Emit(event)
		})
	}
}

// Subscribe registers cb for every event routed to key and returns a
// teardown function. The teardown removes exactly this registration and is
// a no-op after the first call. When the last registration for a key is
// removed, the key entry itself is deleted.
func (b *Bridge) Subscribe(key string, cb Callback) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	set, ok := b.subscribers[key]
	if !ok {
		set = make(map[uint64]Callback)
		b.subscribers[key] = set
	}
	set[id] = cb
	activeSubscriptionsMetric.Inc()
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		set, ok := b.subscribers[key]
		if !ok {
			return
		}
		if _, ok := set[id]; !ok {
			return
		}
		delete(set, id)
		activeSubscriptionsMetric.Dec()
		if len(set) == 0 {
			delete(b.subscribers, key)
		}
	}
}

// SubscribeToMessageStream registers cb for the three streaming event
// variants of one conversation. The payload's own conversation identifier
// is checked against key in case the generic channel was mis-keyed.
func (b *Bridge) SubscribeToMessageStream(key string, cb Callback) func() {
	return b.Subscribe(key, func(event models.Event) {
		if !event.IsStreaming() {
			return
		}
		if k, ok := event.RoutingKey(); !ok || k != key {
			return
		}
		cb(event)
	})
}

// SubscribeToAll registers cb under the global sentinel key. It receives
// every event, including error events that carry no conversation.
func (b *Bridge) SubscribeToAll(cb Callback) func() {
	return b.Subscribe(GlobalKey, cb)
}

// Emit dispatches one event: to the subscribers of its conversation key,
// if it has one, and always to the global subscribers. The callback set is
// snapshotted before invocation, so callbacks that subscribe or
// unsubscribe mid-pass cannot skip or double-invoke siblings; a callback
// added during a pass is never part of that pass. A panicking callback is
// recovered and logged without affecting the remaining deliveries.
func (b *Bridge) Emit(event models.Event) {
	b.mu.RLock()
	key, keyed := event.RoutingKey()
	targets := make([]Callback, 0, 4)
	if keyed && key != GlobalKey {
		for _, cb := range b.subscribers[key] {
			targets = append(targets, cb)
		}
	}
	for _, cb := range b.subscribers[GlobalKey] {
		targets = append(targets, cb)
	}
	b.mu.RUnlock()

	dispatchedEventsMetric.WithLabelValues(string(event.Type)).Inc()

	faults := 0
	for _, cb := range targets {
		if safeInvoke(cb, event) {
			faults++
		}
	}
	deliveredCallbacksMetric.Add(float64(len(targets)))

	if b.recorder != nil {
		b.recorder.TryAdd(DeliveryRecord{
			EventType: string(event.Type),
			Key:       key,
			Delivered: len(targets) - faults,
			Faults:    faults,
		})
	}
}

func safeInvoke(cb Callback, event models.Event) (fault bool) {
	defer func() {
		if r := recover(); r != nil {
			fault = true
			subscriberFaultsMetric.Inc()
			log.WithField("prefix", "Bridge.Emit").
				Errorf("recovered from subscriber panic on %q: %v", event.Type, r)
		}
	}()
	cb(event)
	return false
}

// Stats returns the number of distinct active keys, the key list and the
// total registration count. Read-only.
func (b *Bridge) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.subscribers))
	total := 0
	for key, set := range b.subscribers {
		keys = append(keys, key)
		total += len(set)
	}
	sort.Strings(keys)
	return Stats{
		ActiveSubscriptions:            len(keys),
		ConversationsWithSubscriptions: keys,
		TotalCallbacks:                 total,
	}
}

// Cleanup detaches from the current source and unconditionally clears the
// registry. Safe to call repeatedly; intended for process shutdown.
func (b *Bridge) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.source != nil {
		b.source.RemoveAllListeners()
		b.source = nil
	}
	b.subscribers = make(map[string]map[uint64]Callback)
	activeSubscriptionsMetric.Set(0)
}

// HealthCheck reports bridge health. The in-process registry has no
// failure mode of its own.
func (b *Bridge) HealthCheck() error {
	return nil
}
