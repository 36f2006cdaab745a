package handler

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/convoline/bridge/internal/bridge"
	"github.com/convoline/bridge/internal/models"
	"github.com/convoline/bridge/internal/utils"
)

var (
	activeConnectionMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "number_of_active_connections",
		Help: "The number of active connections",
	})
	injectedEventsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "number_of_injected_events",
		Help: "The total number of manually injected events",
	})
	badRequestMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "number_of_bad_requests",
		Help: "The total number of bad requests",
	})
)

// Handler serves the subscription endpoints backed by the bridge.
type Handler struct {
	bridge            *bridge.Bridge
	heartbeatInterval time.Duration
	sessionBuffer     int
}

func NewHandler(b *bridge.Bridge, heartbeatInterval time.Duration, sessionBuffer int) *Handler {
	return &Handler{
		bridge:            b,
		heartbeatInterval: heartbeatInterval,
		sessionBuffer:     sessionBuffer,
	}
}

// EventSubscriptionHandler streams bridge events to the client over SSE.
// Query params: conversation_id selects the keyed channel, global=true the
// global channel, stream_only=true narrows a keyed subscription to the
// three streaming variants. trace_id is optional.
func (h *Handler) EventSubscriptionHandler(c echo.Context) error {
	log := logrus.WithField("prefix", "EventSubscriptionHandler")
	_, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		http.Error(c.Response().Writer, "streaming unsupported", http.StatusInternalServerError)
		return c.JSON(utils.HttpResError("streaming unsupported", http.StatusBadRequest))
	}

	conversationID := c.QueryParam("conversation_id")
	global := c.QueryParam("global") == "true"
	streamOnly := c.QueryParam("stream_only") == "true"
	if conversationID == "" && !global {
		badRequestMetric.Inc()
		errorMsg := "param \"conversation_id\" not present"
		log.Error(errorMsg)
		return c.JSON(utils.HttpResError(errorMsg, http.StatusBadRequest))
	}
	traceID := ParseOrGenerateTraceID(c.QueryParam("trace_id"))
	log = log.WithField("trace_id", traceID)

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "private, no-cache, no-transform")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("Transfer-Encoding", "chunked")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	session := NewSession(h.sessionBuffer)
	var unsubscribe func()
	switch {
	case global:
		unsubscribe = h.bridge.SubscribeToAll(session.Push)
	case streamOnly:
		unsubscribe = h.bridge.SubscribeToMessageStream(conversationID, session.Push)
	default:
		unsubscribe = h.bridge.Subscribe(conversationID, session.Push)
	}
	activeConnectionMetric.Inc()
	defer activeConnectionMetric.Dec()

	notify := c.Request().Context().Done()
	go func() {
		<-notify
		unsubscribe()
		session.Close()
		log.Infof("connection for %q closed", conversationID)
	}()

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case event, open := <-session.Events():
			if !open {
				log.Info("session closed")
				return nil
			}
			payload, err := models.EncodeEvent(event)
			if err != nil {
				log.Errorf("failed to encode event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(c.Response(), "data: %s\n\n", payload); err != nil {
				return nil
			}
			c.Response().Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(c.Response(), "event: heartbeat\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}

// EmitEventHandler injects a tagged event into the bridge. This path works
// with or without an attached source and is the bridging entry for hosts
// that are not event emitters.
func (h *Handler) EmitEventHandler(c echo.Context) error {
	log := logrus.WithField("prefix", "EmitEventHandler")

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		badRequestMetric.Inc()
		log.Error(err)
		return c.JSON(utils.HttpResError(err.Error(), http.StatusBadRequest))
	}
	event, err := models.DecodeEvent(body)
	if err != nil {
		badRequestMetric.Inc()
		log.Error(err)
		return c.JSON(utils.HttpResError(err.Error(), http.StatusBadRequest))
	}

	h.bridge.Emit(event)
	injectedEventsMetric.Inc()
	return c.JSON(http.StatusOK, utils.HttpResOk())
}

// StatsHandler reports registry occupancy. Read-only, used for
// observability, not correctness.
func (h *Handler) StatsHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, h.bridge.Stats())
}
