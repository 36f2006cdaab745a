package report

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Collector drains records from a ring collector and forwards them to a
// sender, either on a periodic flush or when the ring signals new data.
type Collector struct {
	ring          *RingCollector
	sender        Sender
	flushInterval time.Duration
}

func NewCollector(ring *RingCollector, sender Sender, flushInterval time.Duration) *Collector {
	return &Collector{
		ring:          ring,
		sender:        sender,
		flushInterval: flushInterval,
	}
}

// Run drains until the context is canceled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ring.Notify():
		case <-ticker.C:
		}

		records := c.ring.PopAll()
		if len(records) == 0 {
			continue
		}
		if err := c.sender.Publish(ctx, records); err != nil {
			logrus.WithError(err).Warn("report: failed to publish records")
		}
	}
}
