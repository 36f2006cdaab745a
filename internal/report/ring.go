// Package report batches delivery outcome records from the bridge and
// forwards them to an external webhook.
package report

import "sync"

// RingCollector provides bounded, non-blocking storage for delivery
// records. When full, new records are dropped.
type RingCollector struct {
	mu       sync.Mutex
	records  []interface{}
	capacity int
	dropped  uint64
	notify   chan struct{}
}

func NewRingCollector(capacity int) *RingCollector {
	return &RingCollector{
		records:  make([]interface{}, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// TryAdd enqueues without blocking. If the buffer is full it returns false
// and increments the drop count.
func (c *RingCollector) TryAdd(record interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) >= c.capacity {
		c.dropped++
		return false
	}
	c.records = append(c.records, record)

	select {
	case c.notify <- struct{}{}:
	default:
	}
	return true
}

// PopAll drains all pending records.
func (c *RingCollector) PopAll() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.records) == 0 {
		return nil
	}
	result := c.records
	c.records = make([]interface{}, 0, c.capacity)
	return result
}

// Notify returns a channel signaled when new records arrive.
func (c *RingCollector) Notify() <-chan struct{} {
	return c.notify
}

// Dropped returns the number of records dropped because the buffer was full.
func (c *RingCollector) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Len returns the current number of buffered records.
func (c *RingCollector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
