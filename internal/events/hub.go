package events

import (
	"context"
	"log/slog"
	"sync"

	"talenttrack/internal/platform/metrics"
	"talenttrack/pkg/stream"
)

// Hub broadcasts notifications to in-process subscribers over buffered
// channels. A subscriber whose buffer is full misses the notification; the
// drop is counted and logged but never blocks the publisher.
type Hub struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	buffer  int

	mu          sync.RWMutex
	subscribers map[uint64]chan stream.Notification
	nextID      uint64
	closed      bool
}

// NewHub creates a hub whose subscriber channels hold up to buffer
// notifications.
func NewHub(logger *slog.Logger, m *metrics.Metrics, buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		logger:      logger,
		metrics:     m,
		buffer:      buffer,
		subscribers: make(map[uint64]chan stream.Notification),
	}
}

// Subscribe registers a new subscriber and returns its channel together with
// a cancel function. The channel is closed by cancel or by Close; after
// either, no further sends occur.
func (h *Hub) Subscribe() (<-chan stream.Notification, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan stream.Notification, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	subscriberID := h.nextID
	h.nextID++
	h.subscribers[subscriberID] = ch
	h.metrics.AddSubscribers(1)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[subscriberID]; !ok {
			return
		}
		delete(h.subscribers, subscriberID)
		close(ch)
		h.metrics.AddSubscribers(-1)
	}
	return ch, cancel
}

// Publish delivers the notification to every subscriber whose buffer has
// room.
func (h *Hub) Publish(_ context.Context, n stream.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return
	}
	h.metrics.IncrementNotificationsPublished(string(n.Kind))
	for _, ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			h.metrics.IncrementNotificationsDropped()
			h.logger.Warn("subscriber buffer full, dropping notification", "kind", n.Kind)
		}
	}
}

// SubscriberCount reports the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects future ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	h.metrics.AddSubscribers(-len(h.subscribers))
	for subscriberID, ch := range h.subscribers {
		delete(h.subscribers, subscriberID)
		close(ch)
	}
}
