package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stayflow/backend/internal/storage"
	"github.com/stayflow/backend/internal/storage/models"
)

// Subscriber is one live connection with its filter and a bounded outbound
// buffer. Messages are delivered in publish order; when the buffer is full
// the oldest message is dropped and counted rather than blocking the hub.
type Subscriber struct {
	ID      string
	filter  Filter
	send    chan []byte
	dropped atomic.Uint64
}

// Send returns the subscriber's outbound channel. It is closed when the
// subscriber is unregistered.
func (s *Subscriber) Send() <-chan []byte {
	return s.send
}

// Dropped returns how many messages were discarded for this subscriber.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Filter returns the subscriber's filter.
func (s *Subscriber) Filter() Filter {
	return s.filter
}

type envelope struct {
	data  []byte
	match func(Filter) bool
}

// Hub maintains the set of live subscribers and fans published messages out
// to those whose filter matches. The registry is in-memory only; it is
// rebuilt from nothing on restart as subscribers reconnect.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]bool

	register   chan *Subscriber
	unregister chan *Subscriber
	broadcast  chan envelope
	// done is closed when Run returns so Subscribe/Unsubscribe never block
	// on a stopped hub.
	done chan struct{}

	bufferSize   int
	heartbeat    time.Duration
	droppedTotal atomic.Uint64

	log *zap.Logger
}

// NewHub creates a hub. bufferSize is the per-subscriber outbound queue cap;
// heartbeat is the liveness message period.
func NewHub(bufferSize int, heartbeat time.Duration, log *zap.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &Hub{
		subscribers: make(map[*Subscriber]bool),
		register:    make(chan *Subscriber),
		unregister:  make(chan *Subscriber),
		broadcast:   make(chan envelope, 256),
		done:        make(chan struct{}),
		bufferSize:  bufferSize,
		heartbeat:   heartbeat,
		log:         log,
	}
}

// Run starts the hub's event loop. It returns when ctx is cancelled, closing
// every subscriber channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			count := len(h.subscribers)
			h.mu.Unlock()

			// The connection message is the only thing a reconnecting
			// subscriber gets; there is no backlog replay.
			if data, err := NewMessage(TypeConnection, ConnectionPayload{
				SubscriberID: sub.ID,
				Filter:       sub.filter,
			}).JSON(); err == nil {
				h.deliver(sub, data)
			}
			h.log.Debug("subscriber connected",
				zap.String("subscriber_id", sub.ID), zap.Int("total", count))

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			count := len(h.subscribers)
			h.mu.Unlock()
			h.log.Debug("subscriber disconnected",
				zap.String("subscriber_id", sub.ID), zap.Int("total", count))

		case env := <-h.broadcast:
			h.mu.RLock()
			for sub := range h.subscribers {
				if env.match != nil && !env.match(sub.filter) {
					continue
				}
				h.deliver(sub, env.data)
			}
			h.mu.RUnlock()

		case <-ticker.C:
			h.sendHeartbeat()

		case <-ctx.Done():
			h.mu.Lock()
			for sub := range h.subscribers {
				delete(h.subscribers, sub)
				close(sub.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Subscribe creates a subscriber with the given filter and registers it. On
// a stopped hub the subscriber comes back with its channel already closed.
func (h *Hub) Subscribe(filter Filter) *Subscriber {
	sub := &Subscriber{
		ID:     storage.GenerateID(),
		filter: filter,
		send:   make(chan []byte, h.bufferSize),
	}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.send)
	}
	return sub
}

// Unsubscribe removes a subscriber and releases its resources. Safe to call
// after the hub has stopped.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// PublishMutation fans a calendar mutation out to matching subscribers.
func (h *Hub) PublishMutation(m CalendarMutation) {
	data, err := NewMessage(TypeCalendarUpdate, m).JSON()
	if err != nil {
		h.log.Error("encoding calendar mutation", zap.Error(err))
		return
	}
	h.publish(envelope{data: data, match: func(f Filter) bool { return f.MatchesMutation(m) }})
}

// PublishConflict fans a conflict alert out to matching subscribers.
func (h *Hub) PublishConflict(a models.ConflictAlert) {
	data, err := NewMessage(TypeConflictAlert, a).JSON()
	if err != nil {
		h.log.Error("encoding conflict alert", zap.Error(err))
		return
	}
	h.publish(envelope{data: data, match: func(f Filter) bool { return f.MatchesConflict(a) }})
}

func (h *Hub) publish(env envelope) {
	select {
	case h.broadcast <- env:
	default:
		// The hub's own inbox is bounded too; drop rather than block the
		// publisher.
		h.droppedTotal.Add(1)
		h.log.Warn("broadcast queue full, message dropped")
	}
}

// deliver enqueues data for one subscriber, dropping its oldest queued
// message when the buffer is full.
func (h *Hub) deliver(sub *Subscriber, data []byte) {
	select {
	case sub.send <- data:
		return
	default:
	}

	// Buffer full: discard the oldest, then try once more.
	select {
	case <-sub.send:
		sub.dropped.Add(1)
		h.droppedTotal.Add(1)
	default:
	}
	select {
	case sub.send <- data:
	default:
		sub.dropped.Add(1)
		h.droppedTotal.Add(1)
	}
}

func (h *Hub) sendHeartbeat() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := NewMessage(TypeHeartbeat, HeartbeatPayload{
		Subscribers:  len(h.subscribers),
		DroppedTotal: h.droppedTotal.Load(),
	}).JSON()
	if err != nil {
		return
	}
	for sub := range h.subscribers {
		h.deliver(sub, data)
	}
}

// SendError queues an error message for one subscriber. Used for protocol
// problems on that subscriber's own connection.
func (h *Hub) SendError(sub *Subscriber, code, message string) {
	data, err := NewMessage(TypeError, ErrorPayload{Code: code, Message: message}).JSON()
	if err != nil {
		return
	}
	h.deliver(sub, data)
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// DroppedTotal returns the total number of messages dropped across all
// subscribers since startup.
func (h *Hub) DroppedTotal() uint64 {
	return h.droppedTotal.Load()
}
