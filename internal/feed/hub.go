// Package feed fans committed post changes out to live subscribers.
package feed

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-blog/backend/internal/model/post"
)

// ErrClosed is returned by Subscribe after Close.
var ErrClosed = errors.New("feed closed")

// Event describes one committed change.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Post post.Post `json:"post"`
	At   string    `json:"at"`
}

// Subscriber receives events on a buffered channel. The channel is closed
// when the subscriber is removed, either explicitly or because it fell
// behind.
type Subscriber struct {
	events chan Event
}

// Events returns the receive side of the subscription.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Hub tracks subscribers and broadcasts events without blocking publishers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	buffer      int
	closed      bool
	now         func() time.Time
}

// NewHub creates a hub whose subscribers can queue up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subscribers: make(map[*Subscriber]struct{}),
		buffer:      buffer,
		now:         time.Now,
	}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	sub := &Subscriber{events: make(chan Event, h.buffer)}
	h.subscribers[sub] = struct{}{}
	return sub, nil
}

// Unsubscribe removes sub and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

func (h *Hub) remove(sub *Subscriber) {
	if _, ok := h.subscribers[sub]; !ok {
		return
	}
	delete(h.subscribers, sub)
	close(sub.events)
}

// Publish broadcasts a change. Subscribers with a full queue are dropped.
func (h *Hub) Publish(eventType string, p post.Post) {
	event := Event{
		ID:   uuid.NewString(),
		Type: eventType,
		Post: p,
		At:   post.Timestamp(h.now()),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers {
		select {
		case sub.events <- event:
		default:
			log.Printf("[feed] dropping slow subscriber, event=%s", event.ID)
			h.remove(sub)
		}
	}
}

// subscriberCount reports the number of active subscribers.
func (h *Hub) subscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close removes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subscribers {
		h.remove(sub)
	}
}
