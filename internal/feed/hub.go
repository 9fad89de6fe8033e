package feed

import (
	"context"
	"sync"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/util"

	"github.com/google/uuid"
)

// Publisher receives change events after a write
type Publisher interface {
	PublishChange(ctx context.Context, event models.ChangeEvent)
}

// Fanout forwards each event to every publisher in order
type Fanout []Publisher

func (f Fanout) PublishChange(ctx context.Context, event models.ChangeEvent) {
	for _, p := range f {
		if p != nil {
			p.PublishChange(ctx, event)
		}
	}
}

// NewChangeEvent builds an event stamped with origin
func NewChangeEvent(origin, eventType, collection, documentID string) models.ChangeEvent {
	return models.ChangeEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: time.Now().UTC(),
		},
		Collection: collection,
		DocumentID: documentID,
		Origin:     origin,
	}
}

type subscriber struct {
	collection string
	ch         chan models.ChangeEvent
}

// Hub fans change events out to in-process subscribers. A slow subscriber
// never blocks a publisher: it holds at most one pending event, which is
// enough because subscribers reload the whole collection on each signal.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in collection. The returned cancel func
// unregisters and closes the channel.
func (h *Hub) Subscribe(collection string) (<-chan models.ChangeEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	sub := &subscriber{collection: collection, ch: make(chan models.ChangeEvent, 1)}
	h.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// PublishChange delivers event to every subscriber of its collection
func (h *Hub) PublishChange(_ context.Context, event models.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	util.ChangeEventsTotal.WithLabelValues("local").Inc()
	for _, sub := range h.subs {
		if sub.collection != event.Collection {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}

// Subscribers returns the number of live subscriptions
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
