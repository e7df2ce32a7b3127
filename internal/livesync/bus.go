package livesync

import (
	"context"
	"sync"

	"github.com/gasflow/ops-console/pkg/enums"
	"github.com/gasflow/ops-console/pkg/logger"
)

// Message is one event received from the push connection.
type Message struct {
	Event   enums.LiveEvent
	EventID string
	Data    []byte
}

// Handler consumes a message for one subscribed event name.
type Handler func(ctx context.Context, msg Message)

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	id    uint64
	event enums.LiveEvent
}

func (s Subscription) Event() enums.LiveEvent {
	return s.event
}

// Bus is the process-wide push connection shared by every subscriber.
type Bus interface {
	Subscribe(event enums.LiveEvent, h Handler) Subscription
	Unsubscribe(sub Subscription)
	Close() error
}

// Hub is the in-process Bus. Sources publish into it and subscribers never
// own the underlying connection.
type Hub struct {
	logg *logger.Logger

	mu       sync.RWMutex
	nextID   uint64
	handlers map[enums.LiveEvent]map[uint64]Handler
	closed   bool
}

func NewHub(logg *logger.Logger) *Hub {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Hub{
		logg:     logg,
		handlers: make(map[enums.LiveEvent]map[uint64]Handler),
	}
}

func (h *Hub) Subscribe(event enums.LiveEvent, handler Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := Subscription{id: h.nextID, event: event}
	if h.closed || handler == nil {
		return sub
	}
	if h.handlers[event] == nil {
		h.handlers[event] = make(map[uint64]Handler)
	}
	h.handlers[event][sub.id] = handler
	return sub
}

func (h *Hub) Unsubscribe(sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.handlers[sub.event]
	if set == nil {
		return
	}
	delete(set, sub.id)
	if len(set) == 0 {
		delete(h.handlers, sub.event)
	}
}

// Publish delivers msg to every handler of its event and returns how many ran.
// Handlers run on the caller's goroutine.
func (h *Hub) Publish(ctx context.Context, msg Message) int {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return 0
	}
	set := h.handlers[msg.Event]
	targets := make([]Handler, 0, len(set))
	for _, handler := range set {
		targets = append(targets, handler)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.logg.Debug(h.logg.WithLiveEvent(ctx, msg.Event.String()), "no subscribers for live event")
	}
	for _, handler := range targets {
		handler(ctx, msg)
	}
	return len(targets)
}

// Subscribers reports how many handlers are registered for event.
func (h *Hub) Subscribers(event enums.LiveEvent) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.handlers[event])
}

// Close drops every handler. Publishing after Close is a no-op.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.handlers = make(map[enums.LiveEvent]map[uint64]Handler)
	return nil
}
