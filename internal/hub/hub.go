// Package hub tracks live client connections and fans events out to them.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Event names on the wire.
const (
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventPing           = "ping"
	EventPong           = "pong"
)

// DefaultSendBuffer is the per-subscriber outbound queue length.
const DefaultSendBuffer = 64

// Event is the JSON envelope exchanged with clients.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// InboundMessage is the payload of a sendMessage event.
type InboundMessage struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
	ConnID  string `json:"-"`
}

// InboundHandler is invoked once per inbound sendMessage event.
type InboundHandler func(ctx context.Context, msg InboundMessage)

// frame is a marshaled outbound event.
type frame struct {
	name     string
	data     []byte
	envelope []byte
}

type subscriber struct {
	id        string
	kind      string
	send      chan frame
	done      chan struct{}
	closeOnce sync.Once
}

// deliver queues f without blocking. When the queue is full the oldest
// frame is dropped to make room.
func (s *subscriber) deliver(f frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.send <- f:
		return true
	default:
	}

	select {
	case <-s.send:
	default:
	}

	select {
	case s.send <- f:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Hub broadcasts events to every connected client. Delivery is best-effort:
// there is no acknowledgment and a slow client only loses its own frames.
type Hub struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	handler    InboundHandler
	closed     bool
	sendBuffer int
	logger     *slog.Logger
}

// New creates a hub with the given per-client outbound queue length.
func New(sendBuffer int, logger *slog.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:       make(map[string]*subscriber),
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// OnInbound registers the handler for inbound messages, replacing any
// previous one.
func (h *Hub) OnInbound(fn InboundHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handler = fn
}

// Broadcast delivers an event to every connected client. Only encoding
// failures are reported.
func (h *Hub) Broadcast(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	envelope, err := json.Marshal(Event{Name: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	f := frame{name: event, data: data, envelope: envelope}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for _, sub := range h.subs {
		if !sub.deliver(f) {
			dropped++
		}
	}
	h.logger.Debug("Event broadcast", "event", event, "recipients", len(h.subs), "dropped", dropped)
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id, sub := range h.subs {
		sub.close()
		delete(h.subs, id)
	}
	h.logger.Info("Hub closed")
}

// subscribe registers a new client. It returns nil once the hub is closed.
func (h *Hub) subscribe(kind string) *subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		kind: kind,
		send: make(chan frame, h.sendBuffer),
		done: make(chan struct{}),
	}
	h.subs[sub.id] = sub
	h.logger.Info("Client connected", "conn_id", sub.id, "transport", kind, "clients", len(h.subs))
	return sub
}

func (h *Hub) unsubscribe(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.subs[sub.id]; ok && current == sub {
		delete(h.subs, sub.id)
		h.logger.Info("Client disconnected", "conn_id", sub.id, "transport", sub.kind, "clients", len(h.subs))
	}
	sub.close()
}

// dispatch hands an inbound message to the registered handler.
func (h *Hub) dispatch(ctx context.Context, msg InboundMessage) {
	h.mu.RLock()
	handler := h.handler
	h.mu.RUnlock()

	if handler == nil {
		h.logger.Warn("Inbound message dropped, no handler registered", "conn_id", msg.ConnID)
		return
	}
	handler(ctx, msg)
}
