package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	wsReadLimit    = 64 << 10
	wsWriteTimeout = 10 * time.Second
)

var pongFrame = frame{name: EventPong, envelope: []byte(`{"event":"pong"}`)}

// WebSocketHandler upgrades requests to WebSocket connections and attaches
// them to the hub.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *Hub, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        hub.logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	ws.SetReadLimit(wsReadLimit)

	sub := h.hub.subscribe("websocket")
	if sub == nil {
		_ = ws.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.hub.unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, ws, sub)
	}()

	h.readLoop(ctx, ws, sub)
	cancel()
	wg.Wait()

	if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
		h.logger.Debug("Failed to close websocket", "error", closeErr, "conn_id", sub.id)
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sub *subscriber) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed", "conn_id", sub.id)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "conn_id", sub.id)
			}
			return
		}

		var evt Event
		if err := json.Unmarshal(data, &evt); err != nil {
			h.logger.Debug("Ignoring malformed frame", "conn_id", sub.id, "error", err)
			continue
		}

		switch evt.Name {
		case EventSendMessage:
			var msg InboundMessage
			if err := json.Unmarshal(evt.Data, &msg); err != nil {
				h.logger.Debug("Ignoring malformed sendMessage", "conn_id", sub.id, "error", err)
				continue
			}
			msg.ConnID = sub.id
			h.hub.dispatch(ctx, msg)
		case EventPing:
			sub.deliver(pongFrame)
		default:
			h.logger.Debug("Ignoring unknown event", "conn_id", sub.id, "event", evt.Name)
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, sub *subscriber) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.done:
			return
		case f := <-sub.send:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, f.envelope)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					h.logger.Debug("WebSocket write error", "error", err, "conn_id", sub.id)
				}
				return
			}
		}
	}
}
