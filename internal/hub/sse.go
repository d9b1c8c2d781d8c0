package hub

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultKeepalive  = 15 * time.Second
	defaultRetryDelay = 5 * time.Second
)

// StreamHandler serves a read-only server-sent events feed of broadcast
// events for clients that cannot use WebSocket.
type StreamHandler struct {
	hub        *Hub
	keepalive  time.Duration
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewStreamHandler creates an SSE handler. A non-positive keepalive uses the
// default interval.
func NewStreamHandler(hub *Hub, keepalive time.Duration) *StreamHandler {
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	return &StreamHandler{
		hub:        hub,
		keepalive:  keepalive,
		retryDelay: defaultRetryDelay,
		logger:     hub.logger,
	}
}

// ServeHTTP streams events until the client goes away or the hub closes.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error": "streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	sub := h.hub.subscribe("sse")
	if sub == nil {
		http.Error(w, `{"error": "server shutting down"}`, http.StatusServiceUnavailable)
		return
	}
	defer h.hub.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := fmt.Fprintf(w, "retry: %d\n\n", h.retryDelay.Milliseconds()); err != nil {
		h.logger.Warn("failed to write SSE retry header", "error", err, "conn_id", sub.id)
		return
	}
	if err := writeSSE(w, "connected", fmt.Sprintf(`{"conn_id":%q}`, sub.id)); err != nil {
		h.logger.Warn("failed to write SSE connected event", "error", err, "conn_id", sub.id)
		return
	}
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sub.done:
			return
		case <-keepalive.C:
			if err := writeSSE(w, EventPing, `{"status":"alive"}`); err != nil {
				h.logger.Debug("failed to write SSE keepalive", "error", err, "conn_id", sub.id)
				return
			}
			flusher.Flush()
		case f := <-sub.send:
			if err := writeSSE(w, f.name, string(f.data)); err != nil {
				h.logger.Debug("failed to write SSE event", "error", err, "conn_id", sub.id)
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
