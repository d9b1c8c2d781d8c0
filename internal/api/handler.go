// Package api provides HTTP handlers for the chat relay.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/chatflow/internal/domain"
)

// MessageLister reads the message log.
type MessageLister interface {
	ListMessages(ctx context.Context) ([]domain.Message, error)
}

// Pinger checks that the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnectionCounter reports live client connections.
type ConnectionCounter interface {
	Count() int
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
