package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MessagesHandler serves the read-only message history.
type MessagesHandler struct {
	repo MessageLister
}

// NewMessagesHandler creates a new messages handler.
func NewMessagesHandler(repo MessageLister) *MessagesHandler {
	return &MessagesHandler{repo: repo}
}

// RegisterRoutes registers message routes.
func (h *MessagesHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/messages", h.List)
}

// List returns every message in ascending timestamp order.
func (h *MessagesHandler) List(w http.ResponseWriter, r *http.Request) {
	messages, err := h.repo.ListMessages(r.Context())
	if err != nil {
		slog.Error("Error fetching messages", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}
	JSON(w, http.StatusOK, messages)
}
