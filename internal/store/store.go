// Package store provides message persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/chatflow/internal/domain"
)

// Repository defines the interface for the append-only message log.
type Repository interface {
	// AppendMessage persists a new message and returns it with the
	// store-assigned ID and timestamp.
	AppendMessage(ctx context.Context, content, sender string) (domain.Message, error)

	// ListMessages returns every message ordered by timestamp, then ID.
	ListMessages(ctx context.Context) ([]domain.Message, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
