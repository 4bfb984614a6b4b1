// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/onboard-chat/internal/domain"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Repository defines the interface for persisting onboarding sessions.
type Repository interface {
	// Create stores a new session with its transcript and vehicles.
	Create(ctx context.Context, s *domain.Session) error

	// Get retrieves a full session snapshot. Returns ErrNotFound when unknown.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Update writes the session's fields, vehicles and new transcript turns
	// atomically. Returns ErrNotFound when unknown.
	Update(ctx context.Context, s *domain.Session) error

	// ListRecent returns summaries ordered by last update, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.Summary, error)

	// Delete removes a session together with its turns and vehicles.
	Delete(ctx context.Context, id string) error

	// IdleSessions returns the IDs of sessions not updated since before.
	IdleSessions(ctx context.Context, before time.Time) ([]string, error)

	// Ping verifies storage connectivity.
	Ping(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}
