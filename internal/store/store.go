// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/luminova-studio/siteline/internal/domain"
)

// Repository defines the interface for persisting visitor, conversation
// and game-record data.
type Repository interface {
	// GetUser retrieves a user by their user ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// GetChatSession retrieves conversation state for a user/session
	// pair, or nil if none exists.
	GetChatSession(ctx context.Context, userID, sessionID string) (*domain.ConversationState, error)

	// UpsertChatSession creates or updates conversation state.
	UpsertChatSession(ctx context.Context, state *domain.ConversationState) error

	// DeleteChatSession discards conversation state entirely.
	DeleteChatSession(ctx context.Context, userID, sessionID string) error

	// CleanupExpiredChatSessions removes sessions idle longer than ttl.
	CleanupExpiredChatSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// GetBestRecord retrieves the persisted best record for a user.
	// A user with no completed games gets a zero-valued record.
	GetBestRecord(ctx context.Context, userID string) (*domain.BestRecord, error)

	// UpsertBestRecord writes the best record for a user.
	UpsertBestRecord(ctx context.Context, userID string, record *domain.BestRecord) error

	// InsertLead records a submitted lead locally.
	InsertLead(ctx context.Context, lead *domain.LeadSubmission) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
